// Package secret 管理操作员会话凭据。凭据只驻留内存，
// 随进程退出消失；永远不写入磁盘、历史表或日志。
package secret

import (
	"strings"
	"sync"
)

// Vault 会话级凭据缓存。任一任务首次成功后缓存，
// 之后前端可隐藏密码输入框。
type Vault struct {
	mu     sync.Mutex
	cred   string
	cached bool
}

func NewVault() *Vault { return &Vault{} }

// Cache 缓存凭据。重复调用只保留首次值。
func (v *Vault) Cache(password string) {
	if password == "" {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.cached {
		v.cred = password
		v.cached = true
	}
}

// Cached 返回缓存的凭据及是否已缓存。
func (v *Vault) Cached() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cred, v.cached
}

// Clear 清空缓存（会话结束时调用）。
func (v *Vault) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cred = ""
	v.cached = false
}

// Redact 把文本中出现的凭据替换为占位符，写日志/历史前必须过一遍。
func (v *Vault) Redact(s string) string {
	v.mu.Lock()
	cred := v.cred
	v.mu.Unlock()
	return Redact(s, cred)
}

// Redact 同上，无状态版本。
func Redact(s, cred string) string {
	if cred == "" || s == "" {
		return s
	}
	return strings.ReplaceAll(s, cred, "******")
}
