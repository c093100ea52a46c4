package domain

import "time"

// TaskStatus 任务生命周期状态。
type TaskStatus string

const (
	StatusPending TaskStatus = "pending"
	StatusRunning TaskStatus = "running"
	StatusSuccess TaskStatus = "success"
	StatusFailure TaskStatus = "failure"
)

// Result 统一结果三元组。客户端所有路径（HTTP 错误/超时/传输失败/流结束）
// 都归一化为该形状，聚合与日志层无需区分来源。
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Task 一次 (目标, 动作, 载荷) 的派发单元。由任务池独占持有；
// 结果被聚合层消费后即丢弃，不跨进程重启保留。
type Task struct {
	ID          string         `json:"id"`
	TargetIP    string         `json:"target_ip"` // 本地动作为空
	Action      ActionID       `json:"action"`
	Payload     map[string]any `json:"-"`
	Status      TaskStatus     `json:"status"`
	Result      Result         `json:"result"`
	KeyMismatch bool           `json:"key_mismatch"` // SSH 主机密钥变化，可走 fix-ssh-keys 修复
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// TargetEntry 操作员维护的目标清单条目。清单本身可持久化，
// 凭据从不入库。
type TargetEntry struct {
	ID        int       `json:"id,omitempty"`
	IP        string    `json:"ip"`
	Remark    string    `json:"remark,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
