// Package bridge 实现控制台消费的 HTTP 服务面：
// 经 SSH 对目标主机执行动作、流式回传长命令输出、VNC 隧道、
// 备份清单、known_hosts 修复与网段扫描。
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lanops/fleet-console/internal/domain"
	"github.com/lanops/fleet-console/pkg/config"
	"github.com/lanops/fleet-console/pkg/secret"
)

// SSHExecutor 抽象执行接口，便于替换真实 SSH / Mock。
type SSHExecutor interface {
	Exec(ctx context.Context, addr, password, cmd string, timeout time.Duration) (stdout, stderr string, exitCode int, err error)
	StreamExec(ctx context.Context, addr, password, cmd string, timeout time.Duration, onChunk func([]byte, bool)) (stdout, stderr string, exitCode int, err error)
}

var _ SSHExecutor = (*Executor)(nil)
var _ SSHExecutor = (*MockExecutor)(nil)

type Server struct {
	exec  SSHExecutor
	cfg   *config.Config
	proxy *VNCProxy
}

func NewServer(exec SSHExecutor, cfg *config.Config) *Server {
	return &Server{exec: exec, cfg: cfg, proxy: NewVNCProxy()}
}

// Routes 注册全部端点。
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/gerenciar_atalhos_ip", s.handleManage)
	mux.HandleFunc("/stream-action", s.handleStream)
	mux.HandleFunc("/start-vnc", s.handleStartVNC)
	mux.HandleFunc("/start-vnc-grid", s.handleVNCGrid)
	mux.HandleFunc("/list-backups", s.handleListBackups)
	mux.HandleFunc("/list-system-backups", s.handleListSystemBackups)
	mux.HandleFunc("/fix-ssh-keys", s.handleFixKeys)
	mux.HandleFunc("/discover-ips", s.handleDiscover)
	mux.Handle("/vnc/", s.proxy)
	return withCORS(mux)
}

// withCORS 控制台前端跨源访问需要。
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeReq(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, domain.Result{Success: false, Message: "仅支持 POST"})
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.Result{Success: false, Message: "请求体解析失败", Details: err.Error()})
		return false
	}
	return true
}

// sshTimeout 单条远程命令时限。
func (s *Server) sshTimeout() time.Duration {
	return time.Duration(s.cfg.SSHTimeoutSec) * time.Second
}

// ---- /gerenciar_atalhos_ip ----

// sudo 提示符会混进 stderr，解析前剔除。
var sudoPromptRe = regexp.MustCompile(`\[sudo\] (senha|password|密码)[^:：\n]*[:：]\s*`)

// splitStderr 按原始约定拆分 stderr：W: 前缀为警告，其余为错误。
func splitStderr(stderr string) (warnings, errs []string) {
	cleaned := sudoPromptRe.ReplaceAllString(stderr, "")
	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "W:") {
			warnings = append(warnings, line)
		} else {
			errs = append(errs, line)
		}
	}
	return
}

func (s *Server) handleManage(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if !decodeReq(w, r, &req) {
		return
	}
	if req.IP == "" || req.Password == "" || req.Action == "" {
		writeJSON(w, http.StatusBadRequest, domain.Result{Success: false, Message: "数据不完整：ip、password、action 为必填。"})
		return
	}
	cmd, spec, err := BuildCommand(req.Action, req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, domain.Result{Success: false, Message: err.Error()})
		return
	}

	if spec.FireAndForget {
		// 命令会切断 SSH 连接，短超时触发后直接按成功返回
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		_, _, _, _ = s.exec.Exec(ctx, req.IP, req.Password, cmd, 5*time.Second)
		writeJSON(w, http.StatusOK, domain.Result{Success: true, Message: "指令已下发，设备即将执行。"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.sshTimeout())
	defer cancel()
	stdout, stderr, exitCode, err := s.exec.Exec(ctx, req.IP, req.Password, cmd, s.sshTimeout())
	if err != nil {
		writeJSON(w, http.StatusOK, s.normalizeExecErr(err, req))
		return
	}
	warnings, errs := splitStderr(stderr)
	if exitCode != 0 {
		details := strings.Join(errs, "\n")
		if details == "" {
			details = stderr
		}
		writeJSON(w, http.StatusOK, domain.Result{
			Success: false,
			Message: fmt.Sprintf("远程命令执行失败（退出码 %d）。", exitCode),
			Details: secret.Redact(details, req.Password),
		})
		return
	}
	msg := strings.TrimSpace(stdout)
	if msg == "" {
		msg = "动作执行成功。"
	}
	writeJSON(w, http.StatusOK, domain.Result{
		Success: true,
		Message: msg,
		Details: secret.Redact(strings.Join(warnings, "\n"), req.Password),
	})
}

// normalizeExecErr 把 SSH 层错误归一化为操作员可读的结果。
// known_hosts 相关错误给出修复引导（控制台据此路由 /fix-ssh-keys）。
func (s *Server) normalizeExecErr(err error, req ActionRequest) domain.Result {
	text := err.Error()
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "unable to authenticate"):
		return domain.Result{Success: false, Message: "SSH 认证失败，请检查密码。"}
	case strings.Contains(text, "knownhosts: key mismatch"):
		return domain.Result{
			Success: false,
			Message: "安全警告：主机密钥已变化。",
			Details: fmt.Sprintf("%s 的主机密钥与 known_hosts 不一致，可能是系统重装。可通过 /fix-ssh-keys 清理后重试（等价 ssh-keygen -R %s）。", req.IP, req.IP),
		}
	case strings.Contains(text, "knownhosts: key is unknown"):
		return domain.Result{
			Success: false,
			Message: "主机密钥未收录。",
			Details: fmt.Sprintf("known_hosts 中没有 %s 的记录。可执行 ssh-keyscan -H %s >> ~/.ssh/known_hosts 后重试。", req.IP, req.IP),
		}
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return domain.Result{
			Success: false,
			Message: "SSH 连接超时。",
			Details: "目标设备未在时限内响应，请确认 SSH 服务已启动且 22 端口未被防火墙拦截。",
		}
	default:
		return domain.Result{Success: false, Message: "SSH 连接错误。", Details: secret.Redact(text, req.Password)}
	}
}

// ---- /stream-action ----

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if !decodeReq(w, r, &req) {
		return
	}
	if req.IP == "" || req.Password == "" || req.Action == "" {
		writeJSON(w, http.StatusBadRequest, domain.Result{Success: false, Message: "数据不完整：ip、password、action 为必填。"})
		return
	}
	cmd, _, err := BuildCommand(req.Action, req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, domain.Result{Success: false, Message: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	flusher, _ := w.(http.Flusher)
	var mu sync.Mutex // stdout/stderr 两个读 goroutine 并发回调
	lastByte := byte('\n')
	write := func(b []byte) {
		mu.Lock()
		defer mu.Unlock()
		if len(b) > 0 {
			lastByte = b[len(b)-1]
		}
		_, _ = w.Write(b)
		if flusher != nil {
			flusher.Flush()
		}
	}

	// 流式命令不设时限，由远程进程自身终止；操作员离开时 ctx 取消
	_, _, exitCode, execErr := s.exec.StreamExec(r.Context(), req.IP, req.Password, cmd, 0, func(b []byte, isErr bool) {
		write(b)
	})

	// 哨兵独占一行：前面输出未换行时先补一个
	mu.Lock()
	if lastByte != '\n' {
		_, _ = w.Write([]byte("\n"))
	}
	mu.Unlock()
	if execErr != nil {
		write([]byte(fmt.Sprintf("__STREAM_ERROR__:%s\n", secret.Redact(execErr.Error(), req.Password))))
		return
	}
	write([]byte(fmt.Sprintf("__STREAM_END__:%d\n", exitCode)))
}

// ---- 备份清单 ----

type backupsRequest struct {
	IP       string `json:"ip"`
	Password string `json:"password"`
}

type backupsResponse struct {
	Success bool                `json:"success"`
	Backups map[string][]string `json:"backups"`
	Message string              `json:"message,omitempty"`
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	s.listBackups(w, r, `find "$HOME/atalhos_desativados" -mindepth 2 -maxdepth 2 -type f -name '*.desktop' 2>/dev/null | sed "s|^$HOME/atalhos_desativados/||"`)
}

func (s *Server) handleListSystemBackups(w http.ResponseWriter, r *http.Request) {
	s.listBackups(w, r, `find /var/backups/fleet -mindepth 1 -maxdepth 1 -type d 2>/dev/null | sed "s|^/var/backups/fleet/||"`)
}

func (s *Server) listBackups(w http.ResponseWriter, r *http.Request, cmd string) {
	var req backupsRequest
	if !decodeReq(w, r, &req) {
		return
	}
	if req.IP == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, backupsResponse{Success: false, Message: "数据不完整：ip、password 为必填。"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.sshTimeout())
	defer cancel()
	stdout, _, exitCode, err := s.exec.Exec(ctx, req.IP, req.Password, cmd, s.sshTimeout())
	if err != nil {
		res := s.normalizeExecErr(err, ActionRequest{IP: req.IP, Password: req.Password})
		writeJSON(w, http.StatusOK, backupsResponse{Success: false, Message: res.Message})
		return
	}
	if exitCode != 0 {
		writeJSON(w, http.StatusOK, backupsResponse{Success: false, Message: fmt.Sprintf("备份枚举失败（退出码 %d）。", exitCode)})
		return
	}
	backups := map[string][]string{}
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		dir, file := line, ""
		if i := strings.IndexByte(line, '/'); i >= 0 {
			dir, file = line[:i], line[i+1:]
		}
		backups[dir] = append(backups[dir], file)
	}
	writeJSON(w, http.StatusOK, backupsResponse{Success: true, Backups: backups})
}

// ---- /fix-ssh-keys ----

func (s *Server) handleFixKeys(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IPs []string `json:"ips"`
	}
	if !decodeReq(w, r, &req) {
		return
	}
	results := make(map[string]domain.Result, len(req.IPs))
	for _, ip := range req.IPs {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		out, err := exec.CommandContext(ctx, "ssh-keygen", "-R", ip).CombinedOutput()
		cancel()
		if err != nil {
			results[ip] = domain.Result{Success: false, Message: "known_hosts 清理失败", Details: strings.TrimSpace(string(out))}
			continue
		}
		results[ip] = domain.Result{Success: true, Message: "旧主机密钥已移除，可重试连接。"}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// ---- /discover-ips ----

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, domain.Result{Success: false, Message: "仅支持 GET"})
		return
	}
	ips := s.pingSweep(r.Context())
	resp := map[string]any{"success": true, "ips": ips}
	if len(ips) == 0 {
		resp["message"] = "网段内未发现在线设备。"
	}
	writeJSON(w, http.StatusOK, resp)
}

// pingSweep 并行 ping 配置网段，返回在线 IP（有界并发）。
func (s *Server) pingSweep(ctx context.Context) []string {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		active []string
	)
	sem := make(chan struct{}, 32)
	for i := s.cfg.IPStart; i <= s.cfg.IPEnd; i++ {
		ip := fmt.Sprintf("%s%d", s.cfg.IPPrefix, i)
		sem <- struct{}{}
		wg.Add(1)
		go func(ip string) {
			defer wg.Done()
			defer func() { <-sem }()
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := exec.CommandContext(pctx, "ping", "-c", "1", "-W", "1", ip).Run(); err == nil {
				mu.Lock()
				active = append(active, ip)
				mu.Unlock()
			}
		}(ip)
	}
	wg.Wait()
	if len(active) > 0 {
		log.Printf("[discover] %d 台在线", len(active))
	}
	return active
}
