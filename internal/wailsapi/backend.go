package wailsapi

import (
	"context"
	"errors"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/lanops/fleet-console/internal/action"
	"github.com/lanops/fleet-console/internal/client"
	"github.com/lanops/fleet-console/internal/domain"
	"github.com/lanops/fleet-console/internal/repository"
	"github.com/lanops/fleet-console/internal/service"
	"github.com/lanops/fleet-console/internal/vnc"
	"github.com/lanops/fleet-console/pkg/config"
	"github.com/lanops/fleet-console/pkg/importexport"
	"github.com/lanops/fleet-console/pkg/secret"
)

// Backend 暴露给 Wails 前端的绑定对象。
// 事件：dispatch_result / stream_line / progress / job_done /
// grid_state / discovered_ips。
type Backend struct {
	targets    *repository.TargetRepo
	hRepo      *repository.HistoryRepo
	dispatcher *service.Dispatcher
	orch       *vnc.Orchestrator
	handoff    *vnc.HandoffStore
	vault      *secret.Vault
	client     *client.Client
	cfg        *config.Config
	ctx        context.Context // wails runtime context for events
}

func NewBackend(targets *repository.TargetRepo, hRepo *repository.HistoryRepo, dispatcher *service.Dispatcher, orch *vnc.Orchestrator, handoff *vnc.HandoffStore, vault *secret.Vault, c *client.Client, cfg *config.Config) *Backend {
	return &Backend{
		targets:    targets,
		hRepo:      hRepo,
		dispatcher: dispatcher,
		orch:       orch,
		handoff:    handoff,
		vault:      vault,
		client:     c,
		cfg:        cfg,
	}
}

// SetCtx 在 OnStartup 时注入 wails context，并接通派发引擎的事件出口。
func (b *Backend) SetCtx(ctx context.Context) {
	b.ctx = ctx
	b.dispatcher.OnResult = func(t domain.Task) {
		b.emit("dispatch_result", t)
	}
	b.dispatcher.OnStreamLine = func(ip string, act domain.ActionID, line string) {
		b.emit("stream_line", map[string]any{"ip": ip, "action": string(act), "line": line})
	}
	b.dispatcher.OnDiscovered = func(ips []string) {
		b.emit("discovered_ips", ips)
	}
}

// emit ctx 未就绪时静默丢弃（preview 模式）。
func (b *Backend) emit(event string, payload any) {
	if b.ctx == nil {
		return
	}
	runtime.EventsEmit(b.ctx, event, payload)
}

// EmitProgress 进度聚合器的发布出口（main 注入）。
func (b *Backend) EmitProgress(snap any) { b.emit("progress", snap) }

// ---- 动作目录 ----

// ListActions 完整动作目录（按 ID 排序）
func (b *Backend) ListActions() []domain.Action { return action.All() }

// ToggleAction 切换选中集合并化解互斥，返回新集合
func (b *Backend) ToggleAction(id string, selected []string) []string {
	set := make(map[domain.ActionID]bool, len(selected))
	for _, s := range selected {
		set[domain.ActionID(s)] = true
	}
	next := action.Toggle(domain.ActionID(id), set)
	out := make([]string, 0, len(next))
	for k := range next {
		out = append(out, string(k))
	}
	return out
}

// ---- 派发 ----

func toBatch(actions, targets []string, password string, payload map[string]any) service.Batch {
	ids := make([]domain.ActionID, len(actions))
	for i, a := range actions {
		ids[i] = domain.ActionID(a)
	}
	return service.Batch{Actions: ids, Targets: targets, Password: password, Payload: payload}
}

// RunBatch 同步执行整批并返回全部任务
func (b *Backend) RunBatch(actions, targets []string, password string, payload map[string]any) ([]domain.Task, error) {
	return b.dispatcher.RunBatch(context.Background(), toBatch(actions, targets, password, payload))
}

// StartJob 异步执行，结果经事件逐条推送；结束时发 job_done
func (b *Backend) StartJob(jobID string, actions, targets []string, password string, payload map[string]any) (string, error) {
	if b.ctx == nil {
		return "", errors.New("context not ready")
	}
	return b.dispatcher.StartJob(jobID, toBatch(actions, targets, password, payload), func(tasks []domain.Task, err error) {
		done := map[string]any{"job_id": jobID, "tasks": tasks}
		if err != nil {
			done["error"] = err.Error()
		}
		b.emit("job_done", done)
	})
}

// CancelJob 取消指定 job
func (b *Backend) CancelJob(jobID string) bool { return b.dispatcher.Cancel(jobID) }

// HasJob job 是否仍在运行
func (b *Backend) HasJob(jobID string) bool { return b.dispatcher.HasJob(jobID) }

// ---- 凭据 ----

// HasCachedCredential 首次成功后前端据此隐藏密码输入框
func (b *Backend) HasCachedCredential() bool {
	_, ok := b.vault.Cached()
	return ok
}

// ClearCredential 操作员显式登出
func (b *Backend) ClearCredential() { b.vault.Clear() }

// ---- 修复与备份 ----

// FixSSHKeys 对密钥不匹配的目标清理 known_hosts
func (b *Backend) FixSSHKeys(ips []string) (map[string]domain.Result, error) {
	return b.dispatcher.FixKeys(context.Background(), ips)
}

// ListBackups 列出目标上的快捷方式备份；system=true 列系统备份。
// 传输层失败（超时/连不上）以 error 透出，前端提示原样展示。
func (b *Backend) ListBackups(ip, password string, system bool) (client.BackupsResponse, error) {
	if password == "" {
		if cred, ok := b.vault.Cached(); ok {
			password = cred
		}
	}
	out, res := b.client.ListBackups(context.Background(), ip, password, system)
	if !res.Success {
		return out, errors.New(res.Message)
	}
	return out, nil
}

// ---- VNC 网格 ----

// OpenGrid 存入一次性交接载荷，返回令牌；网格页面凭令牌取走
func (b *Backend) OpenGrid(ips []string, password string) (string, error) {
	if len(ips) == 0 {
		return "", errors.New("目标列表为空")
	}
	if password == "" {
		cred, ok := b.vault.Cached()
		if !ok {
			return "", errors.New("缺少 SSH 密码")
		}
		password = cred
	}
	return b.handoff.Put(vnc.Handoff{IPs: ips, Password: password}), nil
}

// EstablishGrid 取走令牌并为每台目标建立隧道，状态经 grid_state 推送。
// 令牌只能用一次，重放必然落空。
func (b *Backend) EstablishGrid(token string) error {
	h, ok := b.handoff.Take(token)
	if !ok {
		return errors.New("令牌无效或已被使用")
	}
	go b.orch.Establish(context.Background(), h.IPs, h.Password, b.cfg.MaxConcurrent, func(s domain.GridSession) {
		b.emit("grid_state", s)
	})
	return nil
}

// ---- 历史 ----

// RecentHistory 最近历史
func (b *Backend) RecentHistory(limit int) ([]domain.DispatchHistory, error) {
	return b.hRepo.ListRecent(limit)
}

// RecentHistoryFiltered 过滤历史（ip 与动作关键字模糊匹配）
func (b *Backend) RecentHistoryFiltered(limit int, ip, act string) ([]domain.DispatchHistory, error) {
	return b.hRepo.ListFiltered(limit, ip, act)
}

// ---- 目标清单 ----

// ListTargets 全量目标清单
func (b *Backend) ListTargets() ([]domain.TargetEntry, error) { return b.targets.ListAll() }

// UpsertTarget 保存或更新
func (b *Backend) UpsertTarget(t domain.TargetEntry) error { return b.targets.Save(&t) }

// DeleteTarget 删除
func (b *Backend) DeleteTarget(ip string) error { return b.targets.DeleteByIP(ip) }

// ImportTargets 导入 (format=json|csv)
func (b *Backend) ImportTargets(data string, format string) (int, error) {
	var ts []domain.TargetEntry
	var err error
	if format == "csv" {
		ts, err = importexport.ParseTargetsCSV([]byte(data))
	} else {
		ts, err = importexport.ParseTargetsJSON([]byte(data))
	}
	if err != nil {
		return 0, err
	}
	if err = importexport.ValidateTargets(ts); err != nil {
		return 0, err
	}
	if err = b.targets.BulkUpsert(ts); err != nil {
		return 0, err
	}
	return len(ts), nil
}

// ExportTargets 导出 (format=json|csv)
func (b *Backend) ExportTargets(format string) (string, error) {
	list, err := b.targets.ListAll()
	if err != nil {
		return "", err
	}
	if format == "csv" {
		return importexport.RenderTargetsCSV(list), nil
	}
	return importexport.SerializeTargetsJSON(list)
}

// Shutdown 钩子：清掉会话凭据
func (b *Backend) Shutdown(ctx context.Context) error {
	b.vault.Clear()
	return nil
}
