// Package service 编排动作批次：校验 → 逐动作顺序扇出 → 归并结果。
// 动作间严格串行（上一动作对全部目标扇出完毕才开始下一个），
// 动作内对目标的扇出交给固定宽度任务池。
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lanops/fleet-console/internal/action"
	"github.com/lanops/fleet-console/internal/client"
	"github.com/lanops/fleet-console/internal/domain"
	"github.com/lanops/fleet-console/internal/progress"
	"github.com/lanops/fleet-console/internal/runner"
	"github.com/lanops/fleet-console/pkg/secret"
)

// Batch 一次操作员提交：若干动作 × 若干目标。
type Batch struct {
	Actions  []domain.ActionID
	Targets  []string
	Password string
	Payload  map[string]any
}

// 校验错误（分类 (a)：不发起任何派发）。
var (
	ErrNoActions = errors.New("未选择任何动作")
	ErrNoTargets = errors.New("所选动作需要目标主机，但未选择任何目标")
	ErrNoCred    = errors.New("缺少 SSH 密码")
)

// 主机密钥变化的特征文本。命中则该任务可走 /fix-ssh-keys 修复。
var keyMismatchMarkers = []string{
	"knownhosts: key mismatch",
	"knownhosts: key is unknown",
	"REMOTE HOST IDENTIFICATION HAS CHANGED",
	"known_hosts",
}

// Dispatcher 派发引擎。所有在途状态仅驻留内存，随会话消亡。
type Dispatcher struct {
	client      *client.Client
	vault       *secret.Vault
	progress    *progress.Aggregator
	hWriter     *HistoryWriter
	concurrency int

	mu   sync.Mutex
	jobs map[string]context.CancelFunc

	// 事件出口（由控制台后端注入，须快速返回）
	OnResult     func(domain.Task)
	OnStreamLine func(ip string, act domain.ActionID, line string)
	OnDiscovered func(ips []string)
}

func NewDispatcher(c *client.Client, vault *secret.Vault, agg *progress.Aggregator, hw *HistoryWriter, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Dispatcher{
		client:      c,
		vault:       vault,
		progress:    agg,
		hWriter:     hw,
		concurrency: concurrency,
		jobs:        make(map[string]context.CancelFunc),
	}
}

// Validate 派发前校验。不合法的批次不产生任何任务。
func (d *Dispatcher) Validate(b Batch) error {
	if len(b.Actions) == 0 {
		return ErrNoActions
	}
	needTarget := false
	for _, id := range b.Actions {
		a, ok := action.Lookup(id)
		if !ok {
			return errors.New("未知动作: " + string(id))
		}
		if !a.Local {
			needTarget = true
		}
	}
	if needTarget && len(b.Targets) == 0 {
		return ErrNoTargets
	}
	if needTarget && b.Password == "" {
		if _, ok := d.vault.Cached(); !ok {
			return ErrNoCred
		}
	}
	return nil
}

// taskCount 任务数恒等式：|目标| × |非本地动作| + |本地动作|。
func taskCount(b Batch) int {
	n := 0
	for _, id := range b.Actions {
		if a, ok := action.Lookup(id); ok && a.Local {
			n++
		} else {
			n += len(b.Targets)
		}
	}
	return n
}

// RunBatch 同步执行整批，返回全部任务（含结果）。
func (d *Dispatcher) RunBatch(ctx context.Context, b Batch) ([]domain.Task, error) {
	if err := d.Validate(b); err != nil {
		return nil, err
	}
	if b.Password == "" {
		if cred, ok := d.vault.Cached(); ok {
			b.Password = cred
		}
	}
	d.progress.Begin(taskCount(b), batchLabel(b))

	var all []domain.Task
	for _, id := range b.Actions {
		// 上一动作的扇出完全结束才进入下一动作
		tasks := d.runAction(ctx, id, b)
		all = append(all, tasks...)
		if ctx.Err() != nil {
			break
		}
	}
	return all, nil
}

// StartJob 异步执行一批，返回 jobID（传空则自动生成）。
func (d *Dispatcher) StartJob(jobID string, b Batch, done func([]domain.Task, error)) (string, error) {
	if err := d.Validate(b); err != nil {
		return "", err
	}
	if jobID == "" {
		jobID = uuid.NewString()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.jobs[jobID] = cancel
	d.mu.Unlock()
	go func() {
		tasks, err := d.RunBatch(ctx, b)
		d.mu.Lock()
		delete(d.jobs, jobID)
		d.mu.Unlock()
		if done != nil {
			done(tasks, err)
		}
	}()
	return jobID, nil
}

// Cancel 取消指定 job。
func (d *Dispatcher) Cancel(jobID string) bool {
	d.mu.Lock()
	cancel, ok := d.jobs[jobID]
	d.mu.Unlock()
	if ok {
		cancel()
		return true
	}
	return false
}

// HasJob 判断 job 是否仍在运行。
func (d *Dispatcher) HasJob(jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.jobs[jobID]
	return ok
}

// FixKeys 对密钥不匹配的目标发起 known_hosts 修复。
func (d *Dispatcher) FixKeys(ctx context.Context, ips []string) (map[string]domain.Result, error) {
	return d.client.FixKeys(ctx, ips)
}

// runAction 单个动作对全部目标的扇出。
func (d *Dispatcher) runAction(ctx context.Context, id domain.ActionID, b Batch) []domain.Task {
	a, _ := action.Lookup(id)

	var tasks []*domain.Task
	if a.Local {
		tasks = append(tasks, &domain.Task{ID: uuid.NewString(), Action: id, Payload: b.Payload, Status: domain.StatusPending})
	} else {
		for _, ip := range b.Targets {
			tasks = append(tasks, &domain.Task{ID: uuid.NewString(), TargetIP: ip, Action: id, Payload: b.Payload, Status: domain.StatusPending})
		}
	}

	byID := make(map[string]*domain.Task, len(tasks))
	units := make([]runner.Unit, 0, len(tasks))
	for _, t := range tasks {
		t := t
		byID[t.ID] = t
		units = append(units, runner.Unit{
			ID: t.ID,
			Run: func(ctx context.Context) domain.Result {
				t.Status = domain.StatusRunning
				t.StartedAt = time.Now()
				return d.execute(ctx, a, t, b)
			},
		})
	}

	runner.Run(ctx, units, d.concurrency, func(u runner.Unit, res domain.Result) {
		t := byID[u.ID]
		t.FinishedAt = time.Now()
		t.Result = res
		if res.Success {
			t.Status = domain.StatusSuccess
			// 首个成功任务缓存会话凭据，前端据此隐藏密码输入
			if b.Password != "" {
				d.vault.Cache(b.Password)
			}
		} else {
			t.Status = domain.StatusFailure
			t.KeyMismatch = isKeyMismatch(res)
		}
		d.progress.Record()
		d.writeHistory(t, b.Password)
		if d.OnResult != nil {
			d.OnResult(*t)
		}
	})

	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, *t)
	}
	return out
}

// execute 选路：本地动作 / 流式动作 / 普通动作。
func (d *Dispatcher) execute(ctx context.Context, a domain.Action, t *domain.Task, b Batch) domain.Result {
	switch {
	case a.Local:
		ips, res := d.client.DiscoverIPs(ctx)
		if res.Success && d.OnDiscovered != nil {
			d.OnDiscovered(ips)
		}
		return res
	case a.Streaming:
		return d.client.Stream(ctx, t.TargetIP, t.Action, b.Password, b.Payload, func(line string) {
			if d.OnStreamLine != nil {
				d.OnStreamLine(t.TargetIP, t.Action, line)
			}
		})
	default:
		return d.client.Execute(ctx, t.TargetIP, t.Action, b.Password, b.Payload)
	}
}

// writeHistory 入库前双重脱敏：会话凭据可能尚未入库（整批失败时
// vault 为空），批次密码也要遮掉。
func (d *Dispatcher) writeHistory(t *domain.Task, password string) {
	if d.hWriter == nil {
		return
	}
	redact := func(s string) string {
		return secret.Redact(d.vault.Redact(s), password)
	}
	d.hWriter.Write(domain.DispatchHistory{
		TargetIP:   t.TargetIP,
		Action:     string(t.Action),
		Success:    t.Result.Success,
		Message:    redact(t.Result.Message),
		Details:    redact(t.Result.Details),
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
		DurationMs: t.FinishedAt.Sub(t.StartedAt).Milliseconds(),
	})
}

func isKeyMismatch(res domain.Result) bool {
	text := res.Message + "\n" + res.Details
	for _, m := range keyMismatchMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func batchLabel(b Batch) string {
	if len(b.Actions) == 1 {
		if a, ok := action.Lookup(b.Actions[0]); ok {
			return a.Label
		}
	}
	return "批量派发"
}
