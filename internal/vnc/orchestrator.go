// Package vnc 负责网格视图：按目标批量建立 VNC 隧道，
// 以及向网格页面做一次性的凭据交接。
package vnc

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/lanops/fleet-console/internal/client"
	"github.com/lanops/fleet-console/internal/domain"
	"github.com/lanops/fleet-console/internal/runner"
)

// Orchestrator 用任务池为每台目标主机请求一条隧道。
// 单台失败只标记该台的会话状态，不影响整批。
type Orchestrator struct {
	client *client.Client
}

func NewOrchestrator(c *client.Client) *Orchestrator {
	return &Orchestrator{client: c}
}

// Establish 为每个目标建立一条隧道，返回 目标 → 会话 映射。
// onUpdate（可选）在每台主机状态变化时回调，供网格页面渐进渲染。
func (o *Orchestrator) Establish(ctx context.Context, ips []string, password string, concurrency int, onUpdate func(domain.GridSession)) map[string]domain.GridSession {
	var mu sync.Mutex
	sessions := make(map[string]domain.GridSession, len(ips))

	notify := func(s domain.GridSession) {
		mu.Lock()
		sessions[s.IP] = s
		mu.Unlock()
		if onUpdate != nil {
			onUpdate(s)
		}
	}

	units := make([]runner.Unit, 0, len(ips))
	for _, ip := range ips {
		ip := ip
		notify(domain.GridSession{IP: ip, State: domain.GridConnecting})
		units = append(units, runner.Unit{
			ID: ip,
			Run: func(ctx context.Context) domain.Result {
				resp, res := o.client.StartVNC(ctx, ip, password)
				if !res.Success {
					notify(domain.GridSession{IP: ip, State: domain.GridError, Message: res.Message})
					return res
				}
				if !resp.Success {
					msg := resp.Message
					if msg == "" {
						msg = "隧道建立失败"
					}
					notify(domain.GridSession{IP: ip, State: domain.GridError, Message: msg})
					return domain.Result{Success: false, Message: msg}
				}
				notify(domain.GridSession{IP: ip, State: domain.GridConnected, Port: resp.Port, URL: resp.URL})
				return domain.Result{Success: true, Message: "隧道已建立"}
			},
		})
	}
	runner.Run(ctx, units, concurrency, nil)
	return sessions
}

// Handoff 网格页面一次性取走的交接载荷。
type Handoff struct {
	IPs      []string `json:"ips"`
	Password string   `json:"password"`
}

// HandoffStore 写一次、读一次的短命存储槽。
// Take 原子地读并删，凭据无法通过重放同一 URL 再次取得。
type HandoffStore struct {
	mu    sync.Mutex
	slots map[string]Handoff
}

func NewHandoffStore() *HandoffStore {
	return &HandoffStore{slots: make(map[string]Handoff)}
}

// Put 存入载荷，返回新生成的会话令牌。
func (s *HandoffStore) Put(h Handoff) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.slots[token] = h
	s.mu.Unlock()
	return token
}

// Take 读取并删除。第二次读同一令牌必然落空。
func (s *HandoffStore) Take(token string) (Handoff, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.slots[token]
	if ok {
		delete(s.slots, token)
	}
	return h, ok
}
