package vnc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lanops/fleet-console/internal/client"
	"github.com/lanops/fleet-console/internal/domain"
)

func TestEstablish_PerTargetFailureIsolated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["ip"] == "10.0.0.2" {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "x11vnc missing"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "url": "/vnc/" + body["ip"].(string)})
	}))
	defer srv.Close()

	var mu sync.Mutex
	var updates []domain.GridSession
	o := NewOrchestrator(client.New(srv.URL))
	sessions := o.Establish(context.Background(), []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, "pw", 2, func(s domain.GridSession) {
		mu.Lock()
		updates = append(updates, s)
		mu.Unlock()
	})

	if sessions["10.0.0.1"].State != domain.GridConnected {
		t.Fatalf("10.0.0.1 应连上: %+v", sessions["10.0.0.1"])
	}
	if sessions["10.0.0.3"].State != domain.GridConnected {
		t.Fatalf("10.0.0.3 应连上: %+v", sessions["10.0.0.3"])
	}
	bad := sessions["10.0.0.2"]
	if bad.State != domain.GridError || bad.Message != "x11vnc missing" {
		t.Fatalf("10.0.0.2 应为错误态: %+v", bad)
	}
	// 每台至少两次状态回调 (connecting → 终态)
	if len(updates) < 6 {
		t.Fatalf("状态回调次数不足: %d", len(updates))
	}
}

func TestEstablish_TransportErrorMarksTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close() // 拒绝连接

	o := NewOrchestrator(client.New(base))
	sessions := o.Establish(context.Background(), []string{"10.0.0.9"}, "pw", 1, nil)
	if sessions["10.0.0.9"].State != domain.GridError {
		t.Fatalf("传输失败应落到错误态: %+v", sessions["10.0.0.9"])
	}
}

func TestHandoffStore_SingleUse(t *testing.T) {
	s := NewHandoffStore()
	token := s.Put(Handoff{IPs: []string{"10.0.0.1"}, Password: "pw"})
	if token == "" {
		t.Fatalf("令牌为空")
	}
	h, ok := s.Take(token)
	if !ok || h.Password != "pw" || len(h.IPs) != 1 {
		t.Fatalf("首次读取失败: %+v %v", h, ok)
	}
	// 同一令牌第二次必然落空
	if _, ok := s.Take(token); ok {
		t.Fatalf("令牌可重放")
	}
}

func TestHandoffStore_UnknownToken(t *testing.T) {
	s := NewHandoffStore()
	if _, ok := s.Take("never-issued"); ok {
		t.Fatalf("未签发的令牌不应命中")
	}
}

func TestHandoffStore_TokensIndependent(t *testing.T) {
	s := NewHandoffStore()
	t1 := s.Put(Handoff{Password: "a"})
	t2 := s.Put(Handoff{Password: "b"})
	if t1 == t2 {
		t.Fatalf("令牌重复")
	}
	h2, _ := s.Take(t2)
	if h2.Password != "b" {
		t.Fatalf("令牌错位: %+v", h2)
	}
	h1, ok := s.Take(t1)
	if !ok || h1.Password != "a" {
		t.Fatalf("取走 t2 影响了 t1")
	}
}
