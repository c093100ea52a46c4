package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lanops/fleet-console/internal/domain"
)

func TestExecute_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gerenciar_atalhos_ip" {
			t.Errorf("路径错误: %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["ip"] != "10.0.0.1" || body["action"] != "desativar" {
			t.Errorf("请求体错误: %v", body)
		}
		// 动作专属载荷与基础字段合并在同一层
		if body["message"] != "hello" {
			t.Errorf("载荷未合并: %v", body)
		}
		_ = json.NewEncoder(w).Encode(domain.Result{Success: true, Message: "done"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res := c.Execute(context.Background(), "10.0.0.1", domain.ActionDisableShortcuts, "pw", map[string]any{"message": "hello"})
	if !res.Success || res.Message != "done" {
		t.Fatalf("期望成功, got %+v", res)
	}
}

func TestExecute_HTTPErrorWithBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(domain.Result{Success: false, Message: "数据不完整"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res := c.Execute(context.Background(), "10.0.0.1", domain.ActionReboot, "pw", nil)
	if res.Success {
		t.Fatalf("HTTP 400 不应成功")
	}
	if res.Message != "数据不完整" {
		t.Fatalf("应提取服务端 message, got %q", res.Message)
	}
}

func TestExecute_HTTPErrorNoBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	res := c.Execute(context.Background(), "10.0.0.1", domain.ActionReboot, "pw", nil)
	if res.Success {
		t.Fatalf("HTTP 502 不应成功")
	}
	if res.Message != http.StatusText(http.StatusBadGateway) {
		t.Fatalf("空响应体应退回状态文本, got %q", res.Message)
	}
}

// 超时信息与连接错误信息必须可区分
func TestExecute_TimeoutDistinguishable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetTimeout(50 * time.Millisecond)
	res := c.Execute(context.Background(), "10.0.0.1", domain.ActionSendMessage, "pw", nil)
	if res.Success {
		t.Fatalf("超时不应成功")
	}
	if !strings.Contains(res.Message, "操作超时") {
		t.Fatalf("超时信息错误: %q", res.Message)
	}
}

func TestExecute_ConnectionError(t *testing.T) {
	// 先开再关，端口必然拒绝连接
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := New(base)
	res := c.Execute(context.Background(), "10.0.0.1", domain.ActionSendMessage, "pw", nil)
	if res.Success {
		t.Fatalf("连不上不应成功")
	}
	if !strings.Contains(res.Message, "连接错误") {
		t.Fatalf("连接错误信息错误: %q", res.Message)
	}
	if strings.Contains(res.Message, "操作超时") {
		t.Fatalf("连接错误与超时信息混淆")
	}
}

func TestListBackups_PathSelection(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(BackupsResponse{Success: true, Backups: map[string][]string{"Desktop": {"a.desktop"}}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	out, res := c.ListBackups(context.Background(), "10.0.0.1", "pw", false)
	if !res.Success || !out.Success {
		t.Fatalf("备份请求失败: %+v %+v", out, res)
	}
	if gotPath != "/list-backups" {
		t.Fatalf("路径错误: %s", gotPath)
	}
	_, _ = c.ListBackups(context.Background(), "10.0.0.1", "pw", true)
	if gotPath != "/list-system-backups" {
		t.Fatalf("system 路径错误: %s", gotPath)
	}
}

func TestDiscoverIPs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("discover 应为 GET, got %s", r.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "ips": []string{"192.168.0.101", "192.168.0.102"}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	ips, res := c.DiscoverIPs(context.Background())
	if !res.Success || len(ips) != 2 {
		t.Fatalf("扫描失败: %v %+v", ips, res)
	}
}

func TestFixKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IPs []string `json:"ips"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		results := map[string]domain.Result{}
		for _, ip := range body.IPs {
			results[ip] = domain.Result{Success: true, Message: "cleaned"}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	defer srv.Close()

	c := New(srv.URL)
	out, err := c.FixKeys(context.Background(), []string{"10.0.0.1", "10.0.0.2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || !out["10.0.0.1"].Success {
		t.Fatalf("fix-keys 结果错误: %v", out)
	}
}
