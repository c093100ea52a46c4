// Package client 封装对桥接服务 HTTP 面的调用。
// 非流式请求带 30 秒硬超时；所有失败路径（HTTP 错误/超时/连不上）
// 都归一化为 domain.Result，绝不向调用方抛出未处理故障。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/lanops/fleet-console/internal/domain"
)

// DefaultTimeout 非流式动作的请求时限。
const DefaultTimeout = 30 * time.Second

type Client struct {
	base    string
	httpc   *http.Client // 非流式；流式请求不设客户端超时，由远端进程自然终止
	timeout time.Duration
}

func New(base string) *Client {
	return &Client{base: base, httpc: &http.Client{}, timeout: DefaultTimeout}
}

// SetTimeout 覆盖非流式时限（测试用）。
func (c *Client) SetTimeout(d time.Duration) { c.timeout = d }

// Execute 对单个 (目标, 动作) 发起一次非流式请求。
func (c *Client) Execute(ctx context.Context, ip string, act domain.ActionID, password string, payload map[string]any) domain.Result {
	body := map[string]any{"ip": ip, "password": password, "action": string(act)}
	for k, v := range payload {
		body[k] = v
	}
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.postResult(rctx, "/gerenciar_atalhos_ip", body)
}

// StartVNCResponse /start-vnc 的响应体。
type StartVNCResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Port    int    `json:"port,omitempty"`
	Message string `json:"message,omitempty"`
}

// StartVNC 请求为目标主机建立一条 VNC 隧道。
func (c *Client) StartVNC(ctx context.Context, ip, password string) (StartVNCResponse, domain.Result) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	var out StartVNCResponse
	res := c.postInto(rctx, "/start-vnc", map[string]any{"ip": ip, "password": password}, &out)
	return out, res
}

// BackupsResponse /list-backups 与 /list-system-backups 的响应体。
type BackupsResponse struct {
	Success bool                `json:"success"`
	Backups map[string][]string `json:"backups,omitempty"`
	Message string              `json:"message,omitempty"`
}

// ListBackups 列出目标主机上的快捷方式备份；system=true 时列系统备份。
func (c *Client) ListBackups(ctx context.Context, ip, password string, system bool) (BackupsResponse, domain.Result) {
	path := "/list-backups"
	if system {
		path = "/list-system-backups"
	}
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	var out BackupsResponse
	res := c.postInto(rctx, path, map[string]any{"ip": ip, "password": password}, &out)
	return out, res
}

// FixKeys 请求桥接服务清理若干目标的 known_hosts 记录。
func (c *Client) FixKeys(ctx context.Context, ips []string) (map[string]domain.Result, error) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	b, _ := json.Marshal(map[string]any{"ips": ips})
	req, err := http.NewRequestWithContext(rctx, http.MethodPost, c.base+"/fix-ssh-keys", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out struct {
		Results map[string]domain.Result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// DiscoverIPs 本地动作：请求桥接服务扫描网段。
func (c *Client) DiscoverIPs(ctx context.Context) ([]string, domain.Result) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(rctx, http.MethodGet, c.base+"/discover-ips", nil)
	if err != nil {
		return nil, domain.Result{Success: false, Message: "请求构造失败", Details: err.Error()}
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, normalizeTransportErr(err)
	}
	defer resp.Body.Close()
	var out struct {
		Success bool     `json:"success"`
		IPs     []string `json:"ips"`
		Message string   `json:"message,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.Result{Success: false, Message: "响应解析失败", Details: err.Error()}
	}
	if !out.Success {
		return nil, domain.Result{Success: false, Message: firstNonEmpty(out.Message, "网段扫描失败")}
	}
	msg := fmt.Sprintf("发现 %d 台在线主机", len(out.IPs))
	if len(out.IPs) == 0 {
		msg = firstNonEmpty(out.Message, "网段内未发现在线主机")
	}
	return out.IPs, domain.Result{Success: true, Message: msg}
}

// postResult POST 后直接把响应体解为 Result。
func (c *Client) postResult(ctx context.Context, path string, body map[string]any) domain.Result {
	var out domain.Result
	if r := c.postInto(ctx, path, body, &out); !r.Success {
		return r
	}
	return out
}

// postInto POST 并解码到 out；返回的 Result 只描述传输层结论，
// 业务成败由 out 自身字段承载。
func (c *Client) postInto(ctx context.Context, path string, body map[string]any, out any) domain.Result {
	b, err := json.Marshal(body)
	if err != nil {
		return domain.Result{Success: false, Message: "请求构造失败", Details: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return domain.Result{Success: false, Message: "请求构造失败", Details: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return normalizeTransportErr(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return normalizeTransportErr(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 尽力从响应体提取服务端给出的 message/details，取不到再退回状态文本
		var errBody domain.Result
		if json.Unmarshal(raw, &errBody) == nil && errBody.Message != "" {
			errBody.Success = false
			return errBody
		}
		return domain.Result{Success: false, Message: http.StatusText(resp.StatusCode), Details: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.Result{Success: false, Message: "响应解析失败", Details: err.Error()}
	}
	return domain.Result{Success: true}
}

// normalizeTransportErr 区分超时与一般连接错误，供操作员判断
// “设备慢/离线” 还是 “后端没起来”。
func normalizeTransportErr(err error) domain.Result {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return domain.Result{
			Success: false,
			Message: "操作超时：动作超出时间预算，目标设备可能响应缓慢或已离线。",
			Details: err.Error(),
		}
	}
	return domain.Result{
		Success: false,
		Message: "连接错误：无法访问桥接服务，请确认其已启动。",
		Details: err.Error(),
	}
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
