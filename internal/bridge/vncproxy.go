package bridge

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lanops/fleet-console/internal/domain"
)

const vncPort = 5900

// x11vnc 以会话用户身份常驻一次性启动；-forever 允许多次取景。
const startVNCCmd = `pgrep -u "$USER" x11vnc >/dev/null 2>&1 || ` +
	`(nohup x11vnc -display :0 -auth guess -forever -shared -nopw -rfbport 5900 >/dev/null 2>&1 &) ; sleep 1 ; ` +
	`pgrep -u "$USER" x11vnc >/dev/null 2>&1 && echo OK`

type vncRequest struct {
	IP       string `json:"ip"`
	Password string `json:"password"`
}

type vncGridRequest struct {
	IPs      []string `json:"ips"`
	Password string   `json:"password"`
}

type vncSessionResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleStartVNC 在单台目标上拉起 VNC 服务端并返回取景 URL
// （相对路径，控制台换算成 ws:// 基址）。
func (s *Server) handleStartVNC(w http.ResponseWriter, r *http.Request) {
	var req vncRequest
	if !decodeReq(w, r, &req) {
		return
	}
	if req.IP == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, vncSessionResponse{Success: false, Message: "数据不完整：ip、password 为必填。"})
		return
	}
	writeJSON(w, http.StatusOK, s.startVNCOn(r.Context(), req.IP, req.Password))
}

// handleVNCGrid 对多台目标并行拉起 VNC（有界并发），
// 单台失败不影响其余目标。
func (s *Server) handleVNCGrid(w http.ResponseWriter, r *http.Request) {
	var req vncGridRequest
	if !decodeReq(w, r, &req) {
		return
	}
	if len(req.IPs) == 0 || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, domain.Result{Success: false, Message: "数据不完整：ips、password 为必填。"})
		return
	}
	type gridEntry struct {
		IP      string `json:"ip"`
		Success bool   `json:"success"`
		URL     string `json:"url,omitempty"`
		Message string `json:"message,omitempty"`
	}
	results := make([]gridEntry, len(req.IPs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.MaxConcurrent)
	for i, ip := range req.IPs {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, ip string) {
			defer wg.Done()
			defer func() { <-sem }()
			res := s.startVNCOn(r.Context(), ip, req.Password)
			results[i] = gridEntry{IP: ip, Success: res.Success, URL: res.URL, Message: res.Message}
		}(i, ip)
	}
	wg.Wait()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": results})
}

func (s *Server) startVNCOn(ctx context.Context, ip, password string) vncSessionResponse {
	cctx, cancel := context.WithTimeout(ctx, s.sshTimeout())
	defer cancel()
	stdout, _, exitCode, err := s.exec.Exec(cctx, ip, password, startVNCCmd, s.sshTimeout())
	if err != nil {
		res := s.normalizeExecErr(err, ActionRequest{IP: ip, Password: password})
		return vncSessionResponse{Success: false, Message: res.Message}
	}
	if exitCode != 0 || !strings.Contains(stdout, "OK") {
		return vncSessionResponse{Success: false, Message: "VNC 服务端启动失败，目标可能未安装 x11vnc。"}
	}
	return vncSessionResponse{Success: true, URL: "/vnc/" + ip}
}

// VNCProxy 把 /vnc/<ip> 的 WebSocket 连接桥接到目标 5900 端口，
// 供浏览器端 RFB 客户端直接取景。
type VNCProxy struct {
	upgrader websocket.Upgrader
}

func NewVNCProxy() *VNCProxy {
	return &VNCProxy{upgrader: websocket.Upgrader{
		ReadBufferSize:  8192,
		WriteBufferSize: 8192,
		// 控制台与桥接服务不同源
		CheckOrigin: func(*http.Request) bool { return true },
	}}
}

func (p *VNCProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := strings.TrimPrefix(r.URL.Path, "/vnc/")
	if ip == "" || strings.ContainsAny(ip, "/ ") {
		http.Error(w, "bad target", http.StatusBadRequest)
		return
	}
	target := net.JoinHostPort(ip, fmt.Sprint(vncPort))
	tcp, err := net.DialTimeout("tcp", target, 5*time.Second)
	if err != nil {
		http.Error(w, "vnc unreachable: "+err.Error(), http.StatusBadGateway)
		return
	}
	ws, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		tcp.Close()
		return
	}
	go pipeWSToTCP(ws, tcp)
	pipeTCPToWS(tcp, ws)
}

func pipeWSToTCP(ws *websocket.Conn, tcp net.Conn) {
	defer tcp.Close()
	defer ws.Close()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if _, err := tcp.Write(data); err != nil {
			return
		}
	}
}

func pipeTCPToWS(tcp net.Conn, ws *websocket.Conn) {
	defer tcp.Close()
	defer ws.Close()
	buf := make([]byte, 8192)
	for {
		n, err := tcp.Read(buf)
		if n > 0 {
			if werr := ws.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
