// 本地独立预览服务器: 开发阶段实时预览 webui 三件套的改动,
// 不走 Wails 打包流程。用法: go run ./preview 后访问 http://localhost:8099
// 变更通过 SSE 通知浏览器 location.reload()。
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var watchFiles = []string{
	"webui/index.html",
	"webui/style.css",
	"webui/app.js",
}

var (
	lastModTime time.Time
	clientsMu   sync.Mutex
	clients     = make(map[chan string]struct{})
)

func main() {
	go watcher()

	http.HandleFunc("/", serveIndex)
	http.HandleFunc("/style.css", serveRaw("webui/style.css", "text/css"))
	http.HandleFunc("/app.js", serveRaw("webui/app.js", "text/javascript"))
	http.HandleFunc("/reload", sseHandler)

	log.Println("[preview] 启动 http://localhost:8099  (Ctrl+C 退出)")
	if err := http.ListenAndServe(":8099", nil); err != nil {
		log.Fatal(err)
	}
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile("webui/index.html")
	if err != nil {
		w.WriteHeader(500)
		_, _ = w.Write([]byte("read index.html error: " + err.Error()))
		return
	}
	// 预览模式没有 wails runtime，垫一个空实现避免 app.js 报错
	inject := []byte(`
<!-- live reload injected -->
<script>
window.runtime = window.runtime || { EventsOn(){}, EventsEmit(){} };
window.go = window.go || {};
const es = new EventSource('/reload');
es.onmessage = e => { if (e.data === 'reload') { console.log('[live] reload'); location.reload(); } };
</script>
`)
	data = append(data, inject...)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

func serveRaw(path string, mime string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(path)
		if err != nil {
			w.WriteHeader(404)
			_, _ = w.Write([]byte("not found"))
			return
		}
		w.Header().Set("Content-Type", mime+"; charset=utf-8")
		_, _ = w.Write(data)
	}
}

func sseHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan string, 4)
	clientsMu.Lock()
	clients[ch] = struct{}{}
	clientsMu.Unlock()
	defer func() {
		clientsMu.Lock()
		delete(clients, ch)
		clientsMu.Unlock()
	}()

	fmt.Fprintf(w, "data: ping\n\n")
	flusher, _ := w.(http.Flusher)
	flusher.Flush()

	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case msg := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func broadcast(msg string) {
	clientsMu.Lock()
	defer clientsMu.Unlock()
	for ch := range clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// 轮询侦测，避免引入 fsnotify
func watcher() {
	for {
		modified := false
		latest := lastModTime
		for _, f := range watchFiles {
			fi, err := os.Stat(f)
			if err != nil {
				continue
			}
			if fi.ModTime().After(latest) {
				latest = fi.ModTime()
				modified = true
			}
		}
		if modified && latest.After(lastModTime) {
			lastModTime = latest
			log.Println("[preview] 变更 -> reload", latest.Format(time.RFC3339Nano))
			broadcast("reload")
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// 允许从项目根目录执行, 修正相对路径
func init() {
	root, _ := os.Getwd()
	for i, f := range watchFiles {
		watchFiles[i] = filepath.Clean(filepath.Join(root, f))
	}
}
