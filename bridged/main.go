// bridged 桥接服务：控制台经 HTTP 调用，服务端经 SSH 操作目标主机。
// 通常部署在与目标机房同网段的一台常驻主机上。
package main

import (
	"log"
	"net/http"
	"time"

	"github.com/lanops/fleet-console/internal/bridge"
	"github.com/lanops/fleet-console/pkg/config"
)

func main() {
	cfg := config.Load()
	executor := bridge.NewExecutor(cfg.SSHUser, cfg.MaxConcurrent)
	srv := bridge.NewServer(executor, cfg)

	httpSrv := &http.Server{
		Addr:    cfg.BridgeAddr,
		Handler: srv.Routes(),
		// 流式端点长时间不返回，只约束头部读取
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("[bridged] 监听 %s (ssh user=%s)", cfg.BridgeAddr, cfg.SSHUser)
	if err := httpSrv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
