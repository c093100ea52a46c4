package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/lanops/fleet-console/internal/client"
	"github.com/lanops/fleet-console/internal/progress"
	"github.com/lanops/fleet-console/internal/repository"
	"github.com/lanops/fleet-console/internal/service"
	"github.com/lanops/fleet-console/internal/vnc"
	"github.com/lanops/fleet-console/internal/wailsapi"
	"github.com/lanops/fleet-console/pkg/config"
	"github.com/lanops/fleet-console/pkg/secret"
	"github.com/lanops/fleet-console/webui"
)

func main() {
	cfg := config.Load()
	db, err := sql.Open("sqlite", cfg.DBPath())
	if err != nil {
		log.Fatal(err)
	}
	targetRepo := repository.NewTargetRepo(db)
	_ = targetRepo.EnsureSchema()
	hRepo := repository.NewHistoryRepo(db)
	_ = hRepo.EnsureSchema()
	hWriter := service.NewHistoryWriter(hRepo, cfg.HistoryFlushInterval, cfg.HistoryBatchSize)
	if cfg.HistoryRetentionDays > 0 || cfg.HistoryMaxRows > 0 {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				_ = hRepo.Cleanup(cfg.HistoryRetentionDays, cfg.HistoryMaxRows)
			}
		}()
	}

	c := client.New(cfg.BridgeBase)
	vault := secret.NewVault()

	// backend 稍后创建，进度发布经闭包转发
	var backend *wailsapi.Backend
	agg := progress.New(func(s progress.Snapshot) {
		if backend != nil {
			backend.EmitProgress(s)
		}
	})

	dispatcher := service.NewDispatcher(c, vault, agg, hWriter, cfg.MaxConcurrent)
	orch := vnc.NewOrchestrator(c)
	handoff := vnc.NewHandoffStore()
	backend = wailsapi.NewBackend(targetRepo, hRepo, dispatcher, orch, handoff, vault, c, cfg)

	app := &options.App{
		Title:       "机房批量管理控制台",
		Width:       1280,
		Height:      840,
		AssetServer: &assetserver.Options{Assets: webui.Assets},
		Bind:        []interface{}{backend},
		OnStartup: func(ctx context.Context) {
			backend.SetCtx(ctx)
			runtime.LogInfo(ctx, "Wails backend context initialized")
		},
		OnShutdown: func(ctx context.Context) {
			vault.Clear()
		},
	}
	if err := wails.Run(app); err != nil {
		log.Fatal(err)
	}
	hWriter.Close()
}
