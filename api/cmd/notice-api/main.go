package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"notice-bot/api/internal/app"
	"notice-bot/api/internal/config"
	"notice-bot/api/internal/handle"
	"notice-bot/api/internal/httpserver"
	"notice-bot/api/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("open stores", zap.Error(err))
	}
	defer deps.Close()

	svc := app.Service(cfg, deps, log)
	if _, err := svc.Engine(""); err != nil {
		// requests still get a proper 500 for this; warn at startup too
		log.Warn("default ocr engine unavailable", zap.String("engine", cfg.OCREngine), zap.Error(err))
	}

	h := handle.New(svc, cfg.RequestTimeout, cfg.MaxBodyBytes, log)
	addr := ":" + cfg.Port
	if err := httpserver.Run(ctx, addr, httpserver.Routes(h, log), log); err != nil {
		log.Fatal("http server", zap.Error(err))
	}
}
