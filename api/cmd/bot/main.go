package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"notice-bot/api/internal/app"
	"notice-bot/api/internal/config"
	"notice-bot/api/internal/httpserver"
	"notice-bot/api/internal/logger"
	"notice-bot/api/internal/ocr"
	"notice-bot/api/internal/store"
	"notice-bot/api/internal/telegram"
	"notice-bot/api/internal/util"
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

	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("open stores", zap.Error(err))
	}
	defer deps.Close()
	if deps.Repo != nil && cfg.HistoryMaxAge > 0 {
		go purgeLoop(ctx, deps.Repo, cfg.HistoryMaxAge, log)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal("telegram", zap.Error(err))
	}
	bot.Debug = false
	log.Info("telegram authorized", zap.String("bot", bot.Self.UserName))

	r := &telegram.Router{
		Bot:        bot,
		Service:    app.Service(cfg, deps, log),
		EngManager: ocr.NewManager(cfg.OCREngine),
		Log:        log,
		Timeout:    cfg.RequestTimeout,
	}

	addr := "0.0.0.0:" + cfg.Port
	health := healthHandler(deps)

	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		runWebhook(ctx, addr, bot, r, webhookURL, health, log)
		return
	}

	go func() {
		if err := httpserver.Run(ctx, addr, httpserver.BotRoutes(health, "", nil, log), log); err != nil {
			log.Error("health server", zap.Error(err))
		}
	}()
	runPolling(ctx, bot, func(upd tgbotapi.Update) { r.HandleUpdate(ctx, upd) }, log)
}

func runWebhook(ctx context.Context, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string, health http.HandlerFunc, log *zap.Logger) {
	// secret path derived from the token
	path := "/webhook/" + util.SHA256Hex([]byte(bot.Token))[:16]
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		log.Fatal("webhook", zap.Error(err))
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		log.Fatal("set webhook", zap.Error(err))
	}

	hook := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		upd, err := bot.HandleUpdate(req)
		if err != nil {
			logger.FromContext(req.Context(), log).Warn("bad webhook update", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
		// answer Telegram right away; OCR can take longer than its timeout
		go r.HandleUpdate(ctx, *upd)
	})

	log.Info("webhook mode", zap.String("addr", addr), zap.String("path", path))
	if err := httpserver.Run(ctx, addr, httpserver.BotRoutes(health, path, hook, log), log); err != nil {
		log.Fatal("http server", zap.Error(err))
	}
}

func healthHandler(deps *app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.DB.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// purgeLoop deletes history older than maxAge once at start and then hourly.
func purgeLoop(ctx context.Context, repo *store.NoticeRepo, maxAge time.Duration, log *zap.Logger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		n, err := repo.PurgeOlderThan(ctx, maxAge)
		if err != nil {
			log.Warn("history purge failed", zap.Error(err))
		} else if n > 0 {
			log.Info("history purged", zap.Int64("rows", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
