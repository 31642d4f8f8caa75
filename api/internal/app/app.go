// Package app wires configuration into engines, storage and the notice service.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"notice-bot/api/internal/config"
	"notice-bot/api/internal/notice"
	"notice-bot/api/internal/ocr"
	"notice-bot/api/internal/ocr/gemini"
	"notice-bot/api/internal/ocr/vision"
	"notice-bot/api/internal/ocr/yandex"
	"notice-bot/api/internal/store"
)

// Engines registers every known engine. One without its credential is
// registered as nil so requests for it fail with a clear message.
func Engines(cfg *config.Config) *ocr.Engines {
	engs := ocr.NewEngines(cfg.OCREngine)

	if cfg.VisionAPIKey != "" {
		var opts []option.ClientOption
		if cfg.VisionEndpoint != "" {
			opts = append(opts, vision.WithEndpoint(cfg.VisionEndpoint))
		}
		engs.Register("vision", vision.New(cfg.VisionAPIKey, opts...))
	} else {
		engs.Register("vision", nil)
	}

	if cfg.GeminiAPIKey != "" {
		engs.Register("gemini", gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel))
	} else {
		engs.Register("gemini", nil)
	}

	if cfg.YCOAuthToken != "" && cfg.YCFolderID != "" {
		engs.Register("yandex", yandex.New(cfg.YCOAuthToken, cfg.YCFolderID))
	} else {
		engs.Register("yandex", nil)
	}
	return engs
}

// Deps holds the optional backing stores. Close releases whatever was opened.
type Deps struct {
	DB    *sql.DB
	Repo  *store.NoticeRepo
	Redis *redis.Client
	Cache *store.TextCache
}

func (d *Deps) Close() {
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}

// Open connects to Postgres and Redis when they are configured. Neither is
// required: without them the service runs without history or cache.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Deps, error) {
	d := &Deps{}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("sql.Open: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(time.Hour)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		d.DB = db
		d.Repo = store.NewNoticeRepo(db)
		if err := d.Repo.Migrate(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("db connected", zap.String("dsn", SafeDSNSummary(cfg.DatabaseURL)))
	}

	if cfg.RedisAddr != "" {
		d.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		d.Cache = store.NewTextCache(d.Redis, cfg.OCRCacheTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		// the cache fails open, so an unreachable redis is only logged
		if err := d.Cache.Ping(pingCtx); err != nil {
			log.Warn("redis ping failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", cfg.RedisAddr))
		}
	}
	return d, nil
}

// Service builds the notice service over the configured engines and stores.
func Service(cfg *config.Config, d *Deps, log *zap.Logger) *notice.Service {
	opts := []notice.Option{notice.WithLogger(log)}
	if d.Cache != nil {
		opts = append(opts, notice.WithCache(d.Cache))
	}
	if d.Repo != nil {
		opts = append(opts, notice.WithHistory(d.Repo), notice.WithHistoryMaxAge(cfg.HistoryMaxAge))
	}
	return notice.New(Engines(cfg), cfg.OCROptions, opts...)
}

// SafeDSNSummary drops the password from a DSN for logging.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	host, port := u.Host, ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, u.User.Username())
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, u.User.Username())
}
