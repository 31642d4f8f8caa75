package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"notice-bot/api/internal/ocr"
)

type Config struct {
	Port string

	// OCR
	OCREngine      string
	OCROptions     ocr.Options
	VisionAPIKey   string
	VisionEndpoint string
	GeminiAPIKey   string
	GeminiModel    string
	YCOAuthToken   string
	YCFolderID     string
	RequestTimeout time.Duration
	MaxBodyBytes   int64

	// Storage
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	OCRCacheTTL   time.Duration
	HistoryMaxAge time.Duration

	// Telegram
	TelegramBotToken string
	WebhookURL       string

	LogLevel  string
	LogFormat string
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// Load reads .env (if present) and then the process environment. Missing
// credentials are not an error here: handlers report them per request.
func Load() (*Config, error) {
	_ = godotenv.Load()

	feature, err := ocr.ParseFeatureType(getEnv("OCR_FEATURE_TYPE", string(ocr.DocumentTextDetection)))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		OCREngine: strings.ToLower(getEnv("OCR_ENGINE", "vision")),
		OCROptions: ocr.Options{
			FeatureType:   feature,
			LanguageHints: splitList(getEnv("OCR_LANGUAGE_HINTS", "ko")),
		},
		VisionAPIKey:   os.Getenv("GOOGLE_VISION_API_KEY"),
		VisionEndpoint: getEnv("VISION_ENDPOINT", ""),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		YCOAuthToken:   os.Getenv("YC_OAUTH_TOKEN"),
		YCFolderID:     getEnv("YC_FOLDER_ID", ""),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.OCRCacheTTL, err = durationEnv("OCR_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.HistoryMaxAge, err = durationEnv("HISTORY_MAX_AGE", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	maxMB, err := intEnv("MAX_BODY_MB", 10)
	if err != nil {
		return nil, err
	}
	if maxMB <= 0 {
		return nil, fmt.Errorf("MAX_BODY_MB must be > 0, got %d", maxMB)
	}
	cfg.MaxBodyBytes = int64(maxMB) << 20

	return cfg, nil
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("bad %s: %w", k, err)
	}
	return d, nil
}

func intEnv(k string, def int) (int, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("bad %s: %w", k, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
