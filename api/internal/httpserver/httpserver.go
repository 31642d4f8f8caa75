package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notice-bot/api/internal/handle"
	"notice-bot/api/internal/logger"
	"notice-bot/api/internal/metrics"
)

const RequestIDHeader = "X-Request-ID"

// Routes builds the public API mux.
func Routes(h *handle.Handle, log *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.Healthz)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/ocr", h.OCR)
	mux.HandleFunc("/api/classify", h.Classify)
	mux.HandleFunc("/api/classify/text", h.ClassifyText)
	mux.HandleFunc("/api/stats", h.Stats)

	return Middleware(log, mux)
}

// BotRoutes serves the endpoints next to the bot: the health probe, metrics
// and, in webhook mode, the Telegram webhook.
func BotRoutes(health http.HandlerFunc, webhookPath string, webhook http.Handler, log *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health)
	mux.Handle("/metrics", promhttp.Handler())
	if webhookPath != "" && webhook != nil {
		mux.Handle(webhookPath, webhook)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("notice bot"))
	})
	return Middleware(log, mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware assigns a request ID, puts a request-scoped logger into the
// context and records the request duration.
func Middleware(log *zap.Logger, next http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		reqLog := log.With(zap.String("request_id", id))
		r = r.WithContext(logger.WithContext(r.Context(), reqLog))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		took := time.Since(start)
		metrics.RecordHTTPRequestDuration(r.Method, path, strconv.Itoa(rec.status), took)
		if path != "/healthz" && path != "/metrics" {
			reqLog.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("took", took),
			)
		}
	})
}

// Run serves handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	}
}
