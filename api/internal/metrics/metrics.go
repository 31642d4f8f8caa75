package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "path", "status"},
	)

	OCRCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocr_call_duration_seconds",
			Help:    "OCR provider call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"engine", "status"},
	)

	NoticeClassifiedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notice_classified_total",
			Help: "Total number of classified notices",
		},
		[]string{"category", "source"},
	)

	OCRCacheCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_cache_total",
			Help: "OCR text cache lookups",
		},
		[]string{"result"}, // hit, miss, error, history
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordOCRCallDuration(engine, status string, duration time.Duration) {
	OCRCallDuration.WithLabelValues(engine, status).Observe(duration.Seconds())
}

func IncrementNoticeClassified(category, source string) {
	NoticeClassifiedCount.WithLabelValues(category, source).Inc()
}

func IncrementOCRCache(result string) {
	OCRCacheCount.WithLabelValues(result).Inc()
}
