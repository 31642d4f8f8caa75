// Package notice ties OCR, caching, classification and history together.
package notice

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"notice-bot/api/internal/classify"
	"notice-bot/api/internal/logger"
	"notice-bot/api/internal/metrics"
	"notice-bot/api/internal/ocr"
	"notice-bot/api/internal/store"
	"notice-bot/api/internal/util"
)

var ErrNoHistory = errors.New("notice history is not configured")

// TextCache is satisfied by *store.TextCache.
type TextCache interface {
	Get(ctx context.Context, engine, imageHash string) (ocr.Result, bool, error)
	Set(ctx context.Context, engine, imageHash string, res ocr.Result) error
}

// History is satisfied by *store.NoticeRepo.
type History interface {
	FindByHash(ctx context.Context, imageHash, engine string, maxAge time.Duration) (*store.Notice, error)
	Upsert(ctx context.Context, n store.Notice) error
	CountByCategory(ctx context.Context) (map[string]int64, error)
}

type Service struct {
	engines *ocr.Engines
	opts    ocr.Options
	cache   TextCache
	history History
	maxAge  time.Duration
	log     *zap.Logger
}

type Option func(*Service)

func WithCache(c TextCache) Option { return func(s *Service) { s.cache = c } }
func WithHistory(h History) Option { return func(s *Service) { s.history = h } }

// WithHistoryMaxAge limits how old a stored recognition may be to be reused.
// Zero reuses rows of any age.
func WithHistoryMaxAge(d time.Duration) Option { return func(s *Service) { s.maxAge = d } }
func WithLogger(l *zap.Logger) Option          { return func(s *Service) { s.log = l } }

func New(engines *ocr.Engines, opts ocr.Options, options ...Option) *Service {
	s := &Service{engines: engines, opts: opts, log: zap.NewNop()}
	for _, o := range options {
		o(s)
	}
	return s
}

type Request struct {
	Image  []byte
	Engine string // "" means the default engine
	Source string
	ChatID int64
}

type Recognition struct {
	ImageHash string
	Engine    string
	Cached    bool
	ocr.Result
}

type Analysis struct {
	Recognition
	Classification classify.Result
}

// Engine resolves an engine without running it, so callers can report a
// configuration error before reading the request body.
func (s *Service) Engine(name string) (ocr.Engine, error) {
	return s.engines.GetEngine(name)
}

// Recognize runs OCR for the image, consulting the text cache first.
func (s *Service) Recognize(ctx context.Context, req Request) (Recognition, error) {
	eng, err := s.engines.GetEngine(req.Engine)
	if err != nil {
		return Recognition{}, err
	}
	if len(req.Image) == 0 {
		return Recognition{}, util.ErrEmptyImage
	}
	log := logger.FromContext(ctx, s.log)
	rec := Recognition{ImageHash: util.SHA256Hex(req.Image), Engine: eng.Name()}

	if s.cache != nil {
		res, ok, err := s.cache.Get(ctx, rec.Engine, rec.ImageHash)
		switch {
		case err != nil:
			metrics.IncrementOCRCache("error")
			log.Warn("ocr cache get failed", zap.String("image_hash", rec.ImageHash), zap.Error(err))
		case ok:
			metrics.IncrementOCRCache("hit")
			rec.Result, rec.Cached = res, true
			return rec, nil
		default:
			metrics.IncrementOCRCache("miss")
		}
	}

	if res, ok := s.fromHistory(ctx, rec); ok {
		rec.Result, rec.Cached = res, true
		return rec, nil
	}

	start := time.Now()
	res, err := eng.Recognize(ctx, req.Image, s.opts)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordOCRCallDuration(rec.Engine, status, time.Since(start))
	if err != nil {
		log.Warn("ocr failed", zap.String("engine", rec.Engine), zap.Error(err))
		return Recognition{}, err
	}
	rec.Result = res
	log.Debug("ocr done",
		zap.String("engine", rec.Engine),
		zap.Int("text_len", len(res.Text)),
		zap.Bool("has_full_text", res.HasFullText),
		zap.Duration("took", time.Since(start)),
	)

	// empty results are not cached so a retake of the same file is recognized again
	if s.cache != nil && res.Text != "" {
		if err := s.cache.Set(ctx, rec.Engine, rec.ImageHash, res); err != nil {
			log.Warn("ocr cache set failed", zap.String("image_hash", rec.ImageHash), zap.Error(err))
		}
	}
	return rec, nil
}

// fromHistory reuses a stored recognition of the same image and refills the
// text cache with it.
func (s *Service) fromHistory(ctx context.Context, rec Recognition) (ocr.Result, bool) {
	if s.history == nil {
		return ocr.Result{}, false
	}
	n, err := s.history.FindByHash(ctx, rec.ImageHash, rec.Engine, s.maxAge)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.FromContext(ctx, s.log).Warn("notice history lookup failed",
				zap.String("image_hash", rec.ImageHash), zap.Error(err))
		}
		return ocr.Result{}, false
	}
	metrics.IncrementOCRCache("history")
	res := ocr.Result{Text: n.Text, HasFullText: n.HasFullText}
	if s.cache != nil {
		if err := s.cache.Set(ctx, rec.Engine, rec.ImageHash, res); err != nil {
			logger.FromContext(ctx, s.log).Warn("ocr cache set failed", zap.String("image_hash", rec.ImageHash), zap.Error(err))
		}
	}
	return res, true
}

// Analyze recognizes the image and classifies its text.
func (s *Service) Analyze(ctx context.Context, req Request) (Analysis, error) {
	rec, err := s.Recognize(ctx, req)
	if err != nil {
		return Analysis{}, err
	}
	a := Analysis{Recognition: rec, Classification: s.ClassifyText(rec.Text, req.Source)}

	if s.history != nil && a.Classification.Category.Valid() {
		n := store.Notice{
			ImageHash:   rec.ImageHash,
			Engine:      rec.Engine,
			Source:      req.Source,
			ChatID:      req.ChatID,
			Text:        rec.Text,
			HasFullText: rec.HasFullText,
			Category:    a.Classification.Category.String(),
		}
		if err := s.history.Upsert(ctx, n); err != nil {
			logger.FromContext(ctx, s.log).Warn("notice history upsert failed",
				zap.String("image_hash", rec.ImageHash), zap.Error(err))
		}
	}
	return a, nil
}

// ClassifyText classifies already recognized text.
func (s *Service) ClassifyText(text, source string) classify.Result {
	res := classify.Classify(text)
	metrics.IncrementNoticeClassified(res.Category.String(), source)
	return res
}

// Stats returns notice counts per category, with every category present.
func (s *Service) Stats(ctx context.Context) (map[string]int64, error) {
	if s.history == nil {
		return nil, ErrNoHistory
	}
	counts, err := s.history.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(classify.Categories()))
	for _, c := range classify.Categories() {
		out[c.String()] = counts[c.String()]
	}
	return out, nil
}
