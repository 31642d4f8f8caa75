package handle

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"notice-bot/api/internal/logger"
	"notice-bot/api/internal/notice"
)

type TextRequest struct {
	Text string `json:"text"`
}

type StatsResponse struct {
	OK         bool             `json:"ok"`
	Categories map[string]int64 `json:"categories"`
}

// Classify handles POST /api/classify: OCR then classification. The body is
// the explanation object itself.
func (h *Handle) Classify(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readImage(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.withDeadline(r)
	defer cancel()

	a, err := h.svc.Analyze(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logger.FromContext(ctx, h.log).Info("classified",
		zap.String("engine", a.Engine),
		zap.String("category", a.Classification.Category.String()),
		zap.Bool("cached", a.Cached),
	)
	writeJSON(w, http.StatusOK, a.Classification)
}

// ClassifyText handles POST /api/classify/text.
func (h *Handle) ClassifyText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeFail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	h.limitBody(w, r)
	var req TextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "Missing text")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.ClassifyText(req.Text, sourceHTTP))
}

// Stats handles GET /api/stats.
func (h *Handle) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeFail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	stats, err := h.svc.Stats(r.Context())
	if errors.Is(err, notice.ErrNoHistory) {
		writeFail(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{OK: true, Categories: stats})
}
