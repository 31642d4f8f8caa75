package handle

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"notice-bot/api/internal/logger"
	"notice-bot/api/internal/notice"
	"notice-bot/api/internal/util"
)

const sourceHTTP = "http"

type ImageRequest struct {
	ImageBase64 string `json:"imageBase64"`
}

type OCRMeta struct {
	HasFullText bool   `json:"hasFullText"`
	Engine      string `json:"engine"`
	Cached      bool   `json:"cached,omitempty"`
}

type OCRResponse struct {
	OK     bool     `json:"ok"`
	Text   string   `json:"text"`
	Reason string   `json:"reason,omitempty"`
	Meta   *OCRMeta `json:"meta,omitempty"`
}

// readImage validates the method, the engine and the body in that order and
// writes the error response itself. ok is false when a response was written.
func (h *Handle) readImage(w http.ResponseWriter, r *http.Request) (notice.Request, bool) {
	if r.Method != http.MethodPost {
		writeFail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return notice.Request{}, false
	}
	engine := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("engine")))
	if _, err := h.svc.Engine(engine); err != nil {
		h.writeError(w, r, err)
		return notice.Request{}, false
	}

	h.limitBody(w, r)
	var req ImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeFail(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return notice.Request{}, false
		}
		writeFail(w, http.StatusBadRequest, "Missing imageBase64")
		return notice.Request{}, false
	}
	if strings.TrimSpace(req.ImageBase64) == "" {
		writeFail(w, http.StatusBadRequest, "Missing imageBase64")
		return notice.Request{}, false
	}

	img, _, err := util.DecodeBase64MaybeDataURL(req.ImageBase64)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid imageBase64")
		return notice.Request{}, false
	}
	return notice.Request{Image: img, Engine: engine, Source: sourceHTTP}, true
}

// OCR handles POST /api/ocr.
func (h *Handle) OCR(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readImage(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.withDeadline(r)
	defer cancel()

	rec, err := h.svc.Recognize(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logger.FromContext(ctx, h.log).Info("ocr",
		zap.String("engine", rec.Engine),
		zap.Bool("cached", rec.Cached),
		zap.Int("text_len", len(rec.Text)),
	)

	if rec.Text == "" {
		writeJSON(w, http.StatusOK, OCRResponse{OK: true, Reason: "NO_TEXT_DETECTED"})
		return
	}
	writeJSON(w, http.StatusOK, OCRResponse{
		OK:   true,
		Text: rec.Text,
		Meta: &OCRMeta{HasFullText: rec.HasFullText, Engine: rec.Engine, Cached: rec.Cached},
	})
}
