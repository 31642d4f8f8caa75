package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"notice-bot/api/internal/logger"
	"notice-bot/api/internal/notice"
	"notice-bot/api/internal/ocr"
	"notice-bot/api/internal/util"
)

type Handle struct {
	svc     *notice.Service
	timeout time.Duration
	maxBody int64
	log     *zap.Logger
}

func New(svc *notice.Service, timeout time.Duration, maxBody int64, log *zap.Logger) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handle{
		svc:     svc,
		timeout: timeout,
		maxBody: maxBody,
		log:     log,
	}
}

type errorResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeError maps pipeline errors to HTTP statuses.
func (h *Handle) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		mc *ocr.MissingCredentialError
		up *ocr.UpstreamError
	)
	switch {
	case errors.As(err, &mc):
		writeFail(w, http.StatusInternalServerError, mc.Error())
	case errors.Is(err, ocr.ErrUnknownEngine):
		writeFail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, util.ErrEmptyImage):
		writeFail(w, http.StatusBadRequest, "Missing imageBase64")
	case errors.As(err, &up):
		msg := up.Message
		if msg == "" {
			msg = up.Engine + " API error"
		}
		resp := errorResponse{Error: msg}
		if up.Status > 0 {
			resp.Detail = fmt.Sprintf("%s status %d", up.Engine, up.Status)
		}
		writeJSON(w, http.StatusBadGateway, resp)
	default:
		logger.FromContext(r.Context(), h.log).Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Server error", Detail: err.Error()})
	}
}

// withDeadline honours X-Request-Timeout or ?timeoutSec= (seconds).
func (h *Handle) withDeadline(r *http.Request) (context.Context, context.CancelFunc) {
	deadline := h.timeout
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	}
	if deadline <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), deadline)
}

func (h *Handle) limitBody(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
