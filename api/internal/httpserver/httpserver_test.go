package httpserver

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notice-bot/api/internal/handle"
	"notice-bot/api/internal/notice"
	"notice-bot/api/internal/ocr"
)

type textEngine string

func (e textEngine) Name() string { return "vision" }
func (e textEngine) Recognize(context.Context, []byte, ocr.Options) (ocr.Result, error) {
	return ocr.Result{Text: string(e), HasFullText: true}, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	engs := ocr.NewEngines("vision")
	engs.Register("vision", textEngine("미납 요금 납부 요청"))
	h := handle.New(notice.New(engs, ocr.DefaultOptions()), 5*time.Second, 1<<20, nil)
	srv := httptest.NewServer(Routes(h, nil))
	t.Cleanup(srv.Close)
	return srv
}

func TestRoutes(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	body := `{"imageBase64":"` + base64.StdEncoding.EncodeToString([]byte("img")) + `"}`
	resp, err = http.Post(srv.URL+"/api/classify", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMiddleware_KeepsRequestID(t *testing.T) {
	srv := newServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get(RequestIDHeader))
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, "127.0.0.1:0", http.NotFoundHandler(), zap.NewNop()) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestBotRoutes(t *testing.T) {
	var hooked bool
	h := BotRoutes(
		func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) },
		"/webhook/abc",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hooked = true }),
		nil,
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "ok", rec.Body.String())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhook/abc", nil))
	assert.True(t, hooked)
}
