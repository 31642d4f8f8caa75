package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"

	"notice-bot/api/internal/ocr"
)

type annotateCall struct {
	Requests []struct {
		Image struct {
			Content string `json:"content"`
		} `json:"image"`
		Features []struct {
			Type string `json:"type"`
		} `json:"features"`
		ImageContext struct {
			LanguageHints       []string `json:"languageHints"`
			TextDetectionParams struct {
				EnableTextDetectionConfidenceScore bool `json:"enableTextDetectionConfidenceScore"`
			} `json:"textDetectionParams"`
		} `json:"imageContext"`
	} `json:"requests"`
}

func newFakeVision(t *testing.T, status int, body string, seen *annotateCall) *Engine {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/images:annotate", r.URL.Path)
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New("test-key", WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
}

func TestRecognize_FullText(t *testing.T) {
	var seen annotateCall
	e := newFakeVision(t, http.StatusOK, `{"responses":[{
		"fullTextAnnotation":{"text":"국세청 홈택스\n\n\n현금영수증 발급\n"},
		"textAnnotations":[{"description":"무시됨"}]
	}]}`, &seen)

	res, err := e.Recognize(context.Background(), []byte("img"), ocr.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "국세청 홈택스\n\n현금영수증 발급", res.Text)
	assert.True(t, res.HasFullText)

	require.Len(t, seen.Requests, 1)
	req := seen.Requests[0]
	assert.Equal(t, "aW1n", req.Image.Content)
	require.Len(t, req.Features, 1)
	assert.Equal(t, "DOCUMENT_TEXT_DETECTION", req.Features[0].Type)
	assert.Equal(t, []string{"ko"}, req.ImageContext.LanguageHints)
	assert.True(t, req.ImageContext.TextDetectionParams.EnableTextDetectionConfidenceScore)
}

func TestRecognize_FallbackToAnnotation(t *testing.T) {
	var seen annotateCall
	e := newFakeVision(t, http.StatusOK, `{"responses":[{
		"textAnnotations":[{"description":"  인증번호는 123456입니다 "},{"description":"인증번호는"}]
	}]}`, &seen)

	res, err := e.Recognize(context.Background(), []byte("img"), ocr.Options{FeatureType: ocr.TextDetection})
	require.NoError(t, err)
	assert.Equal(t, "인증번호는 123456입니다", res.Text)
	assert.False(t, res.HasFullText)
	assert.Equal(t, "TEXT_DETECTION", seen.Requests[0].Features[0].Type)
}

func TestRecognize_Empty(t *testing.T) {
	e := newFakeVision(t, http.StatusOK, `{"responses":[{}]}`, nil)
	res, err := e.Recognize(context.Background(), []byte("img"), ocr.DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Text)
}

func TestRecognize_UpstreamStatus(t *testing.T) {
	e := newFakeVision(t, http.StatusForbidden,
		`{"error":{"code":403,"message":"API key not valid. Please pass a valid API key.","status":"PERMISSION_DENIED"}}`, nil)

	_, err := e.Recognize(context.Background(), []byte("img"), ocr.DefaultOptions())
	var up *ocr.UpstreamError
	require.True(t, errors.As(err, &up), "got %v", err)
	assert.Equal(t, http.StatusForbidden, up.Status)
	assert.Equal(t, "API key not valid. Please pass a valid API key.", up.Message)
}

func TestRecognize_PerImageError(t *testing.T) {
	e := newFakeVision(t, http.StatusOK, `{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`, nil)

	_, err := e.Recognize(context.Background(), []byte("img"), ocr.DefaultOptions())
	var up *ocr.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, 0, up.Status)
	assert.Equal(t, "Bad image data.", up.Message)
}

func TestRecognize_MissingKey(t *testing.T) {
	_, err := New("  ").Recognize(context.Background(), []byte("img"), ocr.DefaultOptions())
	var mc *ocr.MissingCredentialError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, "Missing GOOGLE_VISION_API_KEY", err.Error())
}

func TestRecognize_RetriesClientBuild(t *testing.T) {
	e := newFakeVision(t, http.StatusOK, `{"responses":[{"fullTextAnnotation":{"text":"납부 안내"}}]}`, nil)
	build := e.newService
	calls := 0
	e.newService = func(ctx context.Context, opts ...option.ClientOption) (*visionapi.Service, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transport unavailable")
		}
		return build(ctx, opts...)
	}

	_, err := e.Recognize(context.Background(), []byte("img"), ocr.DefaultOptions())
	require.Error(t, err)

	res, err := e.Recognize(context.Background(), []byte("img"), ocr.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "납부 안내", res.Text)

	_, err = e.Recognize(context.Background(), []byte("img"), ocr.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
