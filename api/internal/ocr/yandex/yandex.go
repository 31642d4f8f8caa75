package yandex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"notice-bot/api/internal/ocr"
	"notice-bot/api/internal/util"
)

const (
	name            = "yandex"
	defaultEndpoint = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"
)

// Engine calls Yandex Vision OCR. Printed documents use the "page" model.
type Engine struct {
	iamc     *IamClient
	folderID string
	endpoint string
	httpc    *http.Client
}

func New(oauthToken, folderID string) *Engine {
	httpc := &http.Client{Timeout: 60 * time.Second}
	return &Engine{
		iamc:     NewIamClient(oauthToken, httpc),
		folderID: folderID,
		endpoint: defaultEndpoint,
		httpc:    httpc,
	}
}

func (e *Engine) Name() string { return name }

type request struct {
	Content       string   `json:"content"`
	MimeType      string   `json:"mimeType"`
	LanguageCodes []string `json:"languageCodes,omitempty"`
	Model         string   `json:"model"`
}

type textAnnotation struct {
	FullText string `json:"fullText"`
	Blocks   []struct {
		Lines []struct {
			Text string `json:"text"`
		} `json:"lines"`
	} `json:"blocks"`
}

type response struct {
	Result struct {
		TextAnnotation *textAnnotation `json:"textAnnotation"`
	} `json:"result"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Engine) Recognize(ctx context.Context, image []byte, opt ocr.Options) (ocr.Result, error) {
	if e.folderID == "" {
		return ocr.Result{}, &ocr.MissingCredentialError{Engine: name}
	}
	payload, err := json.Marshal(request{
		Content:       base64.StdEncoding.EncodeToString(image),
		MimeType:      mimeForOCR(image),
		LanguageCodes: opt.LanguageHints,
		Model:         "page",
	})
	if err != nil {
		return ocr.Result{}, err
	}

	resp, err := e.post(ctx, payload)
	if err != nil {
		return ocr.Result{}, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// the cached IAM token may have been revoked early; retry once
		resp.Body.Close()
		e.iamc.invalidate()
		if resp, err = e.post(ctx, payload); err != nil {
			return ocr.Result{}, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		var ae apiError
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &ae) == nil && ae.Message != "" {
			msg = ae.Message
		}
		return ocr.Result{}, &ocr.UpstreamError{Engine: name, Status: resp.StatusCode, Message: msg}
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ocr.Result{}, fmt.Errorf("yandex ocr: decode: %w", err)
	}
	ta := out.Result.TextAnnotation
	if ta == nil {
		return ocr.Result{}, nil
	}
	if t := ocr.Clean(ta.FullText); t != "" {
		return ocr.Result{Text: t, HasFullText: true}, nil
	}
	var lines []string
	for _, b := range ta.Blocks {
		for _, l := range b.Lines {
			if s := strings.TrimSpace(l.Text); s != "" {
				lines = append(lines, s)
			}
		}
	}
	return ocr.Result{Text: ocr.Clean(strings.Join(lines, "\n"))}, nil
}

func (e *Engine) post(ctx context.Context, payload []byte) (*http.Response, error) {
	token, err := e.iamc.Token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-folder-id", e.folderID)
	return e.httpc.Do(req)
}

// mimeForOCR maps sniffed content to the names the API accepts.
func mimeForOCR(image []byte) string {
	switch util.PickMIME("", "", image) {
	case "image/png":
		return "PNG"
	case "application/pdf":
		return "PDF"
	default:
		return "JPEG"
	}
}
