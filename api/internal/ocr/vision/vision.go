// Package vision recognizes text with the Google Cloud Vision images:annotate API.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"

	"notice-bot/api/internal/ocr"
)

const name = "vision"

type Engine struct {
	apiKey string
	opts   []option.ClientOption

	mu         sync.Mutex
	svc        *visionapi.Service
	newService func(context.Context, ...option.ClientOption) (*visionapi.Service, error)
}

// New returns a Vision engine authenticated with an API key. Extra client
// options (endpoint, HTTP client) are appended after the key.
func New(apiKey string, extra ...option.ClientOption) *Engine {
	key := strings.TrimSpace(apiKey)
	opts := []option.ClientOption{option.WithAPIKey(key)}
	return &Engine{
		apiKey:     key,
		opts:       append(opts, extra...),
		newService: visionapi.NewService,
	}
}

func (e *Engine) Name() string { return name }

// service builds the client on first use. A failed build is not kept, so
// the next call tries again.
func (e *Engine) service(ctx context.Context) (*visionapi.Service, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.svc != nil {
		return e.svc, nil
	}
	svc, err := e.newService(ctx, e.opts...)
	if err != nil {
		return nil, err
	}
	e.svc = svc
	return svc, nil
}

func (e *Engine) Recognize(ctx context.Context, image []byte, opt ocr.Options) (ocr.Result, error) {
	if e.apiKey == "" {
		return ocr.Result{}, &ocr.MissingCredentialError{Engine: name}
	}
	svc, err := e.service(context.WithoutCancel(ctx))
	if err != nil {
		return ocr.Result{}, fmt.Errorf("vision client: %w", err)
	}

	resp, err := svc.Images.Annotate(buildRequest(image, opt)).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			msg := strings.TrimSpace(gerr.Message)
			if msg == "" {
				msg = "Vision API error"
			}
			return ocr.Result{}, &ocr.UpstreamError{Engine: name, Status: gerr.Code, Message: msg}
		}
		return ocr.Result{}, err
	}
	if len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return ocr.Result{}, nil
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return ocr.Result{}, &ocr.UpstreamError{Engine: name, Message: r.Error.Message}
	}

	var full string
	if r.FullTextAnnotation != nil {
		full = r.FullTextAnnotation.Text
	}
	annotations := make([]string, 0, len(r.TextAnnotations))
	for _, a := range r.TextAnnotations {
		if a != nil {
			annotations = append(annotations, a.Description)
		}
	}
	text, hasFull := ocr.PickText(full, annotations)
	return ocr.Result{Text: text, HasFullText: hasFull}, nil
}

func buildRequest(image []byte, opt ocr.Options) *visionapi.BatchAnnotateImagesRequest {
	feature := opt.FeatureType
	if feature == "" {
		feature = ocr.DocumentTextDetection
	}
	return &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{{
			Image:    &visionapi.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*visionapi.Feature{{Type: string(feature)}},
			ImageContext: &visionapi.ImageContext{
				LanguageHints: opt.LanguageHints,
				TextDetectionParams: &visionapi.TextDetectionParams{
					EnableTextDetectionConfidenceScore: true,
				},
			},
		}},
	}
}

// WithEndpoint points the engine at a different API root (proxy or test server).
func WithEndpoint(endpoint string) option.ClientOption {
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return option.WithEndpoint(endpoint)
}

// WithHTTPClient overrides the transport. The API key is then the caller's job.
func WithHTTPClient(c *http.Client) option.ClientOption {
	return option.WithHTTPClient(c)
}
