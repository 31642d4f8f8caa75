package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"notice-bot/api/internal/ocr"
	"notice-bot/api/internal/util"
)

const name = "gemini"

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Engine struct {
	APIKey string
	Model  string

	mu       sync.Mutex
	model    generator
	newModel func(ctx context.Context, langs []string) (generator, error)
}

func New(apiKey, model string) *Engine {
	e := &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
	e.newModel = e.dial
	return e
}

func (e *Engine) Name() string { return name }

// dial opens the client. The engine keeps it for its whole life.
func (e *Engine) dial(ctx context.Context, langs []string) (generator, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return nil, err
	}
	m := cl.GenerativeModel(e.Model)
	if m == nil {
		_ = cl.Close()
		return nil, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "text/plain",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt(langs))},
	}
	return m, nil
}

func (e *Engine) modelFor(ctx context.Context, langs []string) (generator, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		return e.model, nil
	}
	m, err := e.newModel(ctx, langs)
	if err != nil {
		return nil, err
	}
	e.model = m
	return m, nil
}

// Recognize asks the model for a verbatim transcription of the image. Gemini
// has no separate full-text layer, so HasFullText is set whenever text came back.
func (e *Engine) Recognize(ctx context.Context, image []byte, opt ocr.Options) (ocr.Result, error) {
	if e.APIKey == "" {
		return ocr.Result{}, &ocr.MissingCredentialError{Engine: name}
	}
	m, err := e.modelFor(context.WithoutCancel(ctx), opt.LanguageHints)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("gemini client: %w", err)
	}

	parts := []genai.Part{
		genai.Text("Transcribe every line of text in this image."),
		&genai.Blob{MIMEType: util.PickMIME("", "", image), Data: image},
	}
	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		up := &ocr.UpstreamError{Engine: name, Message: err.Error()}
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			up.Status, up.Message = gerr.Code, gerr.Message
		}
		return ocr.Result{}, up
	}

	text := ocr.Clean(util.StripCodeFences(firstText(resp)))
	return ocr.Result{Text: text, HasFullText: text != ""}, nil
}

func systemPrompt(langs []string) string {
	var b strings.Builder
	b.WriteString("You are an OCR engine. Return the text found in the image verbatim, ")
	b.WriteString("keeping line breaks and the original order. Do not translate, summarise or comment. ")
	b.WriteString("If there is no readable text, return an empty response.")
	if len(langs) > 0 {
		fmt.Fprintf(&b, " Expected languages: %s.", strings.Join(langs, ", "))
	}
	return b.String()
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
