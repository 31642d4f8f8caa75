package ocr

import (
	"errors"
	"fmt"
	"strings"
)

type FeatureType string

const (
	DocumentTextDetection FeatureType = "DOCUMENT_TEXT_DETECTION"
	TextDetection         FeatureType = "TEXT_DETECTION"
)

// ParseFeatureType accepts the feature name case-insensitively.
func ParseFeatureType(s string) (FeatureType, error) {
	switch FeatureType(strings.ToUpper(strings.TrimSpace(s))) {
	case DocumentTextDetection, "":
		return DocumentTextDetection, nil
	case TextDetection:
		return TextDetection, nil
	default:
		return "", fmt.Errorf("unknown OCR feature type %q", s)
	}
}

// Options tune a single recognition call.
type Options struct {
	FeatureType   FeatureType // DOCUMENT_TEXT_DETECTION handles bills and receipts better
	LanguageHints []string    // e.g. ["ko"]
}

// DefaultOptions are tuned for Korean documents.
func DefaultOptions() Options {
	return Options{
		FeatureType:   DocumentTextDetection,
		LanguageHints: []string{"ko"},
	}
}

type Result struct {
	Text        string `json:"text"`
	HasFullText bool   `json:"hasFullText"`
}

var ErrUnknownEngine = errors.New("unknown ocr engine")

// MissingCredentialError means the engine exists but has no API key configured.
type MissingCredentialError struct {
	Engine string
}

func (e *MissingCredentialError) Error() string {
	switch e.Engine {
	case "vision":
		return "Missing GOOGLE_VISION_API_KEY"
	case "gemini":
		return "Missing GEMINI_API_KEY"
	case "yandex":
		return "Missing YC_OAUTH_TOKEN or YC_FOLDER_ID"
	default:
		return "Missing API key for " + e.Engine
	}
}

// UpstreamError is an error reported by the OCR provider itself.
type UpstreamError struct {
	Engine  string
	Status  int // HTTP status from the provider, 0 for per-image errors
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s ocr %d: %s", e.Engine, e.Status, e.Message)
	}
	return fmt.Sprintf("%s ocr: %s", e.Engine, e.Message)
}
