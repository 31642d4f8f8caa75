package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct{ name string }

func (s stubEngine) Name() string { return s.name }
func (s stubEngine) Recognize(context.Context, []byte, Options) (Result, error) {
	return Result{Text: s.name}, nil
}

func TestClean(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"", ""},
		{"   \n\n  ", ""},
		{"  안녕하세요  ", "안녕하세요"},
		{"첫 줄\r\n둘째 줄", "첫 줄\n둘째 줄"},
		{"a\n\n\n\nb", "a\n\nb"},
		{"a   \n\t\n \nb", "a\n\nb"},
		{"a\nb\n\nc", "a\nb\n\nc"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, Clean(tc.in), "input %q", tc.in)
	}
}

func TestPickText(t *testing.T) {
	text, full := PickText("  전체 텍스트 \n", []string{"첫 주석"})
	assert.Equal(t, "전체 텍스트", text)
	assert.True(t, full)

	text, full = PickText("", []string{"", "  첫 주석  ", "둘째"})
	assert.Equal(t, "첫 주석", text)
	assert.False(t, full)

	text, full = PickText(" ", nil)
	assert.Empty(t, text)
	assert.False(t, full)
}

func TestParseFeatureType(t *testing.T) {
	ft, err := ParseFeatureType("text_detection")
	require.NoError(t, err)
	assert.Equal(t, TextDetection, ft)

	ft, err = ParseFeatureType("")
	require.NoError(t, err)
	assert.Equal(t, DocumentTextDetection, ft)

	_, err = ParseFeatureType("LABEL_DETECTION")
	assert.Error(t, err)
}

func TestEngines_GetEngine(t *testing.T) {
	engs := NewEngines("Vision")
	engs.Register("vision", stubEngine{name: "vision"})
	engs.Register("gemini", nil)

	e, err := engs.GetEngine("")
	require.NoError(t, err)
	assert.Equal(t, "vision", e.Name())

	_, err = engs.GetEngine("gemini")
	var mc *MissingCredentialError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, "Missing GEMINI_API_KEY", mc.Error())

	_, err = engs.GetEngine("tesseract")
	assert.ErrorIs(t, err, ErrUnknownEngine)
	assert.Equal(t, []string{"gemini", "vision"}, engs.Names())
}

func TestManager(t *testing.T) {
	m := NewManager("vision")
	assert.Equal(t, "vision", m.Get(1))
	m.Set(1, "gemini")
	assert.Equal(t, "gemini", m.Get(1))
	assert.Equal(t, "vision", m.Get(2))
	m.Reset(1)
	assert.Equal(t, "vision", m.Get(1))
}

func TestUpstreamError(t *testing.T) {
	assert.Equal(t, "vision ocr 403: API key not valid", (&UpstreamError{Engine: "vision", Status: 403, Message: "API key not valid"}).Error())
	assert.Equal(t, "vision ocr: Bad image data", (&UpstreamError{Engine: "vision", Message: "Bad image data"}).Error())
}
