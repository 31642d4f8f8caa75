package ocr

import (
	"regexp"
	"strings"
)

var (
	trailingSpaceRe = regexp.MustCompile(`[ \t\x{00A0}]+\n`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)
)

// Clean trims the text and collapses runs of blank lines into one.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = trailingSpaceRe.ReplaceAllString(s, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// PickText prefers the full document text and falls back to the first
// non-empty annotation. The flag reports whether full text was used.
func PickText(fullText string, annotations []string) (string, bool) {
	if t := Clean(fullText); t != "" {
		return t, true
	}
	for _, a := range annotations {
		if t := Clean(a); t != "" {
			return t, false
		}
	}
	return "", false
}
