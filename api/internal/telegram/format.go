package telegram

import (
	"context"
	"errors"
	"strings"

	"notice-bot/api/internal/classify"
	"notice-bot/api/internal/notice"
	"notice-bot/api/internal/ocr"
	"notice-bot/api/internal/util"
)

// Telegram rejects messages over 4096 characters.
const (
	maxMessageRunes = 4000
	maxQuotedRunes  = 1500
)

func FormatResult(res classify.Result) string {
	var b strings.Builder
	b.WriteString("📄 분류: ")
	b.WriteString(res.Category.Label())
	if res.Category.Valid() {
		b.WriteString(" (" + res.Category.String() + ")")
	}
	b.WriteString("\n\n📌 무엇인가요\n")
	b.WriteString(res.Definition)
	b.WriteString("\n\n❗ 왜 중요한가요\n")
	b.WriteString(res.Importance)
	b.WriteString("\n\n✅ 이렇게 하세요\n")
	b.WriteString(res.Action)
	return b.String()
}

// FormatAnalysis is FormatResult followed by the recognized text.
func FormatAnalysis(a notice.Analysis) string {
	out := FormatResult(a.Classification)
	if text := strings.TrimSpace(a.Text); text != "" {
		out += "\n\n🔎 읽은 내용\n" + util.Truncate(text, maxQuotedRunes)
	}
	return util.Truncate(out, maxMessageRunes)
}

func FormatError(err error) string {
	var (
		mc *ocr.MissingCredentialError
		up *ocr.UpstreamError
	)
	switch {
	case errors.As(err, &mc):
		return "⚠️ OCR 엔진이 설정되지 않았습니다. 관리자에게 문의해 주세요."
	case errors.Is(err, context.DeadlineExceeded):
		return "⏱ 처리 시간이 초과되었습니다. 잠시 후 다시 보내 주세요."
	case errors.As(err, &up):
		return "⚠️ 글자 인식 서비스 오류: " + util.Truncate(up.Message, 300)
	default:
		return "⚠️ 처리 중 오류가 발생했습니다: " + util.Truncate(err.Error(), 300)
	}
}
