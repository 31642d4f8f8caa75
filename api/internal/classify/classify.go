// Package classify buckets recognized notice text into a fixed set of
// categories using ordered keyword rules.
package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinTextLen is the shortest input (in characters) that is classified at all.
const MinTextLen = 5

// Result is a category together with its explanation.
type Result struct {
	Category Category `json:"category"`
	Explanation
}

type rule struct {
	category Category
	re       *regexp.Regexp
}

// Order matters: the first matching rule wins.
var rules = []rule{
	{TaxReceipt, regexp.MustCompile(`현금영수증|국세청|세무서|홈택스`)},
	{PaymentRequest, regexp.MustCompile(`납부|기한|미납|요청|청구|연체`)},
	{AuthMessage, regexp.MustCompile(`인증|코드|번호|확인번호|OTP`)},
	{ProcessResult, regexp.MustCompile(`취소|환불|처리되었습니다|완료`)},
}

// Classify picks the category of text. It never fails and is safe for
// concurrent use.
func Classify(text string) Result {
	c := categorize(text)
	return Result{Category: c, Explanation: Explain(c)}
}

func categorize(text string) Category {
	t := strings.TrimSpace(text)
	if utf8.RuneCountInString(t) < MinTextLen {
		return Unrecognized
	}
	for _, r := range rules {
		if r.re.MatchString(t) {
			return r.category
		}
	}
	return GeneralNotice
}
