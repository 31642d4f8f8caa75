package classify

// Category is the bucket a recognized notice falls into.
type Category string

const (
	TaxReceipt     Category = "TAX_RECEIPT"
	PaymentRequest Category = "PAYMENT_REQUEST"
	AuthMessage    Category = "AUTH_MESSAGE"
	ProcessResult  Category = "PROCESS_RESULT"
	GeneralNotice  Category = "GENERAL_NOTICE"

	// Unrecognized is returned for empty or too short input. It is not one of
	// the five notice categories and is never stored as one.
	Unrecognized Category = "UNRECOGNIZED"
)

// Categories lists the notice categories in rule priority order, fallback last.
func Categories() []Category {
	return []Category{TaxReceipt, PaymentRequest, AuthMessage, ProcessResult, GeneralNotice}
}

// Valid reports whether c is one of the five notice categories.
func (c Category) Valid() bool {
	switch c {
	case TaxReceipt, PaymentRequest, AuthMessage, ProcessResult, GeneralNotice:
		return true
	}
	return false
}

// Label is the Korean display name shown to end users.
func (c Category) Label() string {
	switch c {
	case TaxReceipt:
		return "세금·현금영수증 안내"
	case PaymentRequest:
		return "납부·청구 요청"
	case AuthMessage:
		return "인증번호 안내"
	case ProcessResult:
		return "처리 결과 안내"
	case GeneralNotice:
		return "일반 안내"
	default:
		return "인식 불가"
	}
}

func (c Category) String() string { return string(c) }
