package classify

// Explanation is the fixed three-part message returned for a category.
type Explanation struct {
	Definition string `json:"definition"`
	Importance string `json:"importance"`
	Action     string `json:"action"`
}

var explanations = map[Category]Explanation{
	TaxReceipt: {
		Definition: "국세청(홈택스)이나 세무서에서 보낸 현금영수증 또는 세금 관련 안내입니다.",
		Importance: "연말정산 소득공제와 세금 신고에 반영되는 기록이므로 내역이 맞는지 확인해야 합니다.",
		Action:     "홈택스에서 발급 내역을 조회하고, 본인이 결제하지 않은 내역이 있으면 국세청 상담센터(126)에 문의하세요.",
	},
	PaymentRequest: {
		Definition: "요금, 세금, 대금 등의 납부나 청구를 요청하는 안내입니다.",
		Importance: "기한을 넘기면 연체료나 가산금이 붙거나 서비스 이용이 제한될 수 있습니다.",
		Action:     "납부 금액과 기한을 확인하고, 공식 앱이나 고지서에 적힌 계좌로만 납부하세요. 문자 속 링크로는 결제하지 마세요.",
	},
	AuthMessage: {
		Definition: "본인 확인을 위해 발송된 인증번호(OTP) 안내입니다.",
		Importance: "인증번호가 다른 사람에게 알려지면 계정이나 금융 정보가 도용될 수 있습니다.",
		Action:     "본인이 직접 요청한 경우에만 입력하고 누구에게도 알려주지 마세요. 요청한 적이 없다면 해당 기관에 바로 문의하세요.",
	},
	ProcessResult: {
		Definition: "결제 취소, 환불, 신청 완료 등 처리 결과를 알려주는 안내입니다.",
		Importance: "실제 처리 내역과 금액이 맞는지 확인해야 이중 결제나 환불 누락을 막을 수 있습니다.",
		Action:     "카드사나 은행 앱에서 취소·환불 금액이 정상적으로 반영되었는지 확인하세요.",
	},
	GeneralNotice: {
		Definition: "특정 유형으로 분류되지 않은 일반 안내문입니다.",
		Importance: "중요한 일정이나 요청 사항이 포함되어 있을 수 있습니다.",
		Action:     "발신처와 내용을 확인하고, 의심스러우면 공식 연락처로 직접 문의하세요.",
	},
	Unrecognized: {
		Definition: "사진에서 글자를 충분히 인식하지 못했습니다.",
		Importance: "내용을 읽을 수 없어 어떤 안내문인지 판단할 수 없습니다.",
		Action:     "글자가 잘 보이도록 밝은 곳에서 흔들리지 않게 다시 촬영해 주세요.",
	},
}

// Explain returns the explanation for c. Unknown categories get the
// unrecognized-input explanation.
func Explain(c Category) Explanation {
	if e, ok := explanations[c]; ok {
		return e
	}
	return explanations[Unrecognized]
}
