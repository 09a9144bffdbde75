package domain

// PaymentErrorKind is a closed taxonomy of business-level payment failures.
// Provider-specific codes are folded into these kinds at the boundary so the
// rest of the system never branches on raw provider strings.
type PaymentErrorKind string

const (
	PaymentErrorCardDeclined      PaymentErrorKind = "card_declined"
	PaymentErrorInsufficientFunds PaymentErrorKind = "insufficient_funds"
	PaymentErrorExpiredCard       PaymentErrorKind = "expired_card"
	PaymentErrorAuthRequired      PaymentErrorKind = "authentication_required"
	PaymentErrorProcessing        PaymentErrorKind = "processing_error"
	PaymentErrorUnknown           PaymentErrorKind = "unknown"
)

// ErrorKindFromProvider maps a provider error to the closed taxonomy. The
// decline code is more specific than the top-level code, so it wins when
// present.
func ErrorKindFromProvider(perr *ProviderError) PaymentErrorKind {
	if perr == nil {
		return PaymentErrorUnknown
	}

	switch perr.DeclineCode {
	case "insufficient_funds":
		return PaymentErrorInsufficientFunds
	case "expired_card":
		return PaymentErrorExpiredCard
	}

	switch perr.Code {
	case "card_declined":
		return PaymentErrorCardDeclined
	case "expired_card":
		return PaymentErrorExpiredCard
	case "authentication_required":
		return PaymentErrorAuthRequired
	case "processing_error":
		return PaymentErrorProcessing
	default:
		return PaymentErrorUnknown
	}
}
