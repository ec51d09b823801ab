package x402

import "time"

// PaymentEventType identifies a point in the client-side payment lifecycle.
type PaymentEventType string

const (
	PaymentEventAttempt PaymentEventType = "payment_attempt"
	PaymentEventSuccess PaymentEventType = "payment_success"
	PaymentEventFailure PaymentEventType = "payment_failure"
)

// PaymentEvent is passed to a PaymentCallback at each stage of an automatic
// 402-retry. Fields not relevant to a given Type are left zero (e.g.
// Transaction/Payer are unset on PaymentEventAttempt).
type PaymentEvent struct {
	Type        PaymentEventType
	Timestamp   time.Time
	Method      string
	URL         string
	Network     string
	Scheme      string
	Amount      string
	Asset       string
	Recipient   string
	Transaction string
	Payer       string
	Error       error
	Duration    time.Duration
}

// PaymentCallback observes payment lifecycle events. Implementations must
// not block the calling goroutine for long; the transport invokes these
// synchronously on the request path.
type PaymentCallback func(PaymentEvent)
