// internal/models/payment.go
package models

import "time"

type PaymentEventType string

const (
	PaymentSucceeded PaymentEventType = "payment.succeeded"
	PaymentFailedEv  PaymentEventType = "payment.failed"
)

// PaymentEvent is one inbound event from the payment gateway. Webhook intake
// is idempotent per EventID.
type PaymentEvent struct {
	EventID  string           `json:"eventId"`
	Type     PaymentEventType `json:"type"`
	ClientID string           `json:"clientId"`
	// Amount is informational; the ledger does not price anything.
	Amount float64 `json:"amount,omitempty"`
	// CycleHint carries the billing cycle kind for first-payment
	// subscription creation.
	CycleHint BillingCycleKind `json:"cycleHint,omitempty"`
	// AttemptCount is the gateway's retry counter for failed payments.
	AttemptCount int       `json:"attemptCount,omitempty"`
	ReceivedAt   time.Time `json:"receivedAt"`
}
