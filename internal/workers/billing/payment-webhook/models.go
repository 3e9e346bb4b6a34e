package paymentwebhook

// Input is the payment gateway event body.
type Input struct {
	EventID      string  `json:"eventId"`
	Type         string  `json:"type"`
	ClientID     string  `json:"clientId"`
	Amount       float64 `json:"amount,omitempty"`
	CycleHint    string  `json:"cycleHint,omitempty"`
	AttemptCount int     `json:"attemptCount,omitempty"`
}

// Output acknowledges the event. Status is "processed" or "duplicate"; both
// return 200 so the gateway stops retrying.
type Output struct {
	EventID string `json:"eventId"`
	Status  string `json:"status"`
}
