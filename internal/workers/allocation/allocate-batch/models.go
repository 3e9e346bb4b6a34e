package allocatebatch

// Input is the request body for a bulk allocation.
type Input struct {
	ClientID    string `json:"clientId"`
	Count       int    `json:"count"`
	Period      string `json:"period,omitempty"`
	WindowStart string `json:"windowStart"`
	WindowEnd   string `json:"windowEnd"`
	Platform    string `json:"platform"`
	Topic       string `json:"topic,omitempty"`
}

// Output is the success response; allocation IDs come back in schedule order.
type Output struct {
	BatchID       string   `json:"batchId"`
	AllocationIDs []string `json:"allocationIds"`
}
