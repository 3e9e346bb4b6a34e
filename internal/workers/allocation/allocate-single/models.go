package allocatesingle

// Input is the request body for a single allocation.
type Input struct {
	ClientID      string `json:"clientId"`
	ScheduledDate string `json:"scheduledDate"`
	ScheduledTime string `json:"scheduledTime,omitempty"`
	Platform      string `json:"platform"`
	Topic         string `json:"topic,omitempty"`
}

// Output is the success response.
type Output struct {
	AllocationID  string `json:"allocationId"`
	ContentRef    string `json:"contentRef"`
	ScheduledDate string `json:"scheduledDate"`
	ScheduledTime string `json:"scheduledTime"`
	IsFallback    bool   `json:"isFallback"`
}
