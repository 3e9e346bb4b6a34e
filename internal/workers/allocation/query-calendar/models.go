package querycalendar

// Entry is one allocation as seen on the client's calendar.
type Entry struct {
	AllocationID  string `json:"allocationId"`
	ContentRef    string `json:"contentRef"`
	ScheduledDate string `json:"scheduledDate"`
	ScheduledTime string `json:"scheduledTime"`
	Platform      string `json:"platform"`
	Status        string `json:"status"`
	IsFallback    bool   `json:"isFallback"`
	BatchID       string `json:"batchId,omitempty"`
	PublishedAt   string `json:"publishedAt,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`
}

// Output is the calendar response, ordered by date then time.
type Output struct {
	ClientID string  `json:"clientId"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	Entries  []Entry `json:"entries"`
}
