// internal/audit/audit.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"content-scheduler/internal/common/database"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/models"
)

// Event is one publication outcome recorded for later analysis.
type Event struct {
	AllocationID string    `json:"allocationId"`
	ClientID     string    `json:"clientId"`
	ContentRef   string    `json:"contentRef"`
	Platform     string    `json:"platform"`
	Outcome      string    `json:"outcome"` // published | failed
	Reason       string    `json:"reason,omitempty"`
	IsFallback   bool      `json:"isFallback"`
	Timestamp    time.Time `json:"timestamp"`
}

// Indexer records publication outcomes in Elasticsearch. A nil *Indexer is a
// valid no-op, so callers never need to branch on whether auditing is
// enabled. Indexing is best-effort: failures are logged and swallowed.
type Indexer struct {
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

func NewIndexer(es *database.ElasticsearchClient, index string, log logger.Logger) *Indexer {
	return &Indexer{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

// RecordPublication indexes one publish outcome.
func (i *Indexer) RecordPublication(ctx context.Context, alloc *models.Allocation, outcome, reason string, at time.Time) {
	if i == nil {
		return
	}

	doc, err := json.Marshal(Event{
		AllocationID: alloc.ID,
		ClientID:     alloc.ClientID,
		ContentRef:   alloc.ContentRef,
		Platform:     alloc.Platform,
		Outcome:      outcome,
		Reason:       reason,
		IsFallback:   alloc.IsFallback,
		Timestamp:    at,
	})
	if err != nil {
		i.logger.Error("audit encode failed", map[string]interface{}{"error": err.Error()})
		return
	}

	docID := fmt.Sprintf("%s-%d", alloc.ID, at.UnixNano())
	res, err := i.es.Client.Index(
		i.index,
		bytes.NewReader(doc),
		i.es.Client.Index.WithContext(ctx),
		i.es.Client.Index.WithDocumentID(docID),
	)
	if err != nil {
		i.logger.Error("audit index failed", map[string]interface{}{
			"allocationId": alloc.ID,
			"error":        err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		i.logger.Error("audit index rejected", map[string]interface{}{
			"allocationId": alloc.ID,
			"status":       res.Status(),
		})
	}
}
