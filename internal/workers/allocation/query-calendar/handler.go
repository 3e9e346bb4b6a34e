package querycalendar

import (
	"encoding/json"
	"net/http"
	"time"

	"content-scheduler/internal/common/errors"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/common/validation"
	"content-scheduler/internal/models"
	"content-scheduler/internal/store"
)

const OperationName = "query-calendar"

type Handler struct {
	allocs store.AllocationStore
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(allocs store.AllocationStore, log logger.Logger) *Handler {
	return &Handler{
		allocs: allocs,
		errors: errors.NewErrorHandler(log),
		logger: log.WithFields(map[string]interface{}{"operation": OperationName}),
	}
}

// ServeHTTP answers GET ?clientId=...&from=YYYY-MM-DD&to=YYYY-MM-DD. When the
// range is omitted it defaults to the 31 days starting today.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	clientID := q.Get("clientId")
	if !validation.ValidateClientID(clientID) {
		h.errors.WriteError(w, OperationName, errors.NewValidationError("clientId is required and must be alphanumeric"))
		return
	}

	from, to, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		h.errors.WriteError(w, OperationName, err)
		return
	}

	allocs, err := h.allocs.ListCalendar(r.Context(), clientID, from, to)
	if err != nil {
		h.errors.WriteError(w, OperationName, errors.NewStoreFailureError("list calendar", err))
		return
	}

	entries := make([]Entry, 0, len(allocs))
	for _, al := range allocs {
		e := Entry{
			AllocationID:  al.ID,
			ContentRef:    al.ContentRef,
			ScheduledDate: al.ScheduledDate.Format(models.DateLayout),
			ScheduledTime: al.ScheduledTime,
			Platform:      al.Platform,
			Status:        string(al.Status),
			IsFallback:    al.IsFallback,
			BatchID:       al.BatchID,
			FailureReason: al.FailureReason,
		}
		if al.PublishedAt != nil {
			e.PublishedAt = al.PublishedAt.UTC().Format(time.RFC3339)
		}
		entries = append(entries, e)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Output{
		ClientID: clientID,
		From:     from.Format(models.DateLayout),
		To:       to.Format(models.DateLayout),
		Entries:  entries,
	})
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr == "" && toStr == "" {
		from := models.DateOnly(time.Now().UTC())
		return from, from.AddDate(0, 0, 30), nil
	}

	from, err := models.ParseDate(fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.NewValidationError("from must be YYYY-MM-DD")
	}
	to, err := models.ParseDate(toStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.NewValidationError("to must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.NewValidationError("to precedes from")
	}
	return from, to, nil
}
