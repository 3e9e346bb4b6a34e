package allocatesingle

import (
	"encoding/json"
	"net/http"

	"content-scheduler/internal/allocator"
	"content-scheduler/internal/common/errors"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/common/validation"
	"content-scheduler/internal/models"
)

const OperationName = "allocate-single"

type Handler struct {
	allocator *allocator.Allocator
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(alloc *allocator.Allocator, log logger.Logger) *Handler {
	return &Handler{
		allocator: alloc,
		errors:    errors.NewErrorHandler(log),
		logger:    log.WithFields(map[string]interface{}{"operation": OperationName}),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.errors.WriteError(w, OperationName, errors.NewValidationError("request body is not valid JSON"))
		return
	}

	if result := validation.ValidateAgainstSchema(raw, GetInputSchema()); !result.Valid {
		h.errors.WriteError(w, OperationName, errors.NewValidationError(result.FirstMessage()))
		return
	}

	input := decodeInput(raw)
	scheduledDate, err := models.ParseDate(input.ScheduledDate)
	if err != nil {
		h.errors.WriteError(w, OperationName, errors.NewValidationError("scheduledDate must be YYYY-MM-DD"))
		return
	}

	alloc, err := h.allocator.RequestSingle(r.Context(), allocator.SingleRequest{
		ClientID:      input.ClientID,
		ScheduledDate: scheduledDate,
		ScheduledTime: input.ScheduledTime,
		Platform:      input.Platform,
		Topic:         input.Topic,
	})
	if err != nil {
		h.errors.WriteError(w, OperationName, err)
		return
	}

	h.logger.Info("allocation created", map[string]interface{}{
		"allocationId": alloc.ID,
		"clientId":     alloc.ClientID,
		"isFallback":   alloc.IsFallback,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(Output{
		AllocationID:  alloc.ID,
		ContentRef:    alloc.ContentRef,
		ScheduledDate: alloc.ScheduledDate.Format(models.DateLayout),
		ScheduledTime: alloc.ScheduledTime,
		IsFallback:    alloc.IsFallback,
	})
}

func decodeInput(raw map[string]interface{}) Input {
	str := func(key string) string {
		if v, ok := raw[key].(string); ok {
			return v
		}
		return ""
	}
	return Input{
		ClientID:      str("clientId"),
		ScheduledDate: str("scheduledDate"),
		ScheduledTime: str("scheduledTime"),
		Platform:      str("platform"),
		Topic:         str("topic"),
	}
}
