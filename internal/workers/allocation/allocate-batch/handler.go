package allocatebatch

import (
	"encoding/json"
	"net/http"

	"content-scheduler/internal/allocator"
	"content-scheduler/internal/common/errors"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/common/validation"
	"content-scheduler/internal/models"
)

const OperationName = "allocate-batch"

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

	var input Input
	if err := remarshal(raw, &input); err != nil {
		h.errors.WriteError(w, OperationName, errors.NewValidationError("malformed request body"))
		return
	}

	windowStart, err := models.ParseDate(input.WindowStart)
	if err != nil {
		h.errors.WriteError(w, OperationName, errors.NewValidationError("windowStart must be YYYY-MM-DD"))
		return
	}
	windowEnd, err := models.ParseDate(input.WindowEnd)
	if err != nil {
		h.errors.WriteError(w, OperationName, errors.NewValidationError("windowEnd must be YYYY-MM-DD"))
		return
	}

	batchID, allocs, err := h.allocator.RequestBatch(r.Context(), allocator.BatchRequest{
		ClientID:    input.ClientID,
		Count:       input.Count,
		Period:      input.Period,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Platform:    input.Platform,
		Topic:       input.Topic,
	})
	if err != nil {
		h.errors.WriteError(w, OperationName, err)
		return
	}

	ids := make([]string, len(allocs))
	for i, al := range allocs {
		ids[i] = al.ID
	}

	h.logger.Info("batch allocated", map[string]interface{}{
		"batchId":  batchID,
		"clientId": input.ClientID,
		"count":    len(ids),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(Output{BatchID: batchID, AllocationIDs: ids})
}

// remarshal converts the validated raw document into the typed input.
func remarshal(raw map[string]interface{}, out interface{}) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
