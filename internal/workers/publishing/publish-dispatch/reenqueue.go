package publishdispatch

import (
	"encoding/json"
	"net/http"

	"content-scheduler/internal/common/errors"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/models"
	"content-scheduler/internal/store"
)

const ReenqueueOperation = "reenqueue-allocation"

// ReenqueueInput names the failed allocation to put back in the queue.
type ReenqueueInput struct {
	AllocationID string `json:"allocationId"`
}

// ReenqueueOutput confirms the reset.
type ReenqueueOutput struct {
	AllocationID string `json:"allocationId"`
	Status       string `json:"status"`
}

// ReenqueueHandler resets a failed allocation back to scheduled so the next
// dispatch sweep retries it. Manual operation; no quota side effects.
type ReenqueueHandler struct {
	allocs store.AllocationStore
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewReenqueueHandler(allocs store.AllocationStore, log logger.Logger) *ReenqueueHandler {
	return &ReenqueueHandler{
		allocs: allocs,
		errors: errors.NewErrorHandler(log),
		logger: log.WithFields(map[string]interface{}{"operation": ReenqueueOperation}),
	}
}

func (h *ReenqueueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var input ReenqueueInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.AllocationID == "" {
		h.errors.WriteError(w, ReenqueueOperation, errors.NewValidationError("allocationId is required"))
		return
	}

	alloc, err := h.allocs.GetAllocation(r.Context(), input.AllocationID)
	if err == store.ErrNotFound {
		h.errors.WriteError(w, ReenqueueOperation, errors.NewAllocationNotFoundError(input.AllocationID))
		return
	}
	if err != nil {
		h.errors.WriteError(w, ReenqueueOperation, errors.NewStoreFailureError("get allocation", err))
		return
	}

	if alloc.Status != models.AllocationFailed {
		h.errors.WriteError(w, ReenqueueOperation, errors.NewValidationError(
			"only failed allocations can be re-enqueued, current status is "+string(alloc.Status)))
		return
	}

	if err := h.allocs.SetStatus(r.Context(), alloc.ID, models.AllocationScheduled); err != nil {
		h.errors.WriteError(w, ReenqueueOperation, errors.NewStoreFailureError("set status", err))
		return
	}

	h.logger.Info("allocation re-enqueued", map[string]interface{}{
		"allocationId": alloc.ID,
		"clientId":     alloc.ClientID,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ReenqueueOutput{
		AllocationID: alloc.ID,
		Status:       string(models.AllocationScheduled),
	})
}
