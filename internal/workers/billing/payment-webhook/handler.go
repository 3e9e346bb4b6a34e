package paymentwebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"content-scheduler/internal/common/clock"
	"content-scheduler/internal/common/errors"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/common/metrics"
	"content-scheduler/internal/common/validation"
	"content-scheduler/internal/ledger"
	"content-scheduler/internal/models"
	"content-scheduler/internal/notifier"
)

const OperationName = "payment-webhook"

// Deduper is the idempotency marker store; MarkProcessed returns false when
// the event ID was already seen.
type Deduper interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	Unmark(ctx context.Context, eventID string) error
}

// RedisDeduper backs idempotency markers with Redis SETNX keys.
type RedisDeduper struct {
	redis setNXClient
	ttl   time.Duration
}

type setNXClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

func NewRedisDeduper(redis setNXClient, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{redis: redis, ttl: ttl}
}

func (d *RedisDeduper) key(eventID string) string {
	return fmt.Sprintf("webhook-dedup:%s", eventID)
}

func (d *RedisDeduper) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	return d.redis.SetNX(ctx, d.key(eventID), "1", d.ttl)
}

func (d *RedisDeduper) Unmark(ctx context.Context, eventID string) error {
	return d.redis.Del(ctx, d.key(eventID))
}

type Handler struct {
	ledger   *ledger.Ledger
	deduper  Deduper
	notifier notifier.Notifier
	clock    clock.Clock
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(l *ledger.Ledger, deduper Deduper, notify notifier.Notifier, clk clock.Clock, log logger.Logger) *Handler {
	return &Handler{
		ledger:   l,
		deduper:  deduper,
		notifier: notify,
		clock:    clk,
		errors:   errors.NewErrorHandler(log),
		logger:   log.WithFields(map[string]interface{}{"operation": OperationName}),
	}
}

// ServeHTTP processes one gateway event, idempotent per eventId. A replayed
// event acknowledges with status "duplicate" and touches nothing. Processing
// failures release the idempotency marker so the gateway's retry can land.
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
	b, _ := json.Marshal(raw)
	if err := json.Unmarshal(b, &input); err != nil {
		h.errors.WriteError(w, OperationName, errors.NewValidationError("malformed request body"))
		return
	}

	fresh, err := h.deduper.MarkProcessed(r.Context(), input.EventID)
	if err != nil {
		h.errors.WriteError(w, OperationName, errors.NewStoreFailureError("idempotency marker", err))
		return
	}
	if !fresh {
		metrics.WebhookEvents.WithLabelValues(input.Type, "duplicate").Inc()
		h.logger.Info("duplicate webhook event ignored", map[string]interface{}{
			"eventId":  input.EventID,
			"clientId": input.ClientID,
		})
		writeAck(w, input.EventID, "duplicate")
		return
	}

	if err := h.process(r.Context(), input); err != nil {
		// Release the marker so the gateway's retry is not swallowed as a
		// duplicate. Dropping a payment event silently risks a wrong
		// suspension or a missed activation.
		if unmarkErr := h.deduper.Unmark(r.Context(), input.EventID); unmarkErr != nil {
			h.logger.Error("failed to release idempotency marker", map[string]interface{}{
				"eventId": input.EventID,
				"error":   unmarkErr.Error(),
			})
		}
		metrics.WebhookEvents.WithLabelValues(input.Type, "failed").Inc()
		h.errors.WriteError(w, OperationName, errors.NewWebhookFailedError(input.EventID, err))
		return
	}

	metrics.WebhookEvents.WithLabelValues(input.Type, "processed").Inc()
	writeAck(w, input.EventID, "processed")
}

func (h *Handler) process(ctx context.Context, input Input) error {
	ev := models.PaymentEvent{
		EventID:      input.EventID,
		Type:         models.PaymentEventType(input.Type),
		ClientID:     input.ClientID,
		Amount:       input.Amount,
		CycleHint:    models.BillingCycleKind(input.CycleHint),
		AttemptCount: input.AttemptCount,
		ReceivedAt:   h.clock.Now(),
	}

	switch ev.Type {
	case models.PaymentSucceeded:
		return h.ledger.ApplyPaymentSuccess(ctx, ev)
	case models.PaymentFailedEv:
		if err := h.ledger.ApplyPaymentFailure(ctx, ev); err != nil {
			return err
		}
		if sub, err := h.ledger.Get(ctx, ev.ClientID); err == nil {
			h.notifier.NotifyPaymentFailed(ctx, sub, ev.AttemptCount)
		}
		return nil
	default:
		return errors.NewValidationError("unknown event type " + input.Type)
	}
}

func writeAck(w http.ResponseWriter, eventID, status string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Output{EventID: eventID, Status: status})
}
