// internal/notifier/notifier.go
package notifier

import (
	"context"
	"fmt"

	"content-scheduler/internal/common/aws"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/models"
)

// Notifier informs clients about billing state changes. Notifications are
// best-effort: a send failure is logged, never escalated, because the ledger
// transition it describes has already committed.
type Notifier interface {
	NotifyPaymentFailed(ctx context.Context, sub *models.Subscription, attemptCount int)
	NotifySuspended(ctx context.Context, sub *models.Subscription, suspendedAllocations int)
}

// SESNotifier sends the notifications by email. The recipient address is
// derived from the client ID through a resolver so the ledger stays free of
// contact data.
type SESNotifier struct {
	ses     *aws.SESClient
	sender  string
	resolve func(clientID string) string
	logger  logger.Logger
}

func NewSESNotifier(ses *aws.SESClient, sender string, resolve func(clientID string) string, log logger.Logger) *SESNotifier {
	return &SESNotifier{
		ses:     ses,
		sender:  sender,
		resolve: resolve,
		logger:  log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

func (n *SESNotifier) NotifyPaymentFailed(ctx context.Context, sub *models.Subscription, attemptCount int) {
	graceEnd := ""
	if sub.GracePeriodEnd != nil {
		graceEnd = sub.GracePeriodEnd.Format(models.DateLayout)
	}
	body := fmt.Sprintf(
		"Payment attempt %d for your subscription failed. Scheduled publications continue until %s; please update your payment method before then.",
		attemptCount, graceEnd,
	)
	n.send(ctx, sub.ClientID, "Payment failed", body)
}

func (n *SESNotifier) NotifySuspended(ctx context.Context, sub *models.Subscription, suspendedAllocations int) {
	body := fmt.Sprintf(
		"Your subscription was suspended after the grace period ended. %d upcoming publications are on hold and will resume once payment succeeds.",
		suspendedAllocations,
	)
	n.send(ctx, sub.ClientID, "Subscription suspended", body)
}

func (n *SESNotifier) send(ctx context.Context, clientID, subject, body string) {
	recipient := n.resolve(clientID)
	if recipient == "" {
		n.logger.Warn("no notification address for client", map[string]interface{}{"clientId": clientID})
		return
	}
	if err := n.ses.SendPlainEmail(ctx, n.sender, recipient, subject, body); err != nil {
		n.logger.Error("notification send failed", map[string]interface{}{
			"clientId": clientID,
			"subject":  subject,
			"error":    err.Error(),
		})
	}
}

// NoOpNotifier is used when notifications are disabled in config.
type NoOpNotifier struct{}

func (NoOpNotifier) NotifyPaymentFailed(context.Context, *models.Subscription, int) {}
func (NoOpNotifier) NotifySuspended(context.Context, *models.Subscription, int)     {}
