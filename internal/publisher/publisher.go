// internal/publisher/publisher.go
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"content-scheduler/internal/common/aws"
	"content-scheduler/internal/common/errors"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/models"
)

// Publisher pushes one allocation's content out to the destination platform.
type Publisher interface {
	Publish(ctx context.Context, alloc *models.Allocation) error
}

// publishEnvelope is the message body sent to the delivery topic.
type publishEnvelope struct {
	AllocationID  string `json:"allocationId"`
	ClientID      string `json:"clientId"`
	ContentRef    string `json:"contentRef"`
	Platform      string `json:"platform"`
	ScheduledDate string `json:"scheduledDate"`
	ScheduledTime string `json:"scheduledTime"`
	IsFallback    bool   `json:"isFallback"`
}

// SNSPublisher delivers publications through an SNS topic; downstream
// platform connectors subscribe to the topic and perform the actual post.
type SNSPublisher struct {
	sns      *aws.SNSClient
	topicARN string
	logger   logger.Logger
}

func NewSNSPublisher(sns *aws.SNSClient, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		sns:      sns,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "sns-publisher"}),
	}
}

func (p *SNSPublisher) Publish(ctx context.Context, alloc *models.Allocation) error {
	body, err := json.Marshal(publishEnvelope{
		AllocationID:  alloc.ID,
		ClientID:      alloc.ClientID,
		ContentRef:    alloc.ContentRef,
		Platform:      alloc.Platform,
		ScheduledDate: alloc.ScheduledDate.Format(models.DateLayout),
		ScheduledTime: alloc.ScheduledTime,
		IsFallback:    alloc.IsFallback,
	})
	if err != nil {
		return errors.NewPublishFailedError(alloc.ID, err)
	}

	subject := fmt.Sprintf("publish %s/%s", alloc.ClientID, alloc.Platform)
	msgID, err := p.sns.PublishMessage(ctx, p.topicARN, subject, string(body))
	if err != nil {
		return errors.NewPublishFailedError(alloc.ID, err)
	}

	p.logger.Info("publication dispatched", map[string]interface{}{
		"allocationId": alloc.ID,
		"clientId":     alloc.ClientID,
		"messageId":    msgID,
	})
	return nil
}
