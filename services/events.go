package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	applog "github.com/Spare-Link/storefront/logger"
	"github.com/Spare-Link/storefront/models"
	awspkg "github.com/Spare-Link/storefront/pkg/aws"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher announces completed checkout mutations to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, evt models.CheckoutEvent) error
}

// CheckoutEventSender is implemented by kafka.Producer.
type CheckoutEventSender interface {
	SendCheckoutEvent(ctx context.Context, evt models.CheckoutEvent) error
}

type snsEventPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(client awspkg.SNSPublisher, topicArn string) EventPublisher {
	return &snsEventPublisher{client: client, topicArn: topicArn}
}

func (p *snsEventPublisher) Publish(ctx context.Context, evt models.CheckoutEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal checkout event: %w", err)
	}
	msg := awspkg.SNSMessage{
		TopicArn:   p.topicArn,
		Body:       payload,
		Attributes: map[string]string{"event": evt.Event, "step": string(evt.Step)},
	}
	// FIFO topics keep one cart's events in order
	if strings.HasSuffix(p.topicArn, ".fifo") {
		msg.GroupID = evt.CartID
	}
	return p.client.Publish(ctx, msg)
}

type kafkaEventPublisher struct {
	sender CheckoutEventSender
}

func NewKafkaEventPublisher(sender CheckoutEventSender) EventPublisher {
	return &kafkaEventPublisher{sender: sender}
}

func (p *kafkaEventPublisher) Publish(ctx context.Context, evt models.CheckoutEvent) error {
	return p.sender.SendCheckoutEvent(ctx, evt)
}

type noopEventPublisher struct{}

func NewNoopEventPublisher() EventPublisher { return noopEventPublisher{} }

func (noopEventPublisher) Publish(context.Context, models.CheckoutEvent) error { return nil }

// NewCheckoutEvent stamps an event with a fresh id and the current time.
func NewCheckoutEvent(event, cartID string, step models.Step, data map[string]string) models.CheckoutEvent {
	return models.CheckoutEvent{
		ID:        uuid.NewString(),
		Event:     event,
		CartID:    cartID,
		Step:      step,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// publishEvent never fails the caller; a lost event is only logged.
func publishEvent(ctx context.Context, pub EventPublisher, evt models.CheckoutEvent, logger *zap.Logger) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, evt); err != nil {
		applog.FromContext(ctx, logger).Warn("Failed to publish checkout event",
			zap.String("event", evt.Event),
			zap.String("cart_id", evt.CartID),
			zap.Error(err),
		)
	}
}
