package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Spare-Link/storefront/models"
	awspkg "github.com/Spare-Link/storefront/pkg/aws"
	"github.com/Spare-Link/storefront/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSNS struct {
	msg awspkg.SNSMessage
}

func (c *captureSNS) Publish(_ context.Context, msg awspkg.SNSMessage) error {
	c.msg = msg
	return nil
}

type captureSender struct {
	sent []models.CheckoutEvent
}

func (c *captureSender) SendCheckoutEvent(_ context.Context, evt models.CheckoutEvent) error {
	c.sent = append(c.sent, evt)
	return nil
}

func TestSNSEventPublisher(t *testing.T) {
	sns := &captureSNS{}
	pub := services.NewSNSEventPublisher(sns, "arn:aws:sns:eu-west-1:000000000000:checkout")

	evt := services.NewCheckoutEvent(models.EventShippingMethodSet, "cart_1", models.StepDelivery, map[string]string{"shipping_option_id": "so_1"})
	require.NoError(t, pub.Publish(context.Background(), evt))

	assert.Equal(t, "arn:aws:sns:eu-west-1:000000000000:checkout", sns.msg.TopicArn)
	assert.Equal(t, models.EventShippingMethodSet, sns.msg.Attributes["event"])
	assert.Equal(t, string(models.StepDelivery), sns.msg.Attributes["step"])
	assert.Empty(t, sns.msg.GroupID)
	var decoded models.CheckoutEvent
	require.NoError(t, json.Unmarshal(sns.msg.Body, &decoded))
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, "so_1", decoded.Data["shipping_option_id"])
}

func TestKafkaEventPublisher(t *testing.T) {
	sender := &captureSender{}
	pub := services.NewKafkaEventPublisher(sender)

	require.NoError(t, pub.Publish(context.Background(), services.NewCheckoutEvent(models.EventAddressesSet, "cart_1", models.StepAddress, nil)))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "cart_1", sender.sent[0].CartID)
}

func TestNewCheckoutEvent(t *testing.T) {
	a := services.NewCheckoutEvent(models.EventAddressesSet, "cart_1", models.StepAddress, nil)
	b := services.NewCheckoutEvent(models.EventAddressesSet, "cart_1", models.StepAddress, nil)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Timestamp.IsZero())
	assert.NoError(t, services.NewNoopEventPublisher().Publish(context.Background(), a))
}

func TestSNSEventPublisher_FIFOGroupsByCart(t *testing.T) {
	sns := &captureSNS{}
	pub := services.NewSNSEventPublisher(sns, "arn:aws:sns:eu-west-1:000000000000:checkout.fifo")

	require.NoError(t, pub.Publish(context.Background(), services.NewCheckoutEvent(models.EventAddressesSet, "cart_9", models.StepAddress, nil)))
	assert.Equal(t, "cart_9", sns.msg.GroupID)
}
