package aws

import (
	"context"
	"errors"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSMessage is one notification. Attributes become string message
// attributes so subscriptions can filter on them.
type SNSMessage struct {
	TopicArn   string
	Body       []byte
	Attributes map[string]string
	// GroupID is required by FIFO topics and ignored otherwise.
	GroupID string
}

// SNSPublisher publishes checkout notifications.
type SNSPublisher interface {
	Publish(ctx context.Context, msg SNSMessage) error
}

type SNSClient struct {
	client *sns.Client
}

func NewSNSClient(cfg sdkaws.Config) *SNSClient {
	return &SNSClient{client: sns.NewFromConfig(cfg)}
}

func (s *SNSClient) Publish(ctx context.Context, msg SNSMessage) error {
	input, err := publishInput(msg)
	if err != nil {
		return err
	}
	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish to %s: %w", msg.TopicArn, err)
	}
	return nil
}

func publishInput(msg SNSMessage) (*sns.PublishInput, error) {
	if msg.TopicArn == "" {
		return nil, errors.New("sns publish: empty topic arn")
	}
	input := &sns.PublishInput{
		TopicArn: sdkaws.String(msg.TopicArn),
		Message:  sdkaws.String(string(msg.Body)),
	}
	if len(msg.Attributes) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(msg.Attributes))
		for k, v := range msg.Attributes {
			if v == "" {
				continue
			}
			input.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    sdkaws.String("String"),
				StringValue: sdkaws.String(v),
			}
		}
	}
	if msg.GroupID != "" {
		input.MessageGroupId = sdkaws.String(msg.GroupID)
	}
	return input, nil
}
