package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// maxBatch is the PutLogEvents limit on events per call.
const maxBatch = 10000

// LogsAPI is the part of the CloudWatch Logs client we call.
type LogsAPI interface {
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// LogsClient ships log lines to one CloudWatch Logs stream. Write only
// buffers; lines leave on Sync, which Run calls periodically.
type LogsClient struct {
	api    LogsAPI
	group  string
	stream string
	now    func() time.Time

	mu      sync.Mutex
	pending []types.InputLogEvent
}

// NewLogsClient creates the log group (30 day retention) and a fresh stream
// named after the service and start time.
func NewLogsClient(ctx context.Context, cfg sdkaws.Config, group, serviceName string) (*LogsClient, error) {
	c := NewLogsClientWithAPI(cloudwatchlogs.NewFromConfig(cfg), group, fmt.Sprintf("%s-%d", serviceName, time.Now().Unix()))
	if err := c.Setup(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func NewLogsClientWithAPI(api LogsAPI, group, stream string) *LogsClient {
	return &LogsClient{api: api, group: group, stream: stream, now: time.Now}
}

// Setup ensures the log group and the stream exist.
func (c *LogsClient) Setup(ctx context.Context) error {
	_, err := c.api.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{LogGroupName: sdkaws.String(c.group)})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("create log group %s: %w", c.group, err)
	}

	if _, err := c.api.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    sdkaws.String(c.group),
		RetentionInDays: sdkaws.Int32(30),
	}); err != nil {
		return fmt.Errorf("set retention policy: %w", err)
	}

	_, err = c.api.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  sdkaws.String(c.group),
		LogStreamName: sdkaws.String(c.stream),
	})
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("create log stream %s: %w", c.stream, err)
	}
	return nil
}

// Write buffers one encoded log line.
func (c *LogsClient) Write(p []byte) (int, error) {
	msg := string(bytes.TrimRight(p, "\n"))
	if msg == "" {
		return len(p), nil
	}
	c.mu.Lock()
	c.pending = append(c.pending, types.InputLogEvent{
		Message:   sdkaws.String(msg),
		Timestamp: sdkaws.Int64(c.now().UnixMilli()),
	})
	c.mu.Unlock()
	return len(p), nil
}

// Sync sends the buffered lines. Lines of a failed batch are dropped so a
// broken sink cannot grow the buffer without bound.
func (c *LogsClient) Sync() error {
	c.mu.Lock()
	events := c.pending
	c.pending = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	for len(events) > 0 {
		n := min(len(events), maxBatch)
		_, err := c.api.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  sdkaws.String(c.group),
			LogStreamName: sdkaws.String(c.stream),
			LogEvents:     events[:n],
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("put log events: %w", err))
		}
		events = events[n:]
	}
	return errors.Join(errs...)
}

// Run flushes every interval until ctx is done, then flushes once more.
func (c *LogsClient) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = c.Sync()
			return
		case <-ticker.C:
			_ = c.Sync()
		}
	}
}
