package aws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogsAPI struct {
	mu        sync.Mutex
	groupErr  error
	putErr    error
	streams   []string
	retention int32
	batches   [][]types.InputLogEvent
}

func (f *fakeLogsAPI) CreateLogGroup(_ context.Context, _ *cloudwatchlogs.CreateLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	return &cloudwatchlogs.CreateLogGroupOutput{}, f.groupErr
}

func (f *fakeLogsAPI) PutRetentionPolicy(_ context.Context, in *cloudwatchlogs.PutRetentionPolicyInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	f.retention = *in.RetentionInDays
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (f *fakeLogsAPI) CreateLogStream(_ context.Context, in *cloudwatchlogs.CreateLogStreamInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	f.streams = append(f.streams, *in.LogStreamName)
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (f *fakeLogsAPI) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, in.LogEvents)
	return &cloudwatchlogs.PutLogEventsOutput{}, f.putErr
}

func (f *fakeLogsAPI) sent() [][]types.InputLogEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]types.InputLogEvent(nil), f.batches...)
}

func TestLogsClient_Setup(t *testing.T) {
	api := &fakeLogsAPI{groupErr: &types.ResourceAlreadyExistsException{}}
	c := NewLogsClientWithAPI(api, "/storefront/checkout", "storefront-checkout-1")

	require.NoError(t, c.Setup(context.Background()))
	assert.Equal(t, []string{"storefront-checkout-1"}, api.streams)
	assert.EqualValues(t, 30, api.retention)

	api = &fakeLogsAPI{groupErr: errors.New("AccessDenied")}
	assert.Error(t, NewLogsClientWithAPI(api, "/g", "s").Setup(context.Background()))
	assert.Empty(t, api.streams)
}

func TestLogsClient_WriteBuffersUntilSync(t *testing.T) {
	api := &fakeLogsAPI{}
	c := NewLogsClientWithAPI(api, "/g", "s")
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }

	_, _ = c.Write([]byte("{\"msg\":\"one\"}\n"))
	_, _ = c.Write([]byte("\n"))
	_, _ = c.Write([]byte(`{"msg":"two"}`))
	assert.Empty(t, api.sent())

	require.NoError(t, c.Sync())
	batches := api.sent()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, `{"msg":"one"}`, *batches[0][0].Message)
	assert.Equal(t, int64(1700000000000), *batches[0][0].Timestamp)

	// nothing buffered, nothing sent
	require.NoError(t, c.Sync())
	assert.Len(t, api.sent(), 1)
}

func TestLogsClient_FailedBatchIsDropped(t *testing.T) {
	api := &fakeLogsAPI{putErr: errors.New("throttled")}
	c := NewLogsClientWithAPI(api, "/g", "s")

	_, _ = c.Write([]byte("line"))
	assert.Error(t, c.Sync())

	api.putErr = nil
	require.NoError(t, c.Sync())
	assert.Len(t, api.sent(), 1)
}

func TestLogsClient_RunFlushesOnStop(t *testing.T) {
	api := &fakeLogsAPI{}
	c := NewLogsClientWithAPI(api, "/g", "s")
	_, _ = c.Write([]byte("last words"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	require.Len(t, api.sent(), 1)
	assert.Equal(t, "last words", *api.sent()[0][0].Message)
}
