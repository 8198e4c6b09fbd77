package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicereconcile/core/internal/application/port"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type memTransport struct {
	mu       sync.Mutex
	received []port.ProgressMessage
}

func (t *memTransport) Send(ctx context.Context, subscriberID string, message port.ProgressMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.received = append(t.received, message)
	return nil
}

func TestSubscribeAndPublishDelivers(t *testing.T) {
	cache := newMemCache()
	transport := &memTransport{}
	reg := NewRegistry(cache, transport, nil)

	reg.Subscribe("tenant-1", "sub-1", "batch-1")
	reg.PublishProgress(context.Background(), "batch-1", map[string]any{"processed": 50})

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Len(t, transport.received, 1)
	assert.Equal(t, "import_progress", transport.received[0].Type)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	cache := newMemCache()
	transport := &memTransport{}
	reg := NewRegistry(cache, transport, nil)

	reg.Subscribe("tenant-1", "sub-1", "batch-1")
	reg.Unsubscribe("tenant-1", "sub-1", "batch-1")
	reg.PublishProgress(context.Background(), "batch-1", map[string]any{"processed": 50})

	transport.mu.Lock()
	defer transport.mu.Unlock()
	assert.Empty(t, transport.received)
}

func TestSnapshotForLateSubscriber(t *testing.T) {
	cache := newMemCache()
	reg := NewRegistry(cache, nil, nil)

	reg.PublishProgress(context.Background(), "batch-2", map[string]any{"processed": 10})

	msg, ok, err := reg.Snapshot(context.Background(), "batch-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "batch-2", msg.BatchID)
}

func TestCancellationFlag(t *testing.T) {
	cache := newMemCache()
	reg := NewRegistry(cache, nil, nil)

	cancelled, err := reg.IsCancelled(context.Background(), "batch-3")
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NoError(t, reg.RequestCancellation(context.Background(), "batch-3"))

	cancelled, err = reg.IsCancelled(context.Background(), "batch-3")
	require.NoError(t, err)
	assert.True(t, cancelled)
}
