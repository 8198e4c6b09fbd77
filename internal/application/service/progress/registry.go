// Package progress implements the process-local progress fanout registry:
// a batch_id -> subscriber set and a (tenant_id, subscriber_id) -> batch
// set, plus a cache-backed snapshot for late subscribers and a cooperative
// cancellation flag. Adapted from the dispatcher's subscriber-registry
// shape, generalized from event-type routing to batch/tenant routing.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/invoicereconcile/core/internal/application/port"
)

// SnapshotTTL is how long the last-known payload for a batch survives in
// the cache for late subscribers.
const SnapshotTTL = time.Hour

func snapshotKey(batchID string) string { return "import_progress:" + batchID }
func cancelKey(batchID string) string   { return "cancel_import:" + batchID }

type subscriberKey struct {
	tenantID     string
	subscriberID string
}

// Registry is safe for concurrent callers; all state mutation happens
// under mu.
type Registry struct {
	mu            sync.RWMutex
	batchSubs     map[string]map[string]struct{}
	subscriberBatches map[subscriberKey]map[string]struct{}

	cache     port.Cache
	transport port.ProgressTransport
	logger    *zap.Logger
}

// NewRegistry builds a Registry backed by the given cache (for snapshots
// and cancellation flags) and transport (for delivering live messages).
func NewRegistry(cache port.Cache, transport port.ProgressTransport, logger *zap.Logger) *Registry {
	return &Registry{
		batchSubs:         make(map[string]map[string]struct{}),
		subscriberBatches: make(map[subscriberKey]map[string]struct{}),
		cache:             cache,
		transport:         transport,
		logger:            logger,
	}
}

// Subscribe registers subscriberID to receive updates for batchID.
func (r *Registry) Subscribe(tenantID, subscriberID, batchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.batchSubs[batchID] == nil {
		r.batchSubs[batchID] = make(map[string]struct{})
	}
	r.batchSubs[batchID][subscriberID] = struct{}{}

	key := subscriberKey{tenantID: tenantID, subscriberID: subscriberID}
	if r.subscriberBatches[key] == nil {
		r.subscriberBatches[key] = make(map[string]struct{})
	}
	r.subscriberBatches[key][batchID] = struct{}{}
}

// Unsubscribe removes subscriberID from batchID's subscriber set.
func (r *Registry) Unsubscribe(tenantID, subscriberID, batchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if subs, ok := r.batchSubs[batchID]; ok {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(r.batchSubs, batchID)
		}
	}
	key := subscriberKey{tenantID: tenantID, subscriberID: subscriberID}
	if batches, ok := r.subscriberBatches[key]; ok {
		delete(batches, batchID)
		if len(batches) == 0 {
			delete(r.subscriberBatches, key)
		}
	}
}

func (r *Registry) subscribersFor(batchID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.batchSubs[batchID]))
	for s := range r.batchSubs[batchID] {
		out = append(out, s)
	}
	return out
}

func (r *Registry) publish(ctx context.Context, batchID string, msg port.ProgressMessage) {
	payload, err := json.Marshal(msg)
	if err == nil && r.cache != nil {
		if err := r.cache.Set(ctx, snapshotKey(batchID), payload, SnapshotTTL); err != nil && r.logger != nil {
			r.logger.Warn("progress: failed to cache snapshot", zap.String("batch_id", batchID), zap.Error(err))
		}
	}

	if r.transport == nil {
		return
	}
	for _, sub := range r.subscribersFor(batchID) {
		if err := r.transport.Send(ctx, sub, msg); err != nil && r.logger != nil {
			r.logger.Warn("progress: failed to deliver message", zap.String("subscriber", sub), zap.Error(err))
		}
	}
}

// PublishProgress sends an "import_progress" message carrying payload.
func (r *Registry) PublishProgress(ctx context.Context, batchID string, payload map[string]any) {
	r.publish(ctx, batchID, port.ProgressMessage{
		Type: "import_progress", BatchID: batchID, Data: payload, Timestamp: time.Now().UTC(),
	})
}

// PublishStatus sends an "import_status_change" message.
func (r *Registry) PublishStatus(ctx context.Context, batchID, tenantID, status string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["status"] = status
	payload["tenant_id"] = tenantID
	r.publish(ctx, batchID, port.ProgressMessage{
		Type: "import_status_change", BatchID: batchID, Data: payload, Timestamp: time.Now().UTC(),
	})
}

// PublishError sends an "import_error" message.
func (r *Registry) PublishError(ctx context.Context, batchID, tenantID string, cause error) {
	r.publish(ctx, batchID, port.ProgressMessage{
		Type: "import_error", BatchID: batchID,
		Data:      map[string]any{"tenant_id": tenantID, "message": cause.Error()},
		Timestamp: time.Now().UTC(),
	})
}

// Snapshot fetches the last-known payload for batchID for a late
// subscriber, returning ok=false if nothing is cached (e.g. TTL expired).
func (r *Registry) Snapshot(ctx context.Context, batchID string) (port.ProgressMessage, bool, error) {
	if r.cache == nil {
		return port.ProgressMessage{}, false, nil
	}
	raw, ok, err := r.cache.Get(ctx, snapshotKey(batchID))
	if err != nil || !ok {
		return port.ProgressMessage{}, false, err
	}
	var msg port.ProgressMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return port.ProgressMessage{}, false, fmt.Errorf("progress: decode snapshot: %w", err)
	}
	return msg, true, nil
}

// RequestCancellation sets the distinct cancel_import:<batch> key that the
// ingestion pipeline polls at every progress checkpoint.
func (r *Registry) RequestCancellation(ctx context.Context, batchID string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Set(ctx, cancelKey(batchID), []byte("1"), SnapshotTTL)
}

// IsCancelled polls the cancellation key.
func (r *Registry) IsCancelled(ctx context.Context, batchID string) (bool, error) {
	if r.cache == nil {
		return false, nil
	}
	_, ok, err := r.cache.Get(ctx, cancelKey(batchID))
	return ok, err
}

// ClearCancellation removes the cancellation key, e.g. after a new run of
// the same batch id is started.
func (r *Registry) ClearCancellation(ctx context.Context, batchID string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Delete(ctx, cancelKey(batchID))
}
