package port

import (
	"context"
	"time"
)

// Cache is the external ephemeral key-value store the core depends on for
// progress snapshots, cancellation flags and CSV metadata preview caching.
// A production deployment backs this with Redis; rate limiting, blocked-IP
// tracking and session metadata are owned by the authentication subsystem
// and are out of this core's scope, but share the same Cache port.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

// Authenticator exposes the external authentication subsystem's view of
// the current actor. The core never authenticates anyone; it only
// consumes the resolved Actor to populate audit rows.
type Authenticator interface {
	CurrentActor(ctx context.Context) (Actor, error)
}

// Actor mirrors entity.Actor at the port boundary so this package does not
// need to import entity just for this one interface's return type; the
// concrete adapter maps between them.
type Actor struct {
	UserID      string
	TenantID    string
	Role        string
	Permissions []string
	IP          string
	UserAgent   string
}

// ProgressTransport is the external WebSocket fanout transport. The
// progress registry (application/service/progress) publishes structured
// messages through this port; the transport serializes and delivers them
// to connected subscribers.
type ProgressTransport interface {
	Send(ctx context.Context, subscriberID string, message ProgressMessage) error
}

// ProgressMessage is the wire shape delivered to subscribers.
type ProgressMessage struct {
	Type      string
	BatchID   string
	Data      map[string]any
	Timestamp time.Time
}
