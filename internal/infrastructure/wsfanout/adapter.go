// Package wsfanout implements port.ProgressTransport over WebSocket
// connections, delivering progress.Registry messages to subscribed
// browser clients.
package wsfanout

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/invoicereconcile/core/internal/application/port"
)

// writeTimeout bounds how long a single message send may block before
// the connection is considered dead and dropped.
const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Adapter implements port.ProgressTransport by holding one *websocket.Conn
// per subscriber ID and serializing writes to each with its own mutex,
// since gorilla/websocket connections are not safe for concurrent writers.
type Adapter struct {
	mu    sync.RWMutex
	conns map[string]*connEntry
	logger *zap.Logger
}

type connEntry struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// New builds an empty Adapter.
func New(logger *zap.Logger) *Adapter {
	return &Adapter{conns: make(map[string]*connEntry), logger: logger}
}

// Register upgrades r into a WebSocket connection and associates it with
// subscriberID, replacing any prior connection for the same ID.
func (a *Adapter) Register(w http.ResponseWriter, r *http.Request, subscriberID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("wsfanout: upgrade: %w", err)
	}

	a.mu.Lock()
	if existing, ok := a.conns[subscriberID]; ok {
		_ = existing.conn.Close()
	}
	a.conns[subscriberID] = &connEntry{conn: conn}
	a.mu.Unlock()

	conn.SetCloseHandler(func(code int, text string) error {
		a.Unregister(subscriberID)
		return nil
	})
	return nil
}

// Unregister drops and closes the connection for subscriberID, if any.
func (a *Adapter) Unregister(subscriberID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if entry, ok := a.conns[subscriberID]; ok {
		_ = entry.conn.Close()
		delete(a.conns, subscriberID)
	}
}

// Send implements port.ProgressTransport. A subscriber with no live
// connection is silently skipped rather than treated as an error, since
// a progress publish racing a client disconnect is expected traffic.
func (a *Adapter) Send(ctx context.Context, subscriberID string, message port.ProgressMessage) error {
	a.mu.RLock()
	entry, ok := a.conns[subscriberID]
	a.mu.RUnlock()
	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	_ = entry.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := entry.conn.WriteJSON(message); err != nil {
		a.logger.Warn("wsfanout: write failed, dropping connection",
			zap.String("subscriber_id", subscriberID), zap.Error(err))
		_ = entry.conn.Close()
		a.mu.Lock()
		delete(a.conns, subscriberID)
		a.mu.Unlock()
		return fmt.Errorf("wsfanout: write to %s: %w", subscriberID, err)
	}
	return nil
}

var _ port.ProgressTransport = (*Adapter)(nil)
