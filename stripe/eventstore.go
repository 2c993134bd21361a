package stripe

import (
	"context"
	"sync"
	"time"

	"github.com/paydesk/payments-backend/db"
)

// EventStore records the webhook events already processed so redeliveries
// are skipped.
type EventStore interface {
	EventExists(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string) error
}

var _ EventStore = (*db.MongoStorage)(nil)

// MemoryEventStore is an in-memory EventStore for single instance
// deployments and tests. Entries expire after the TTL.
type MemoryEventStore struct {
	events map[string]time.Time
	mutex  sync.RWMutex
	ttl    time.Duration
}

// NewMemoryEventStore creates a new in-memory event store. Its cleanup
// goroutine stops when ctx is done.
func NewMemoryEventStore(ctx context.Context, ttl time.Duration) *MemoryEventStore {
	if ttl == 0 {
		ttl = DefaultEventTTL
	}
	store := &MemoryEventStore{
		events: make(map[string]time.Time),
		ttl:    ttl,
	}
	go store.cleanupLoop(ctx, min(ttl, time.Hour))
	return store
}

// EventExists checks if an event has already been processed
func (m *MemoryEventStore) EventExists(_ context.Context, eventID string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	processedAt, exists := m.events[eventID]
	return exists && time.Since(processedAt) <= m.ttl, nil
}

// MarkProcessed marks an event as processed. Marking the same event twice
// returns db.ErrAlreadyExists, like the MongoDB store.
func (m *MemoryEventStore) MarkProcessed(_ context.Context, eventID, _ string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if processedAt, exists := m.events[eventID]; exists && time.Since(processedAt) <= m.ttl {
		return db.ErrAlreadyExists
	}
	m.events[eventID] = time.Now()
	return nil
}

func (m *MemoryEventStore) cleanupLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

// cleanup removes expired events
func (m *MemoryEventStore) cleanup() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	now := time.Now()
	for eventID, processedAt := range m.events {
		if now.Sub(processedAt) > m.ttl {
			delete(m.events, eventID)
		}
	}
}

// Size returns the number of stored events (for monitoring/debugging)
func (m *MemoryEventStore) Size() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.events)
}
