// Package events provides the in-process publish-subscribe bus.
// Publication is fire-and-forget; subscribers are isolated from each
// other and observe events in emission order.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mnehmos/questforge/pkg/models"
)

// Store persists published events. A nil store disables persistence.
type Store interface {
	AppendEvent(entry *models.EventEntry) error
}

// Bus fans published events out to subscribers. A slow subscriber drops
// events rather than blocking the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan *models.EventEntry
	nextID int
	store  Store
	logger *slog.Logger
}

// NewBus creates a bus. store may be nil.
func NewBus(store Store) *Bus {
	return &Bus{
		subs:   make(map[int]chan *models.EventEntry),
		store:  store,
		logger: slog.Default().With("component", "events"),
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is buffered; events beyond the
// buffer are dropped for that subscriber only.
func (b *Bus) Subscribe() (<-chan *models.EventEntry, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan *models.EventEntry, 64)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Publish emits an event of the given type. payload must be
// JSON-marshalable; a marshal failure logs and drops the event.
func (b *Bus) Publish(eventType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("dropping unmarshalable event", "type", eventType, "error", err)
		return
	}
	entry := &models.EventEntry{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}
	if b.store != nil {
		if err := b.store.AppendEvent(entry); err != nil {
			b.logger.Warn("failed to persist event", "type", eventType, "error", err)
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}
