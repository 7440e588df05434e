package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehmos/questforge/pkg/models"
)

type captureStore struct {
	mu      sync.Mutex
	entries []*models.EventEntry
}

func (c *captureStore) AppendEvent(entry *models.EventEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	return nil
}

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewBus(nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish("a", map[string]int{"n": 1})
	bus.Publish("b", map[string]int{"n": 2})

	first := <-ch
	second := <-ch
	assert.Equal(t, "a", first.Type)
	assert.Equal(t, "b", second.Type)
	assert.NotEmpty(t, first.ID)
}

func TestSubscribersIsolated(t *testing.T) {
	bus := NewBus(nil)
	ch1, cancel1 := bus.Subscribe()
	defer cancel1()
	ch2, cancel2 := bus.Subscribe()
	cancel2() // closed before publish

	bus.Publish("x", nil)
	select {
	case e := <-ch1:
		require.NotNil(t, e)
		assert.Equal(t, "x", e.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber one never received the event")
	}
	_, open := <-ch2
	assert.False(t, open)
}

func TestPublishPersists(t *testing.T) {
	store := &captureStore{}
	bus := NewBus(store)
	bus.Publish("saved", map[string]string{"k": "v"})

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.entries, 1)
	assert.Equal(t, "saved", store.entries[0].Type)
}
