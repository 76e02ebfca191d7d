package eventbus

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/snarg/transcript-editor/internal/api"
	"github.com/snarg/transcript-editor/internal/transcript"
)

// EventBus provides pub-sub distribution of transcript change events to
// stream subscribers. It keeps a ring buffer for replay on reconnect.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]subscriber
	nextID      uint64
	seq         atomic.Uint64
	published   atomic.Int64

	ring     []api.Event
	ringSize int
	ringHead int
	ringMu   sync.RWMutex
}

type subscriber struct {
	ch     chan api.Event
	filter api.EventFilter
}

// New creates an event bus with the given ring buffer size.
func New(ringSize int) *EventBus {
	return &EventBus{
		subscribers: make(map[uint64]subscriber),
		ring:        make([]api.Event, ringSize),
		ringSize:    ringSize,
	}
}

// Subscribe registers a new subscriber and returns a channel and cancel function.
func (eb *EventBus) Subscribe(filter api.EventFilter) (<-chan api.Event, func()) {
	eb.mu.Lock()
	id := eb.nextID
	eb.nextID++
	ch := make(chan api.Event, 64)
	eb.subscribers[id] = subscriber{ch: ch, filter: filter}
	eb.mu.Unlock()

	cancel := func() {
		eb.mu.Lock()
		delete(eb.subscribers, id)
		eb.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscribers.
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Published returns the number of events published since creation.
func (eb *EventBus) Published() int64 {
	return eb.published.Load()
}

// ReplaySince returns buffered events after the given event ID, oldest first.
// An empty ID replays the whole buffer.
func (eb *EventBus) ReplaySince(lastEventID string, filter api.EventFilter) []api.Event {
	eb.ringMu.RLock()
	defer eb.ringMu.RUnlock()

	var events []api.Event
	found := lastEventID == ""

	for i := 0; i < eb.ringSize; i++ {
		idx := (eb.ringHead + i) % eb.ringSize
		e := eb.ring[idx]
		if e.ID == "" {
			continue
		}
		if !found {
			if e.ID == lastEventID {
				found = true
			}
			continue
		}
		if matchesFilter(e, filter) {
			events = append(events, e)
		}
	}
	return events
}

// Publish sends an event to all matching subscribers and adds it to the ring buffer.
func (eb *EventBus) Publish(eventType string, words []transcript.Word) {
	data, err := json.Marshal(api.ChangePayload{Words: words})
	if err != nil {
		return
	}

	ids := make([]int, len(words))
	for i, w := range words {
		ids[i] = w.ID
	}

	seq := eb.seq.Add(1)
	now := time.Now()
	event := api.Event{
		ID:        fmt.Sprintf("%d-%d", now.UnixMilli(), seq),
		Type:      eventType,
		Timestamp: now.UTC().Format(time.RFC3339),
		WordIDs:   ids,
		Data:      data,
	}

	eb.ringMu.Lock()
	eb.ring[eb.ringHead] = event
	eb.ringHead = (eb.ringHead + 1) % eb.ringSize
	eb.ringMu.Unlock()
	eb.published.Add(1)

	eb.mu.RLock()
	for _, sub := range eb.subscribers {
		if matchesFilter(event, sub.filter) {
			select {
			case sub.ch <- event:
			default:
				// Drop if subscriber is slow
			}
		}
	}
	eb.mu.RUnlock()
}

// HandleChange adapts the bus to transcript.Store change notifications.
func (eb *EventBus) HandleChange(c transcript.Change) {
	eb.Publish(c.Kind, c.Words)
}

func matchesFilter(e api.Event, f api.EventFilter) bool {
	if len(f.Types) > 0 {
		match := false
		for _, t := range f.Types {
			if strings.TrimSpace(t) == e.Type {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	// Replacements touch every word, so they always pass an id filter.
	if len(f.WordIDs) > 0 && e.Type != transcript.ChangeReplaced {
		for _, want := range f.WordIDs {
			for _, got := range e.WordIDs {
				if want == got {
					return true
				}
			}
		}
		return false
	}
	return true
}
