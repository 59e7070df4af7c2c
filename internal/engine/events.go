package engine

import "sync"

// EventType names the engine events the UI layer can react to.
type EventType string

const (
	EventItemAdded      EventType = "item-added"
	EventItemUpdated    EventType = "item-updated"
	EventItemRemoved    EventType = "item-removed"
	EventHistoryCleared EventType = "history-cleared"
	EventDelivery       EventType = "delivery-result"
	EventEncryption     EventType = "encryption-state"
	EventError          EventType = "error"
)

// Event is one engine notification. Only the fields relevant to its
// type are populated.
type Event struct {
	Type    EventType  `json:"type"`
	Item    *ViewModel `json:"item,omitempty"`
	ItemID  string     `json:"item_id,omitempty"`
	Result  string     `json:"result,omitempty"`
	Enabled bool       `json:"enabled,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// broadcaster fans engine events out to subscribers. Slow consumers
// drop events rather than stall the capture loop.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan Event]struct{})}
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = make(map[chan Event]struct{})
}
