package live

import (
	"sync"
)

// Table names carried by a Change.
const (
	TableConversations = "conversations"
	TableMessages      = "messages"
)

// Change describes a committed write. An empty Table or ChatID means "any".
type Change struct {
	Table  string
	ChatID string
}

// Filter selects the changes a subscription cares about.
type Filter func(Change) bool

// Conversations matches any change that can affect the conversation list.
func Conversations() Filter {
	return func(c Change) bool {
		return c.Table == "" || c.Table == TableConversations
	}
}

// Messages matches changes that can affect the messages of chatID.
func Messages(chatID string) Filter {
	return func(c Change) bool {
		if c.Table != "" && c.Table != TableMessages {
			return false
		}
		return c.ChatID == "" || c.ChatID == chatID
	}
}

// Hub fans committed changes out to subscribers.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription
	closed bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscription)}
}

// Subscription receives a signal after each matching change. Signals conflate: a
// subscriber that falls behind sees one pending signal, never a queue.
type Subscription struct {
	hub    *Hub
	id     uint64
	filter Filter
	ch     chan struct{}
	once   sync.Once
}

// Subscribe registers a subscription. A nil filter matches every change.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{hub: h, id: h.nextID, filter: filter, ch: make(chan struct{}, 1)}
	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	h.subs[sub.id] = sub
	return sub
}

// Publish signals every subscription whose filter matches change. It never blocks.
func (h *Hub) Publish(change Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		if sub.filter != nil && !sub.filter(change) {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close cancels every subscription. Later subscriptions start closed.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		sub.closeSignal()
	}
}

// C returns the signal channel. It is closed after Cancel.
func (s *Subscription) C() <-chan struct{} {
	return s.ch
}

// Cancel removes the subscription from its hub. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()
	s.closeSignal()
}

func (s *Subscription) closeSignal() {
	s.once.Do(func() { close(s.ch) })
}
