// Package live notifies readers when tables change so reactive queries can
// re-run. Notifications carry no payload: a subscriber learns that something
// it depends on changed and reads the new state itself.
package live

import "sync"

// Hub fans out change notifications per topic. Publish never blocks: each
// subscription holds at most one pending notification and further publishes
// coalesce into it.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

// Subscription receives a value on C after any of its topics is published.
type Subscription struct {
	C      <-chan struct{}
	ch     chan struct{}
	hub    *Hub
	topics []string
	once   sync.Once
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers interest in topics. The caller must Close the
// subscription when done.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	ch := make(chan struct{}, 1)
	s := &Subscription{C: ch, ch: ch, hub: h, topics: topics}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.closeChan()
		return s
	}
	for _, t := range topics {
		set, ok := h.subs[t]
		if !ok {
			set = make(map[*Subscription]struct{})
			h.subs[t] = set
		}
		set[s] = struct{}{}
	}
	return s
}

// Publish notifies every subscription on any of topics.
func (h *Hub) Publish(topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		for s := range h.subs[t] {
			select {
			case s.ch <- struct{}{}:
			default:
			}
		}
	}
}

// Subscribers returns the number of subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}

// Close closes every subscription channel. Later subscriptions are created
// closed.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]map[*Subscription]struct{})
	h.closed = true
	h.mu.Unlock()

	seen := make(map[*Subscription]bool)
	for _, set := range subs {
		for s := range set {
			if !seen[s] {
				seen[s] = true
				s.closeChan()
			}
		}
	}
}

// Close unregisters the subscription and closes C. Idempotent.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	for _, t := range s.topics {
		if set, ok := s.hub.subs[t]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, t)
			}
		}
	}
	s.hub.mu.Unlock()
	s.closeChan()
}

func (s *Subscription) closeChan() {
	s.once.Do(func() { close(s.ch) })
}
