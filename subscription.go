package wsrpc

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Listener receives the result of each notification for a subscribed event,
// or the server's error object as an *RPCError.
type Listener func(data json.RawMessage, err error)

// Unsubscribe removes the listener it was returned for. Calling it more than
// once is a no-op.
type Unsubscribe func()

type listener struct {
	fn Listener
}

// subscription is one event name's entry in the subscription table.
type subscription struct {
	name       string
	id         uint64
	hasID      bool // live id for the current session
	subscribed bool // acknowledged at least once; replayed after reconnect
	listeners  []*listener
	grace      *time.Timer // pending unsubscribe, nil when not armed
	graceGen   uint64

	// unsubscribing is closed once the unsubscribe round trip has finished
	// and the entry has left the table. nil unless one is in flight.
	unsubscribing chan struct{}
}

func (s *subscription) removeListener(l *listener) bool {
	for i, existing := range s.listeners {
		if existing == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (s *subscription) stopGrace() {
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	s.graceGen++
}

// armGrace starts the unsubscribe grace timer. fn receives the generation it
// was armed with so a timer that fired after being replaced can tell.
func (s *subscription) armGrace(d time.Duration, fn func(gen uint64)) {
	s.stopGrace()
	gen := s.graceGen
	s.grace = time.AfterFunc(d, func() { fn(gen) })
}

// subscriptionTable maps event names to subscriptions. It is owned by the
// Client and only touched with Client.mu held.
type subscriptionTable struct {
	subs map[string]*subscription
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{
		subs: make(map[string]*subscription),
	}
}

func (t *subscriptionTable) get(name string) (*subscription, bool) {
	s, ok := t.subs[name]
	return s, ok
}

func (t *subscriptionTable) create(name string, l *listener) *subscription {
	s := &subscription{
		name:      name,
		listeners: []*listener{l},
	}
	t.subs[name] = s
	return s
}

// delete removes name only if it still maps to s.
func (t *subscriptionTable) delete(name string, s *subscription) bool {
	if cur, ok := t.subs[name]; !ok || cur != s {
		return false
	}
	s.stopGrace()
	delete(t.subs, name)
	return true
}

// byID returns the subscription whose acknowledged id is id.
func (t *subscriptionTable) byID(id uint64) (*subscription, bool) {
	for _, s := range t.subs {
		if s.hasID && s.id == id {
			return s, true
		}
	}
	return nil, false
}

// snapshot returns the current entries ordered by event name.
func (t *subscriptionTable) snapshot() []*subscription {
	out := make([]*subscription, 0, len(t.subs))
	for _, s := range t.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// reset drops every subscription and its pending unsubscribe timer.
func (t *subscriptionTable) reset() int {
	n := len(t.subs)
	for name, s := range t.subs {
		s.stopGrace()
		delete(t.subs, name)
	}
	return n
}

func (t *subscriptionTable) size() int {
	return len(t.subs)
}

// delivery is one notification bound for a snapshot of a subscription's listeners.
type delivery struct {
	fns  []Listener
	data json.RawMessage
	err  error
}

// eventQueue runs listener callbacks off the read loop, one delivery at a
// time and in the order they were pushed. The drain goroutine exits when the
// queue is empty and is restarted by the next push.
type eventQueue struct {
	mu      sync.Mutex
	items   []delivery
	running bool
}

func (q *eventQueue) push(d delivery) {
	q.mu.Lock()
	q.items = append(q.items, d)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()
	go q.drain()
}

func (q *eventQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		d := q.items[0]
		q.items[0] = delivery{}
		q.items = q.items[1:]
		q.mu.Unlock()

		for _, fn := range d.fns {
			fn(d.data, d.err)
		}
	}
}
