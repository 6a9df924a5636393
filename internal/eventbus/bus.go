package eventbus

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one message on the bus.
type Event struct {
	// Seq is assigned by the bus and increases monotonically per bus.
	Seq uint64

	// Publisher is the topic the event was published under.
	Publisher string

	// Type is the event type within the publisher, e.g. "scan.started".
	Type string

	// Params holds string parameters such as "scanId" and "target".
	Params map[string]string

	// Time is set by the bus when left zero.
	Time time.Time
}

// Param returns the named parameter or "".
func (e Event) Param(name string) string {
	return e.Params[name]
}

// Consumer receives events. It runs on the publisher's goroutine.
type Consumer func(Event)

// Bus routes events from publishers to the consumers subscribed to them.
// The zero value is not usable; create one with New.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64

	seq    atomic.Uint64
	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used when a consumer panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// New creates an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{subs: make(map[uint64]*Subscription)}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Subscription is the token returned by Subscribe.
type Subscription struct {
	id         uint64
	bus        *Bus
	consumer   Consumer
	publishers map[string]struct{}
	cancelled  atomic.Bool
}

// Subscribe registers consumer for events from the given publishers.
// With no publishers the consumer receives every event.
func (b *Bus) Subscribe(consumer Consumer, publishers ...string) *Subscription {
	s := &Subscription{
		bus:        b,
		consumer:   consumer,
		publishers: make(map[string]struct{}, len(publishers)),
	}
	for _, p := range publishers {
		s.publishers[p] = struct{}{}
	}

	b.mu.Lock()
	b.nextID++
	s.id = b.nextID
	b.subs[s.id] = s
	b.mu.Unlock()
	return s
}

// Cancel revokes the subscription. It is safe to call more than once and
// from inside the consumer. No event published after Cancel returns is
// delivered.
func (s *Subscription) Cancel() {
	if s == nil || !s.cancelled.CompareAndSwap(false, true) {
		return
	}
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	return s != nil && !s.cancelled.Load()
}

func (s *Subscription) wants(publisher string) bool {
	if len(s.publishers) == 0 {
		return true
	}
	_, ok := s.publishers[publisher]
	return ok
}

// Publish delivers e to every matching consumer in subscription order and
// returns the number of consumers that received it.
func (b *Bus) Publish(e Event) int {
	e.Seq = b.seq.Add(1)
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(e.Publisher) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	delivered := 0
	for _, s := range targets {
		if !s.Active() {
			continue
		}
		if b.deliver(s, e) {
			delivered++
		}
	}
	return delivered
}

func (b *Bus) deliver(s *Subscription, e Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event consumer failed",
				"publisher", e.Publisher,
				"type", e.Type,
				"panic", fmt.Sprint(r),
			)
			ok = false
		}
	}()
	s.consumer(e)
	return true
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
