// Package bus implements the totally-ordered pub/sub event bus of spec
// §4.1: every sequenced event is delivered to every subscriber whose topic
// filter matches, at most once per subscriber per event id, preserving seq
// order for a given subscriber. It generalizes the teacher's broadcast
// dedup-by-hash mechanism (core/broadcast.go's arraySet) and its
// subscriber bookkeeping (net/gateway.go) to an in-process pub/sub rather
// than a wire broadcast.
package bus

import (
	"context"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/gnosisguild/enclave-sub005/pkg/elog"
	"github.com/gnosisguild/enclave-sub005/pkg/events"
)

// MinDedupSize is the minimum bounded recent-id set size spec §4.1 requires.
const MinDedupSize = 10000

// Handler processes one delivered event. Handlers must not block (spec
// §4.1's single-threaded-cooperative scheduling model) — do real work by
// handing the event to another actor's own inbound channel.
type Handler func(ctx context.Context, ev events.Event) error

// SubscriptionID identifies a subscription for later Unsubscribe calls.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	topic   events.Kind
	handler Handler
	dropped atomic.Bool
}

// Bus is the process-wide event bus. It is safe for concurrent Publish and
// Subscribe calls, but per-subscriber delivery is serialized: Publish holds
// the dispatch lock for the duration of one event's fan-out, so a given
// subscriber never sees two deliveries concurrently and always sees seq in
// increasing order (invariant E1).
type Bus struct {
	log elog.Logger

	dispatchMu sync.Mutex // serializes one event's fan-out at a time

	subsMu  sync.RWMutex
	subs    []*subscription
	nextID  uint64

	dedup *lru.Cache

	historyMu      sync.Mutex
	historyEnabled bool
	history        []events.Event

	errorsMu sync.Mutex
	errors   []events.Event
}

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithHistory enables diagnostic replay capture (spec §4.1 "optional history capture").
func WithHistory() Option { return func(b *Bus) { b.historyEnabled = true } }

// WithDedupSize overrides the bounded recent-id set size (must be >= MinDedupSize).
func WithDedupSize(n int) Option {
	return func(b *Bus) {
		if n < MinDedupSize {
			n = MinDedupSize
		}
		c, _ := lru.New(n)
		b.dedup = c
	}
}

// New constructs a Bus.
func New(log elog.Logger, opts ...Option) *Bus {
	dedup, _ := lru.New(MinDedupSize)
	b := &Bus{log: log, dedup: dedup}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers handler for topic, which is either an event-kind name
// or events.WildcardTopic for every kind (spec §4.1).
func (b *Bus) Subscribe(topic events.Kind, handler Handler) SubscriptionID {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	b.nextID++
	sub := &subscription{id: SubscriptionID(b.nextID), topic: topic, handler: handler}
	b.subs = append(b.subs, sub)
	return sub.id
}

// Unsubscribe marks a subscription dropped; it is pruned on the next sweep
// (spec §4.1 "dropped recipients ... pruned lazily").
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.subsMu.RLock()
	defer b.subsMu.RUnlock()
	for _, s := range b.subs {
		if s.id == id {
			s.dropped.Store(true)
			return
		}
	}
}

// Publish delivers ev to every matching subscriber at most once (dedup by
// ev.Id, invariant E2), optionally captures it to history, and routes
// EnclaveError events to the error collector in addition to normal
// delivery.
func (b *Bus) Publish(ctx context.Context, ev events.Event) {
	// check-and-insert in one locked step, so two concurrent Publish calls
	// with the same id cannot both pass
	if seen, _ := b.dedup.ContainsOrAdd(ev.Id, struct{}{}); seen {
		return
	}

	if b.historyEnabled {
		b.historyMu.Lock()
		b.history = append(b.history, ev)
		b.historyMu.Unlock()
	}

	if ev.Kind() == events.KindEnclaveError {
		b.errorsMu.Lock()
		b.errors = append(b.errors, ev)
		b.errorsMu.Unlock()
	}

	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()

	b.subsMu.RLock()
	matching := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.dropped.Load() {
			continue
		}
		if s.topic == events.WildcardTopic || s.topic == ev.Kind() {
			matching = append(matching, s)
		}
	}
	b.subsMu.RUnlock()

	for _, s := range matching {
		if err := s.handler(ctx, ev); err != nil {
			b.log.Errorw("bus: handler delivery failed", "topic", s.topic, "event_id", ev.Id.String(), "err", err)
		}
	}

	b.pruneDropped()
}

func (b *Bus) pruneDropped() {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	kept := b.subs[:0]
	for _, s := range b.subs {
		if !s.dropped.Load() {
			kept = append(kept, s)
		}
	}
	b.subs = kept
}

// History returns the captured event sequence, if history capture is enabled.
func (b *Bus) History() []events.Event {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()
	return append([]events.Event(nil), b.history...)
}

// Errors returns every EnclaveError event observed so far.
func (b *Bus) Errors() []events.Event {
	b.errorsMu.Lock()
	defer b.errorsMu.Unlock()
	return append([]events.Event(nil), b.errors...)
}
