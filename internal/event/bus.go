package event

import (
	"sort"
	"sync"
	"sync/atomic"
)

// DefaultHistorySize is the number of recent events kept by default.
const DefaultHistorySize = 64

// PanicHandler is called when a handler panics.
type PanicHandler func(err *PanicError)

// Bus is a synchronous publish/subscribe event bus. It is safe for
// concurrent use.
type Bus struct {
	mu     sync.RWMutex
	exact  map[string][]*Subscription
	wild   []*Subscription
	byID   map[string]*Subscription
	seq    uint64
	closed bool

	histMu  sync.Mutex
	history []Event
	histCap int

	onPanic PanicHandler

	// Stats
	published atomic.Uint64
	delivered atomic.Uint64
	panics    atomic.Uint64
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithPanicHandler sets the handler for recovered panics.
func WithPanicHandler(h PanicHandler) BusOption {
	return func(b *Bus) {
		b.onPanic = h
	}
}

// WithHistorySize sets how many recent events are kept. Zero disables history.
func WithHistorySize(n int) BusOption {
	return func(b *Bus) {
		b.histCap = n
	}
}

// Stats is a snapshot of bus counters.
type Stats struct {
	Published     uint64
	Delivered     uint64
	Panics        uint64
	Subscriptions int
}

// NewBus creates a new event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		exact:   make(map[string][]*Subscription),
		byID:    make(map[string]*Subscription),
		histCap: DefaultHistorySize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for events matching pattern.
func (b *Bus) Subscribe(pattern string, handler Handler, opts ...SubscriptionOption) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if pattern == "" {
		return nil, ErrInvalidTopic
	}

	sub := newSubscription(pattern, handler, opts)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	b.seq++
	sub.seq = b.seq
	if sub.wildcard {
		b.wild = append(b.wild, sub)
	} else {
		b.exact[pattern] = append(b.exact[pattern], sub)
	}
	b.byID[sub.id] = sub
	return sub, nil
}

// SubscribeFunc is Subscribe for a plain function.
func (b *Bus) SubscribeFunc(pattern string, fn func(Event), opts ...SubscriptionOption) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(pattern, Handler(fn), opts...)
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	sub.Cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.byID[sub.id]; !ok {
		return ErrSubscriptionNotFound
	}
	b.removeLocked(sub)
	return nil
}

func (b *Bus) removeLocked(sub *Subscription) {
	delete(b.byID, sub.id)
	if sub.wildcard {
		b.wild = without(b.wild, sub)
		return
	}
	subs := without(b.exact[sub.pattern], sub)
	if len(subs) == 0 {
		delete(b.exact, sub.pattern)
	} else {
		b.exact[sub.pattern] = subs
	}
}

func without(subs []*Subscription, sub *Subscription) []*Subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s != sub {
			out = append(out, s)
		}
	}
	return out
}

// Publish creates an event and delivers it to every matching subscription
// before returning it.
func (b *Bus) Publish(name string, args ...any) Event {
	ev := New(name, args...)
	b.Deliver(ev)
	return ev
}

// Deliver delivers an existing event.
func (b *Bus) Deliver(ev Event) {
	b.published.Add(1)
	b.record(ev)

	for _, sub := range b.match(ev.Name) {
		if !sub.IsActive() {
			continue
		}
		if sub.once {
			// Only the first concurrent delivery wins.
			if sub.cancelled.Swap(true) {
				continue
			}
			b.mu.Lock()
			b.removeLocked(sub)
			b.mu.Unlock()
		}
		b.dispatch(sub, ev)
	}
}

// match returns the active subscriptions for name in delivery order.
func (b *Bus) match(name string) []*Subscription {
	b.mu.RLock()
	subs := append([]*Subscription(nil), b.exact[name]...)
	for _, s := range b.wild {
		if s.Matches(name) {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].priority != subs[j].priority {
			return subs[i].priority < subs[j].priority
		}
		return subs[i].seq < subs[j].seq
	})
	return subs
}

func (b *Bus) dispatch(sub *Subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			if b.onPanic != nil {
				b.onPanic(&PanicError{SubscriptionID: sub.id, Topic: ev.Name, Value: r})
			}
		}
	}()

	sub.handler(ev)
	sub.delivered.Add(1)
	b.delivered.Add(1)
}

func (b *Bus) record(ev Event) {
	if b.histCap <= 0 {
		return
	}
	b.histMu.Lock()
	defer b.histMu.Unlock()
	if len(b.history) == b.histCap {
		copy(b.history, b.history[1:])
		b.history = b.history[:len(b.history)-1]
	}
	b.history = append(b.history, ev)
}

// History returns recent events, oldest first.
func (b *Bus) History() []Event {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	return append([]Event(nil), b.history...)
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	n := len(b.byID)
	b.mu.RUnlock()
	return Stats{
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		Panics:        b.panics.Load(),
		Subscriptions: n,
	}
}

// Close cancels every subscription. Publishing on a closed bus records
// history but delivers nothing.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.byID {
		sub.Cancel()
	}
	b.exact = make(map[string][]*Subscription)
	b.wild = nil
	b.byID = make(map[string]*Subscription)
	b.closed = true
}
