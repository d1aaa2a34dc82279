package event

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tidwall/match"
)

// Handler receives delivered events.
type Handler func(Event)

// Priority determines delivery order. Lower values run first.
type Priority int

// Common priorities.
const (
	PriorityHigh   Priority = -100
	PriorityNormal Priority = 0
	PriorityLow    Priority = 100
)

// Subscription is a registered handler for a topic pattern.
type Subscription struct {
	id       string
	pattern  string
	wildcard bool
	handler  Handler
	priority Priority
	once     bool
	seq      uint64

	cancelled atomic.Bool
	delivered atomic.Uint64
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*Subscription)

// WithPriority sets the delivery priority.
func WithPriority(p Priority) SubscriptionOption {
	return func(s *Subscription) {
		s.priority = p
	}
}

// Once cancels the subscription after its first delivery.
func Once() SubscriptionOption {
	return func(s *Subscription) {
		s.once = true
	}
}

func newSubscription(pattern string, handler Handler, opts []SubscriptionOption) *Subscription {
	s := &Subscription{
		id:       uuid.NewString(),
		pattern:  pattern,
		wildcard: match.IsPattern(pattern),
		handler:  handler,
		priority: PriorityNormal,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Pattern returns the subscribed topic pattern.
func (s *Subscription) Pattern() string {
	return s.pattern
}

// IsActive returns true if the subscription can receive events.
func (s *Subscription) IsActive() bool {
	return !s.cancelled.Load()
}

// Delivered returns the number of events delivered.
func (s *Subscription) Delivered() uint64 {
	return s.delivered.Load()
}

// Cancel permanently stops delivery to this subscription.
func (s *Subscription) Cancel() {
	s.cancelled.Store(true)
}

// Matches reports whether name matches the subscription's pattern.
func (s *Subscription) Matches(name string) bool {
	if !s.wildcard {
		return s.pattern == name
	}
	return match.Match(name, s.pattern)
}
