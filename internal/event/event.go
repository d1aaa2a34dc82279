package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a published event. Events are immutable once created.
type Event struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Name is the event name, e.g. "plugin-loaded:comments".
	Name string

	// Args are the published arguments.
	Args []any

	// Timestamp is when the event was created.
	Timestamp time.Time
}

// New creates an event with a fresh ID.
func New(name string, args ...any) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		Args:      args,
		Timestamp: time.Now(),
	}
}

// Arg returns the i-th argument, or nil when out of range.
func (e Event) Arg(i int) any {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}
