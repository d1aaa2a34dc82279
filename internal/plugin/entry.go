package plugin

import "context"

// EntryKind is the shape of a loaded module's entry point.
type EntryKind int

// Entry shapes.
const (
	// EntryNone - the module exposes no init function; initialization is a no-op.
	EntryNone EntryKind = iota
	// EntryDirect - the module value itself is the init function.
	EntryDirect
	// EntryObject - the module is an object with an init function.
	EntryObject
)

// String returns a string representation of the kind.
func (k EntryKind) String() string {
	switch k {
	case EntryNone:
		return "none"
	case EntryDirect:
		return "direct"
	case EntryObject:
		return "object"
	default:
		return "unknown"
	}
}

// DoneFunc is the completion callback handed to init functions. A nil
// argument signals success; anything else is the failure cause.
type DoneFunc func(err any)

// EntryFunc is a resolved init function.
type EntryFunc interface {
	// Arity returns the declared parameter count. ok is false when the
	// count is unknown, in which case a callback is expected.
	Arity() (n int, ok bool)

	// Call invokes the function with (config, host, done). The result may
	// be a Thenable; a non-nil error is a synchronous failure. ctx is done
	// when initialization is abandoned; script entries stop running then.
	Call(ctx context.Context, config map[string]any, host Host, done DoneFunc) (any, error)
}

// Entry is the tagged union resolved from a module. Func is nil for EntryNone.
type Entry struct {
	Kind EntryKind
	Func EntryFunc
}

// Thenable is a deferred result whose settlement completes initialization.
type Thenable interface {
	Then(onResolve func(value any), onReject func(reason any))
}

// Module is a loaded entry module.
type Module interface {
	Entry() Entry
}

// ResolveEntry returns m's entry, treating a nil module as EntryNone.
func ResolveEntry(m Module) Entry {
	if m == nil {
		return Entry{Kind: EntryNone}
	}
	e := m.Entry()
	if e.Func == nil {
		return Entry{Kind: EntryNone}
	}
	return e
}
