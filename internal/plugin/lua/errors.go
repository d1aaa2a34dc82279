package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNotCallable is returned when a value passed to CallValue is not a function.
	ErrNotCallable = errors.New("lua value is not callable")

	// ErrTickLimit is returned when the tick queue keeps refilling itself.
	ErrTickLimit = errors.New("lua tick queue did not drain")
)
