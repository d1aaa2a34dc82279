package plugin

// State represents the lifecycle state of a plugin handle.
type State int

// Handle states.
const (
	// StateCreated - Handle constructed, nothing read yet.
	StateCreated State = iota

	// StatePrepared - Manifest read and configuration merged.
	StatePrepared

	// StateLoaded - Entry module loaded.
	StateLoaded

	// StateReady - Init hook completed successfully.
	StateReady

	// StateFailed - A lifecycle step failed; see Handle.Err.
	StateFailed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePrepared:
		return "prepared"
	case StateLoaded:
		return "loaded"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true once initialization has finished either way.
func (s State) IsTerminal() bool {
	return s == StateReady || s == StateFailed
}
