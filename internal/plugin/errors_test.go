package plugin

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestErrorMessages(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "module load",
			err:  &Error{Kind: ErrModuleLoad, Plugin: "x", Path: "/p/init.lua", Err: cause},
			want: "Error when requiring: /p/init.lua: boom",
		},
		{
			name: "initialization",
			err:  &Error{Kind: ErrInitialization, Plugin: "x", Err: cause},
			want: "Error when initializing plugin 'x': boom",
		},
		{
			name: "generic",
			err:  &Error{Kind: ErrManifestNotFound, Plugin: "x", Path: "/p/package.json", Err: cause},
			want: "plugin 'x': plugin manifest not found (/p/package.json): boom",
		},
		{
			name: "kind only",
			err:  &Error{Kind: ErrNotPrepared},
			want: "plugin has not been prepared",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if got := fmt.Sprintf("%s", tt.err); got != tt.want {
				t.Errorf("%%s = %q", got)
			}
		})
	}
}

func TestErrorIsAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &Error{Kind: ErrModuleLoad, Err: cause})

	if !errors.Is(err, ErrModuleLoad) {
		t.Error("errors.Is(kind) = false")
	}
	if errors.Is(err, ErrInitialization) {
		t.Error("errors.Is(other kind) = true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(cause) = false")
	}
}

func TestCauseError(t *testing.T) {
	traced := pkgerrors.New("traced")

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "bad thing", "bad thing"},
		{"error", errors.New("plain"), "plain"},
		{"traced", traced, "traced"},
		{"message map", map[string]any{"message": "from table"}, "from table"},
		{"other", 42, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := causeError(tt.in)
			if err == nil || err.Error() != tt.want {
				t.Fatalf("causeError() = %v, want %q", err, tt.want)
			}
			if _, ok := err.(stackTracer); !ok {
				t.Errorf("causeError(%v) has no stack trace", tt.in)
			}
		})
	}

	if causeError(nil) != nil {
		t.Error("causeError(nil) != nil")
	}
	if causeError(traced) != traced {
		t.Error("traced error was rewrapped")
	}
	if err := rejectionError(nil); err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Errorf("rejectionError(nil) = %v", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		want     string
		terminal bool
	}{
		{StateCreated, "created", false},
		{StatePrepared, "prepared", false},
		{StateLoaded, "loaded", false},
		{StateReady, "ready", true},
		{StateFailed, "failed", true},
		{State(99), "unknown", false},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("State(%d).IsTerminal() = %v", tt.state, got)
		}
	}
}
