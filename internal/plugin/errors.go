package plugin

import (
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/pkg/errors"
)

// Plugin lifecycle error kinds. Every failure returned by a Handle is an
// *Error whose Kind is one of these; match with errors.Is.
var (
	// ErrConstruction is returned when a handle is created without a
	// required argument.
	ErrConstruction = errors.New("invalid plugin handle arguments")

	// ErrManifestNotFound is returned when package.json does not exist.
	ErrManifestNotFound = errors.New("plugin manifest not found")

	// ErrManifestRead is returned when the manifest or the plugin-local
	// config file exists but cannot be read, parsed or validated.
	ErrManifestRead = errors.New("plugin manifest could not be read")

	// ErrModuleLoad is returned when the entry module fails to load.
	ErrModuleLoad = errors.New("plugin module could not be loaded")

	// ErrInitialization is returned when the plugin's init hook reports failure.
	ErrInitialization = errors.New("plugin initialization failed")

	// ErrNotPrepared is returned by Load before Prepare has succeeded.
	ErrNotPrepared = errors.New("plugin has not been prepared")

	// ErrInitTimeout is wrapped by ErrInitialization when the init hook
	// does not complete within the configured timeout.
	ErrInitTimeout = errors.New("plugin initialization timed out")
)

// Discovery and module registry errors.
var (
	// ErrPluginNotFound is returned when no search path is configured.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrUnknownModule is returned when a go: entry names an unregistered module.
	ErrUnknownModule = errors.New("unknown go module")

	// ErrUnsupportedEntry is returned when no loader handles a main entry.
	ErrUnsupportedEntry = errors.New("unsupported entry module")
)

// Error is a plugin lifecycle failure.
type Error struct {
	// Kind is one of the Err* sentinels above.
	Kind error
	// Plugin is the plugin name.
	Plugin string
	// Path is the file involved, if any.
	Path string
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrModuleLoad:
		return fmt.Sprintf("Error when requiring: %s: %v", e.Path, e.Err)
	case ErrInitialization:
		return fmt.Sprintf("Error when initializing plugin '%s': %v", e.Plugin, e.Err)
	}

	msg := e.Kind.Error()
	if e.Plugin != "" {
		msg = fmt.Sprintf("plugin '%s': %s", e.Plugin, msg)
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Format implements fmt.Formatter. %+v appends the cause with its stack trace.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			io.WriteString(s, e.Error())
			if e.Err != nil {
				fmt.Fprintf(s, "\n%+v", e.Err)
			}
			return
		}
		io.WriteString(s, e.Error())
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// causeError converts a completion or rejection value into an error that
// carries a stack trace. nil stays nil.
func causeError(v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case stackTracer:
		if err, ok := x.(error); ok {
			return err
		}
	case error:
		return pkgerrors.WithStack(x)
	case string:
		return pkgerrors.New(x)
	case map[string]any:
		if msg, ok := x["message"].(string); ok {
			return pkgerrors.New(msg)
		}
	}
	return pkgerrors.Errorf("%v", v)
}

// rejectionError is causeError for promise rejections, where even an empty
// reason is a failure.
func rejectionError(v any) error {
	if err := causeError(v); err != nil {
		return err
	}
	return pkgerrors.New("promise rejected")
}
