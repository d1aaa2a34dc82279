package plugin

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// LoadRequest describes an entry module to load.
type LoadRequest struct {
	// Plugin is the plugin name.
	Plugin string
	// Dir is the plugin directory.
	Dir string
	// Main is the resolved entry path or go: reference.
	Main string
	// Host is the owning host.
	Host Host
}

// ModuleLoader loads entry modules.
type ModuleLoader interface {
	Load(ctx context.Context, req LoadRequest) (Module, error)
}

// ModuleLoaderFunc adapts a function to ModuleLoader.
type ModuleLoaderFunc func(ctx context.Context, req LoadRequest) (Module, error)

// Load calls f.
func (f ModuleLoaderFunc) Load(ctx context.Context, req LoadRequest) (Module, error) {
	return f(ctx, req)
}

// MultiLoader dispatches on the main entry: go: references go to Go,
// .lua files to Lua.
type MultiLoader struct {
	Lua ModuleLoader
	Go  ModuleLoader
}

// NewMultiLoader returns a loader over the default Lua loader and the
// process-wide Go registry.
func NewMultiLoader() *MultiLoader {
	return &MultiLoader{
		Lua: NewLuaLoader(),
		Go:  DefaultRegistry,
	}
}

// Load implements ModuleLoader.
func (m *MultiLoader) Load(ctx context.Context, req LoadRequest) (Module, error) {
	switch {
	case strings.HasPrefix(req.Main, GoScheme) && m.Go != nil:
		return m.Go.Load(ctx, req)
	case strings.EqualFold(filepath.Ext(req.Main), ".lua") && m.Lua != nil:
		return m.Lua.Load(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEntry, req.Main)
	}
}

// InitFunc is a Go init function taking a completion callback.
// It may call done from any goroutine.
type InitFunc func(config map[string]any, host Host, done DoneFunc)

// SyncInitFunc is a Go init function that completes when it returns.
type SyncInitFunc func(config map[string]any, host Host) error

// PromiseInitFunc is a Go init function whose Thenable result drives completion.
type PromiseInitFunc func(config map[string]any, host Host) Thenable

// Initializer is a Go module object exposing an init method.
type Initializer interface {
	Init(config map[string]any, host Host, done DoneFunc)
}

// GoLoader is a registry of compiled-in modules addressed as go:<name>.
type GoLoader struct {
	mu      sync.RWMutex
	modules map[string]any
}

// DefaultRegistry is the process-wide Go module registry.
var DefaultRegistry = NewGoLoader()

// Register adds a module to the default registry.
func Register(name string, value any) {
	DefaultRegistry.Register(name, value)
}

// NewGoLoader returns an empty registry.
func NewGoLoader() *GoLoader {
	return &GoLoader{modules: make(map[string]any)}
}

// Register adds or replaces a module. value is an InitFunc, SyncInitFunc,
// PromiseInitFunc or Initializer; any other value loads as a module with
// no entry point.
func (g *GoLoader) Register(name string, value any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.modules[name] = value
}

// Names returns the registered module names, sorted.
func (g *GoLoader) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.modules))
	for name := range g.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load implements ModuleLoader.
func (g *GoLoader) Load(ctx context.Context, req LoadRequest) (Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(req.Main, GoScheme)

	g.mu.RLock()
	value, ok := g.modules[name]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	return &GoModule{Name: name, Value: value}, nil
}

// GoModule is a loaded Go module.
type GoModule struct {
	Name  string
	Value any
}

// Entry implements Module.
func (m *GoModule) Entry() Entry {
	switch v := m.Value.(type) {
	case InitFunc:
		return Entry{Kind: EntryDirect, Func: goEntry{arity: 3, call: func(c map[string]any, h Host, d DoneFunc) (any, error) {
			v(c, h, d)
			return nil, nil
		}}}
	case func(map[string]any, Host, DoneFunc):
		return (&GoModule{Name: m.Name, Value: InitFunc(v)}).Entry()
	case SyncInitFunc:
		return Entry{Kind: EntryDirect, Func: goEntry{arity: 2, call: func(c map[string]any, h Host, _ DoneFunc) (any, error) {
			return nil, v(c, h)
		}}}
	case func(map[string]any, Host) error:
		return (&GoModule{Name: m.Name, Value: SyncInitFunc(v)}).Entry()
	case PromiseInitFunc:
		return Entry{Kind: EntryDirect, Func: goEntry{arity: 2, call: func(c map[string]any, h Host, _ DoneFunc) (any, error) {
			return v(c, h), nil
		}}}
	case Initializer:
		return Entry{Kind: EntryObject, Func: goEntry{arity: 3, call: func(c map[string]any, h Host, d DoneFunc) (any, error) {
			v.Init(c, h, d)
			return nil, nil
		}}}
	default:
		return Entry{Kind: EntryNone}
	}
}

type goEntry struct {
	arity int
	call  func(config map[string]any, host Host, done DoneFunc) (any, error)
}

func (e goEntry) Arity() (int, bool) {
	return e.arity, true
}

func (e goEntry) Call(_ context.Context, config map[string]any, host Host, done DoneFunc) (any, error) {
	return e.call(config, host, done)
}
