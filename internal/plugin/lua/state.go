package lua

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// ModuleName is the name under which the Folio Lua module is preloaded.
const ModuleName = "folio"

// DefaultTickLimit bounds how many deferred callbacks a single drain runs.
const DefaultTickLimit = 100_000

// tick is a deferred Lua call.
type tick struct {
	fn   *lua.LFunction
	args []lua.LValue
}

// State wraps gopher-lua with a tick queue and the folio module.
//
// gopher-lua's LState is not goroutine-safe. The mutex serializes access
// from Go code; Go functions invoked from Lua run with the mutex held and
// must use the Bridge directly rather than the State's locking methods.
type State struct {
	L *lua.LState

	mu sync.Mutex

	packageDir string
	tickLimit  int
	ticks      []tick
	bridge     *Bridge

	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithPackagePath prepends dir to package.path so require resolves
// modules next to the entry file.
func WithPackagePath(dir string) StateOption {
	return func(s *State) {
		s.packageDir = dir
	}
}

// WithTickLimit sets the maximum number of deferred callbacks a single
// drain runs before giving up.
func WithTickLimit(limit int) StateOption {
	return func(s *State) {
		s.tickLimit = limit
	}
}

// NewState creates a new Lua state with the standard libraries opened and
// the folio module preloaded.
func NewState(opts ...StateOption) (*State, error) {
	state := &State{
		tickLimit: DefaultTickLimit,
	}

	for _, opt := range opts {
		opt(state)
	}

	state.L = lua.NewState()
	state.bridge = NewBridge(state.L)

	if state.packageDir != "" {
		if err := state.setPackagePath(state.packageDir); err != nil {
			state.L.Close()
			return nil, err
		}
	}

	mod, err := state.newFolioModule()
	if err != nil {
		state.L.Close()
		return nil, err
	}
	state.L.PreloadModule(ModuleName, func(L *lua.LState) int {
		L.Push(mod)
		return 1
	})
	state.L.SetGlobal(ModuleName, mod)

	return state, nil
}

func (s *State) setPackagePath(dir string) error {
	pkg, ok := s.L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return fmt.Errorf("lua package library not loaded")
	}
	current := lua.LVAsString(pkg.RawGetString("path"))
	paths := []string{
		filepath.Join(dir, "?.lua"),
		filepath.Join(dir, "?", "init.lua"),
	}
	if current != "" {
		paths = append(paths, current)
	}
	pkg.RawSetString("path", lua.LString(strings.Join(paths, ";")))
	return nil
}

// DoFile executes a Lua file and returns the chunk's return values.
// The tick queue is drained before returning. Cancelling ctx aborts the
// running chunk.
func (s *State) DoFile(ctx context.Context, path string) ([]lua.LValue, error) {
	return s.run(ctx, func() (*lua.LFunction, error) {
		return s.L.LoadFile(path)
	})
}

// CallValue calls a Lua function value with the given arguments.
// Returns an empty slice (not nil) if the function returns no values.
// The tick queue is drained before returning; an error raised by a
// deferred callback is returned when the call itself succeeded.
// Cancelling ctx aborts the call and any queued ticks.
func (s *State) CallValue(ctx context.Context, fnVal lua.LValue, args ...lua.LValue) ([]lua.LValue, error) {
	return s.run(ctx, func() (*lua.LFunction, error) {
		fn, ok := fnVal.(*lua.LFunction)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotCallable, fnVal.Type())
		}
		return fn, nil
	}, args...)
}

// run resolves a function under the lock and calls it.
func (s *State) run(ctx context.Context, resolve func() (*lua.LFunction, error), args ...lua.LValue) ([]lua.LValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	fn, err := resolve()
	if err != nil {
		return nil, err
	}
	return s.callLocked(ctx, fn, args...)
}

// callLocked runs fn then drains the tick queue with ctx installed on the
// LState. Caller holds s.mu.
func (s *State) callLocked(ctx context.Context, fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	if ctx.Done() != nil {
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()
	}

	results, err := s.pcall(fn, args...)
	if drainErr := s.drainLocked(); err == nil {
		err = drainErr
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

// pcall invokes fn under PCall with panic recovery.
func (s *State) pcall(fn *lua.LFunction, args ...lua.LValue) (results []lua.LValue, err error) {
	// Record stack top before pushing anything
	stackTop := s.L.GetTop()

	defer func() {
		if r := recover(); r != nil {
			s.L.SetTop(stackTop)
			results = nil
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	s.L.Push(fn)
	for _, arg := range args {
		s.L.Push(arg)
	}

	if err := s.L.PCall(len(args), lua.MultRet, nil); err != nil {
		return nil, err
	}

	// Collect return values (only the new values added after the call)
	nRet := s.L.GetTop() - stackTop
	if nRet <= 0 {
		return []lua.LValue{}, nil
	}
	results = make([]lua.LValue, nRet)
	for i := 0; i < nRet; i++ {
		results[i] = s.L.Get(stackTop + i + 1)
	}
	s.L.Pop(nRet)

	return results, nil
}

func (s *State) enqueue(fn *lua.LFunction, args []lua.LValue) {
	s.ticks = append(s.ticks, tick{fn: fn, args: args})
}

// drainLocked runs queued ticks in FIFO order, including ticks queued by
// the callbacks themselves. The first error is returned after the queue is
// empty.
func (s *State) drainLocked() error {
	var firstErr error
	for n := 0; len(s.ticks) > 0; n++ {
		if n >= s.tickLimit {
			s.ticks = nil
			if firstErr == nil {
				firstErr = ErrTickLimit
			}
			break
		}
		t := s.ticks[0]
		s.ticks = s.ticks[1:]
		if _, err := s.pcall(t.fn, t.args...); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewFunction wraps a Go function as a Lua function value.
func (s *State) NewFunction(fn lua.LGFunction) *lua.LFunction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.L.NewFunction(fn)
}

// NewTable creates an empty Lua table.
func (s *State) NewTable() *lua.LTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.L.NewTable()
}

// ToLuaValue converts a Go value using the state's bridge.
func (s *State) ToLuaValue(v any) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge.ToLuaValue(v)
}

// Bridge returns the value bridge bound to this state.
func (s *State) Bridge() *Bridge {
	return s.bridge
}

// Close releases all resources associated with the Lua state.
// After Close is called, all other methods will return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.L.Close()
	s.ticks = nil
	s.closed = true
	return nil
}
