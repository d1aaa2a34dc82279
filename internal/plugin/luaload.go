package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"
	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/folio/internal/plugin/lua"
)

// LuaLoader loads Lua entry modules, one Lua state per module.
type LuaLoader struct {
	opts []plua.StateOption
}

// NewLuaLoader returns a loader applying opts to every new state.
func NewLuaLoader(opts ...plua.StateOption) *LuaLoader {
	return &LuaLoader{opts: opts}
}

// Load runs the entry file; the chunk's first return value is the module.
func (l *LuaLoader) Load(ctx context.Context, req LoadRequest) (Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := append([]plua.StateOption{plua.WithPackagePath(filepath.Dir(req.Main))}, l.opts...)
	state, err := plua.NewState(opts...)
	if err != nil {
		return nil, err
	}

	results, err := state.DoFile(ctx, req.Main)
	if err != nil {
		state.Close()
		return nil, luaCause(err)
	}

	var value lua.LValue = lua.LNil
	if len(results) > 0 {
		value = results[0]
	}
	return &LuaModule{state: state, value: value, plugin: req.Plugin}, nil
}

// LuaModule is a loaded Lua entry module.
type LuaModule struct {
	state  *plua.State
	value  lua.LValue
	plugin string
}

// Value returns the module value converted to Go.
func (m *LuaModule) Value() any {
	if fn, ok := m.value.(*lua.LFunction); ok {
		return fmt.Sprintf("function: %p", fn)
	}
	return m.state.Bridge().ToGoValue(m.value)
}

// State returns the module's Lua state.
func (m *LuaModule) State() *plua.State {
	return m.state
}

// Close releases the module's Lua state.
func (m *LuaModule) Close() error {
	return m.state.Close()
}

// Entry implements Module.
func (m *LuaModule) Entry() Entry {
	switch v := m.value.(type) {
	case *lua.LFunction:
		return Entry{Kind: EntryDirect, Func: &luaEntry{module: m, fn: v}}
	case *lua.LTable:
		if fn, ok := v.RawGetString("init").(*lua.LFunction); ok {
			return Entry{Kind: EntryObject, Func: &luaEntry{module: m, fn: fn}}
		}
	}
	return Entry{Kind: EntryNone}
}

type luaEntry struct {
	module *LuaModule
	fn     *lua.LFunction
}

func (e *luaEntry) Arity() (int, bool) {
	return plua.Arity(e.fn)
}

func (e *luaEntry) Call(ctx context.Context, config map[string]any, host Host, done DoneFunc) (any, error) {
	state := e.module.state
	bridge := state.Bridge()

	doneFn := state.NewFunction(bridge.Method(nil, func(args []any) (any, error) {
		if v := firstArg(args); v != nil && v != false {
			done(v)
			return nil, nil
		}
		done(nil)
		return nil, nil
	}))

	results, err := state.CallValue(ctx, e.fn,
		state.ToLuaValue(config),
		newLuaHost(state, e.module.plugin, host),
		doneFn,
	)
	if err != nil {
		return nil, luaCause(err)
	}
	if len(results) > 0 && plua.IsThenable(results[0]) {
		return &luaThenable{ctx: ctx, state: state, value: results[0].(*lua.LTable)}, nil
	}
	return nil, nil
}

// luaThenable adapts a Lua table with a then method to Thenable.
type luaThenable struct {
	ctx   context.Context
	state *plua.State
	value *lua.LTable
}

func (t *luaThenable) Then(onResolve func(any), onReject func(any)) {
	bridge := t.state.Bridge()
	resolve := t.state.NewFunction(bridge.Method(nil, func(args []any) (any, error) {
		onResolve(firstArg(args))
		return nil, nil
	}))
	reject := t.state.NewFunction(bridge.Method(nil, func(args []any) (any, error) {
		onReject(firstArg(args))
		return nil, nil
	}))
	if _, err := t.state.CallValue(t.ctx, t.value.RawGetString("then"), t.value, resolve, reject); err != nil {
		onReject(luaCause(err))
	}
}

// newLuaHost builds the host table passed to Lua init functions:
// {name, log(msg, level), emit(event, ...), config()}. Both dot and colon
// calls work.
func newLuaHost(state *plua.State, name string, host Host) *lua.LTable {
	tbl := state.NewTable()
	bridge := state.Bridge()
	method := func(key string, fn func(args []any) (any, error)) {
		bridge.SetTableField(tbl, key, state.NewFunction(bridge.Method(tbl, fn)))
	}

	bridge.SetTableField(tbl, "name", name)
	method("log", func(args []any) (any, error) {
		level := LevelInfo
		if len(args) > 1 {
			if lv, ok := args[1].(string); ok {
				level = LogLevel(lv)
			}
		}
		host.Log(level, luaString(firstArg(args)))
		return nil, nil
	})
	method("emit", func(args []any) (any, error) {
		event, ok := firstArg(args).(string)
		if !ok || event == "" {
			return nil, errors.New("emit: event name must be a non-empty string")
		}
		var rest []any
		if len(args) > 1 {
			rest = args[1:]
		}
		host.Emit(event, rest...)
		return nil, nil
	})
	// Runs inside a Lua call, so the bridge converts the result without
	// taking the state lock.
	method("config", func([]any) (any, error) {
		return host.PluginConfig(name), nil
	})
	return tbl
}

func firstArg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

// luaString renders a converted Lua value the way tostring would for
// scalars.
func luaString(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// LuaError is an error raised in Lua.
type LuaError struct {
	// Message is the raised value as a string.
	Message string
	// Traceback is the Lua stack traceback, if any.
	Traceback string
	// Value is the raised value converted to Go.
	Value any
}

func (e *LuaError) Error() string {
	return e.Message
}

// Format implements fmt.Formatter. %+v appends the Lua traceback.
func (e *LuaError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		io.WriteString(s, e.Message)
		if s.Flag('+') && e.Traceback != "" {
			io.WriteString(s, "\n"+e.Traceback)
		}
	case 's':
		io.WriteString(s, e.Message)
	case 'q':
		fmt.Fprintf(s, "%q", e.Message)
	}
}

// luaCause converts an error from the Lua runtime into a stack-carrying
// error, unwrapping the raised Lua value.
func luaCause(err error) error {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		le := &LuaError{
			Message:   apiErr.Object.String(),
			Traceback: apiErr.StackTrace,
		}
		switch obj := apiErr.Object.(type) {
		case lua.LString:
			le.Value = string(obj)
		case *lua.LTable:
			if msg, ok := obj.RawGetString("message").(lua.LString); ok {
				le.Message = string(msg)
			}
		}
		return pkgerrors.WithStack(le)
	}
	return pkgerrors.WithStack(err)
}
