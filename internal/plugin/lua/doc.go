// Package lua provides the Lua runtime for plugin entry modules.
//
// This package wraps the gopher-lua library to provide:
//   - Lua state management with the full standard library
//   - Go-Lua type conversion bridge
//   - A per-state tick queue drained after every call into Lua
//   - The "folio" Lua module (defer, promise)
//
// Plugins are not sandboxed: entry modules run with the host's privileges.
//
// # State
//
//	state, err := lua.NewState(lua.WithPackagePath(pluginDir))
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	results, err := state.DoFile(ctx, filepath.Join(pluginDir, "index.lua"))
//
// DoFile returns the chunk's return values; the first is the module value.
// When ctx is done the running chunk is aborted with an error.
//
// # Ticks
//
// Lua code schedules work for the next tick with folio.defer:
//
//	local folio = require("folio")
//	return function(config, host, done)
//	    folio.defer(done)
//	end
//
// Every DoFile and CallValue drains the queue before returning,
// so deferred callbacks run after the current call completes but before
// control returns to Go.
//
// # Promises
//
// folio.promise(executor) returns a minimal thenable. The executor receives
// resolve and reject functions; handlers registered with p["then"] run on a
// later tick:
//
//	return function(config, host)
//	    return folio.promise(function(resolve, reject)
//	        folio.defer(resolve)
//	    end)
//	end
//
// # Bridge
//
// The Bridge provides bidirectional type conversion:
//
//	bridge := state.Bridge()
//	luaVal := bridge.ToLuaValue(map[string]any{"perPage": 20})
//	goVal := bridge.ToGoValue(luaVal)
//
// Method exposes a Go function to Lua with its arguments already converted:
//
//	t := state.NewTable()
//	t.RawSetString("log", state.NewFunction(bridge.Method(t, func(args []any) (any, error) {
//	    return nil, nil
//	})))
package lua
