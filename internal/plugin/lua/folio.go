package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// promisePrelude extends the folio module with a minimal thenable.
// Handlers run on a later tick; then does not chain.
const promisePrelude = `
local folio = ...

function folio.promise(executor)
  local p = { status = "pending" }
  local waiters = {}

  local function settle(status, value)
    if p.status ~= "pending" then return end
    p.status, p.value = status, value
    for _, w in ipairs(waiters) do
      if status == "fulfilled" then
        folio.defer(w[1], value)
      else
        folio.defer(w[2], value)
      end
    end
    waiters = {}
  end

  p["then"] = function(self, onFulfilled, onRejected)
    local ok = onFulfilled or function() end
    local fail = onRejected or function() end
    if p.status == "pending" then
      waiters[#waiters + 1] = { ok, fail }
    elseif p.status == "fulfilled" then
      folio.defer(ok, p.value)
    else
      folio.defer(fail, p.value)
    end
  end

  local ran, err = pcall(executor,
    function(v) settle("fulfilled", v) end,
    function(e) settle("rejected", e) end)
  if not ran then settle("rejected", err) end
  return p
end

function folio.resolved(value)
  return folio.promise(function(resolve) resolve(value) end)
end

function folio.rejected(reason)
  return folio.promise(function(_, reject) reject(reason) end)
end
`

// newFolioModule builds the folio module table.
func (s *State) newFolioModule() (*lua.LTable, error) {
	L := s.L
	mod := L.NewTable()
	mod.RawSetString("defer", L.NewFunction(s.luaDefer))
	mod.RawSetString("pending", L.NewFunction(s.luaPending))

	prelude, err := L.LoadString(promisePrelude)
	if err != nil {
		return nil, fmt.Errorf("loading folio prelude: %w", err)
	}
	L.Push(prelude)
	L.Push(mod)
	if err := L.PCall(1, 0, nil); err != nil {
		return nil, fmt.Errorf("running folio prelude: %w", err)
	}
	return mod, nil
}

// luaDefer implements folio.defer(fn, ...).
func (s *State) luaDefer(L *lua.LState) int {
	fn := L.CheckFunction(1)
	var args []lua.LValue
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, L.Get(i))
	}
	s.enqueue(fn, args)
	return 0
}

// luaPending implements folio.pending().
func (s *State) luaPending(L *lua.LState) int {
	L.Push(lua.LNumber(len(s.ticks)))
	return 1
}

// IsThenable reports whether v is a table with a callable then field.
func IsThenable(v lua.LValue) bool {
	t, ok := v.(*lua.LTable)
	if !ok {
		return false
	}
	_, ok = t.RawGetString("then").(*lua.LFunction)
	return ok
}

// Arity returns the count of named parameters of a Lua function; a
// trailing ... is not counted. ok is false for Go functions.
func Arity(fn *lua.LFunction) (n int, ok bool) {
	if fn == nil || fn.IsG || fn.Proto == nil {
		return 0, false
	}
	return int(fn.Proto.NumParameters), true
}
