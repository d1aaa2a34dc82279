package lua

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Bridge converts plugin configuration, host call arguments and
// completion values between Go and Lua. A Bridge is bound to one LState
// and shares its goroutine restrictions.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a Bridge for L.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// ToGoValue converts a Lua value to Go. Integral numbers become int64,
// tables with keys 1..n become []any and other tables map[string]any.
// Functions, and tables already being converted, become nil.
func (b *Bridge) ToGoValue(lv lua.LValue) any {
	return b.toGo(lv, make(map[*lua.LTable]bool))
}

func (b *Bridge) toGo(lv lua.LValue, open map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return number(v)
	case lua.LString:
		return string(v)
	case *lua.LUserData:
		return v.Value
	case *lua.LTable:
		if open[v] {
			return nil
		}
		open[v] = true
		defer delete(open, v)

		if n := sequenceLen(v); n > 0 {
			out := make([]any, n)
			for i := range out {
				out[i] = b.toGo(v.RawGetInt(i+1), open)
			}
			return out
		}
		out := make(map[string]any)
		v.ForEach(func(k, val lua.LValue) {
			out[tableKey(k)] = b.toGo(val, open)
		})
		return out
	}
	return nil
}

func number(n lua.LNumber) any {
	f := float64(n)
	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return int64(f)
	}
	return f
}

// sequenceLen returns n when the keys of t are exactly 1..n, else 0.
func sequenceLen(t *lua.LTable) int {
	n, count, seq := 0, 0, true
	t.ForEach(func(k, _ lua.LValue) {
		count++
		i, ok := k.(lua.LNumber)
		if !ok || float64(i) != math.Trunc(float64(i)) || i < 1 {
			seq = false
			return
		}
		n = max(n, int(i))
	})
	if !seq || n != count {
		return 0
	}
	return n
}

func tableKey(k lua.LValue) string {
	if n, ok := k.(lua.LNumber); ok {
		return strconv.FormatFloat(float64(n), 'f', -1, 64)
	}
	return k.String()
}

// ToLuaValue converts a Go value to Lua. Maps and slices become tables,
// structs become tables keyed by json name, errors become their message
// and anything else unknown is wrapped as userdata.
func (b *Bridge) ToLuaValue(v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return x
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case []byte:
		return lua.LString(x)
	case error:
		return lua.LString(x.Error())
	case lua.LGFunction:
		return b.L.NewFunction(x)
	case func(*lua.LState) int:
		return b.L.NewFunction(x)
	case map[string]any:
		t := b.L.CreateTable(0, len(x))
		for k, e := range x {
			t.RawSetString(k, b.ToLuaValue(e))
		}
		return t
	case []any:
		t := b.L.CreateTable(len(x), 0)
		for i, e := range x {
			t.RawSetInt(i+1, b.ToLuaValue(e))
		}
		return t
	}
	return b.reflectValue(reflect.ValueOf(v))
}

func (b *Bridge) reflectValue(rv reflect.Value) lua.LValue {
	switch rv.Kind() {
	case reflect.Invalid:
		return lua.LNil
	case reflect.Bool:
		return lua.LBool(rv.Bool())
	case reflect.String:
		return lua.LString(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return lua.LNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return lua.LNil
		}
		return b.ToLuaValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		t := b.L.CreateTable(rv.Len(), 0)
		for i := 0; i < rv.Len(); i++ {
			t.RawSetInt(i+1, b.ToLuaValue(rv.Index(i).Interface()))
		}
		return t
	case reflect.Map:
		t := b.L.CreateTable(0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			t.RawSet(b.ToLuaValue(iter.Key().Interface()), b.ToLuaValue(iter.Value().Interface()))
		}
		return t
	case reflect.Struct:
		t := b.L.NewTable()
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = field.Name
			}
			t.RawSetString(name, b.ToLuaValue(rv.Field(i).Interface()))
		}
		return t
	}
	ud := b.L.NewUserData()
	ud.Value = rv.Interface()
	return ud
}

// SetTableField converts value and stores it in t under key.
func (b *Bridge) SetTableField(t *lua.LTable, key string, value any) {
	t.RawSetString(key, b.ToLuaValue(value))
}

// Method wraps fn as a Lua function receiving its arguments as Go values.
// When self is non-nil and the first argument is self it is dropped, so
// both t.f(x) and t:f(x) work. A returned error is raised in Lua; a
// non-nil result is returned to Lua.
func (b *Bridge) Method(self *lua.LTable, fn func(args []any) (any, error)) lua.LGFunction {
	return func(L *lua.LState) int {
		from := 1
		if self != nil && L.GetTop() > 0 && L.Get(1) == self {
			from = 2
		}
		result, err := fn(b.ArgsToGo(L, from))
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		if result == nil {
			return 0
		}
		L.Push(b.ToLuaValue(result))
		return 1
	}
}

// ArgsToGo converts the arguments of the current Go function call, starting
// at position from, to Go values.
func (b *Bridge) ArgsToGo(L *lua.LState, from int) []any {
	top := L.GetTop()
	if top < from {
		return nil
	}
	args := make([]any, 0, top-from+1)
	for i := from; i <= top; i++ {
		args = append(args, b.ToGoValue(L.Get(i)))
	}
	return args
}
