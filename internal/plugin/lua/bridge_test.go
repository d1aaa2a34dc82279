package lua

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

func TestNewBridge(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	bridge := NewBridge(L)
	if bridge == nil {
		t.Error("NewBridge() returned nil")
	}
	if bridge.L != L {
		t.Error("NewBridge() has wrong LState")
	}
}

func TestBridgeToGoValue(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	tests := []struct {
		name     string
		input    glua.LValue
		expected any
	}{
		{"nil", glua.LNil, nil},
		{"true", glua.LTrue, true},
		{"false", glua.LFalse, false},
		{"integer", glua.LNumber(42), int64(42)},
		{"float", glua.LNumber(3.14), 3.14},
		{"string", glua.LString("hello"), "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := bridge.ToGoValue(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("ToGoValue(%v) = %v (%T), want %v (%T)",
					tt.input, result, result, tt.expected, tt.expected)
			}
		})
	}
}

func TestBridgeToGoValueTable(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	// Test array table
	t.Run("array", func(t *testing.T) {
		tbl := L.NewTable()
		tbl.RawSetInt(1, glua.LString("a"))
		tbl.RawSetInt(2, glua.LString("b"))
		tbl.RawSetInt(3, glua.LString("c"))

		result := bridge.ToGoValue(tbl)
		arr, ok := result.([]any)
		if !ok {
			t.Fatalf("Expected []any, got %T", result)
		}
		if len(arr) != 3 {
			t.Errorf("Array length = %d, want 3", len(arr))
		}
		if arr[0] != "a" || arr[1] != "b" || arr[2] != "c" {
			t.Errorf("Array = %v, want [a b c]", arr)
		}
	})

	// Test map table
	t.Run("map", func(t *testing.T) {
		tbl := L.NewTable()
		tbl.RawSetString("name", glua.LString("test"))
		tbl.RawSetString("count", glua.LNumber(42))

		result := bridge.ToGoValue(tbl)
		m, ok := result.(map[string]any)
		if !ok {
			t.Fatalf("Expected map[string]any, got %T", result)
		}
		if m["name"] != "test" {
			t.Errorf("map[name] = %v, want 'test'", m["name"])
		}
		if m["count"] != int64(42) {
			t.Errorf("map[count] = %v, want 42", m["count"])
		}
	})
}

func TestBridgeToLuaValue(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	tests := []struct {
		name  string
		input any
		check func(glua.LValue) bool
	}{
		{"nil", nil, func(v glua.LValue) bool { return v == glua.LNil }},
		{"true", true, func(v glua.LValue) bool { return v == glua.LTrue }},
		{"false", false, func(v glua.LValue) bool { return v == glua.LFalse }},
		{"int", 42, func(v glua.LValue) bool {
			n, ok := v.(glua.LNumber)
			return ok && float64(n) == 42
		}},
		{"int64", int64(42), func(v glua.LValue) bool {
			n, ok := v.(glua.LNumber)
			return ok && float64(n) == 42
		}},
		{"float64", 3.14, func(v glua.LValue) bool {
			n, ok := v.(glua.LNumber)
			return ok && float64(n) == 3.14
		}},
		{"string", "hello", func(v glua.LValue) bool {
			s, ok := v.(glua.LString)
			return ok && string(s) == "hello"
		}},
		{"bytes", []byte("world"), func(v glua.LValue) bool {
			s, ok := v.(glua.LString)
			return ok && string(s) == "world"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := bridge.ToLuaValue(tt.input)
			if !tt.check(result) {
				t.Errorf("ToLuaValue(%v) = %v (%T), check failed",
					tt.input, result, result)
			}
		})
	}
}

func TestBridgeToLuaValueSlice(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	// Test []any
	t.Run("interface slice", func(t *testing.T) {
		input := []any{"a", 1, true}
		result := bridge.ToLuaValue(input)

		tbl, ok := result.(*glua.LTable)
		if !ok {
			t.Fatalf("Expected *LTable, got %T", result)
		}

		if tbl.RawGetInt(1).(glua.LString) != "a" {
			t.Error("tbl[1] != 'a'")
		}
	})

	// Test []string
	t.Run("string slice", func(t *testing.T) {
		input := []string{"x", "y", "z"}
		result := bridge.ToLuaValue(input)

		tbl, ok := result.(*glua.LTable)
		if !ok {
			t.Fatalf("Expected *LTable, got %T", result)
		}

		if tbl.RawGetInt(1).(glua.LString) != "x" {
			t.Error("tbl[1] != 'x'")
		}
	})

	// Test []int
	t.Run("int slice", func(t *testing.T) {
		input := []int{1, 2, 3}
		result := bridge.ToLuaValue(input)

		tbl, ok := result.(*glua.LTable)
		if !ok {
			t.Fatalf("Expected *LTable, got %T", result)
		}

		if float64(tbl.RawGetInt(1).(glua.LNumber)) != 1 {
			t.Error("tbl[1] != 1")
		}
	})
}

func TestBridgeToLuaValueMap(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	// Test map[string]any
	t.Run("interface map", func(t *testing.T) {
		input := map[string]any{
			"name":  "test",
			"count": 42,
		}
		result := bridge.ToLuaValue(input)

		tbl, ok := result.(*glua.LTable)
		if !ok {
			t.Fatalf("Expected *LTable, got %T", result)
		}

		if string(tbl.RawGetString("name").(glua.LString)) != "test" {
			t.Error("tbl.name != 'test'")
		}
	})

	// Test map[string]string
	t.Run("string map", func(t *testing.T) {
		input := map[string]string{
			"key": "value",
		}
		result := bridge.ToLuaValue(input)

		tbl, ok := result.(*glua.LTable)
		if !ok {
			t.Fatalf("Expected *LTable, got %T", result)
		}

		if string(tbl.RawGetString("key").(glua.LString)) != "value" {
			t.Error("tbl.key != 'value'")
		}
	})
}

func TestBridgeToLuaValueStruct(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	type TestStruct struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	input := TestStruct{Name: "hello", Count: 42}
	result := bridge.ToLuaValue(input)

	tbl, ok := result.(*glua.LTable)
	if !ok {
		t.Fatalf("Expected *LTable, got %T", result)
	}

	nameVal := tbl.RawGetString("name")
	if string(nameVal.(glua.LString)) != "hello" {
		t.Errorf("tbl.name = %v, want 'hello'", nameVal)
	}

	countVal := tbl.RawGetString("count")
	if float64(countVal.(glua.LNumber)) != 42 {
		t.Errorf("tbl.count = %v, want 42", countVal)
	}
}

func TestBridgeSetTableField(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	tbl := L.NewTable()
	bridge.SetTableField(tbl, "key", "value")
	bridge.SetTableField(tbl, "list", []string{"a", "b"})

	result := tbl.RawGetString("key")
	if string(result.(glua.LString)) != "value" {
		t.Errorf("SetTableField() set wrong value: %v", result)
	}
	if list, ok := tbl.RawGetString("list").(*glua.LTable); !ok || list.Len() != 2 {
		t.Errorf("SetTableField(list) = %v, want 2-element table", tbl.RawGetString("list"))
	}
}

func TestBridgeRoundTrip(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	// Test that converting Go -> Lua -> Go preserves values
	original := map[string]any{
		"name":    "test",
		"count":   42,
		"enabled": true,
		"items":   []any{"a", "b", "c"},
	}

	luaVal := bridge.ToLuaValue(original)
	goVal := bridge.ToGoValue(luaVal)

	converted, ok := goVal.(map[string]any)
	if !ok {
		t.Fatalf("Round trip failed: got %T", goVal)
	}

	if converted["name"] != "test" {
		t.Errorf("name = %v, want 'test'", converted["name"])
	}
	// Numbers come back as int64 for integers
	if converted["count"] != int64(42) {
		t.Errorf("count = %v (%T), want 42", converted["count"], converted["count"])
	}
	if converted["enabled"] != true {
		t.Errorf("enabled = %v, want true", converted["enabled"])
	}
}

func TestBridgeToLuaValueError(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	result := bridge.ToLuaValue(errors.New("boom"))
	if s, ok := result.(glua.LString); !ok || string(s) != "boom" {
		t.Errorf("ToLuaValue(error) = %v (%T), want 'boom'", result, result)
	}
}

func TestBridgeToLuaValueGoFunction(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	called := false
	fn := bridge.ToLuaValue(glua.LGFunction(func(L *glua.LState) int {
		called = true
		return 0
	}))
	L.SetGlobal("hook", fn)
	if err := L.DoString(`hook()`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if !called {
		t.Error("wrapped Go function was not called")
	}
}

func TestBridgeArgsToGo(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	var got []any
	L.SetGlobal("capture", L.NewFunction(func(L *glua.LState) int {
		got = bridge.ArgsToGo(L, 2)
		return 0
	}))
	if err := L.DoString(`capture("skip", "a", 2, {x = true})`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("ArgsToGo returned %d values, want 3", len(got))
	}
	if got[0] != "a" || got[1] != int64(2) {
		t.Errorf("ArgsToGo = %v", got)
	}
	if m, ok := got[2].(map[string]any); !ok || m["x"] != true {
		t.Errorf("ArgsToGo[2] = %v, want map with x=true", got[2])
	}
}

func TestBridgeMethod(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	var calls [][]any
	obj := L.NewTable()
	obj.RawSetString("sum", L.NewFunction(bridge.Method(obj, func(args []any) (any, error) {
		calls = append(calls, args)
		var sum int64
		for _, a := range args {
			if n, ok := a.(int64); ok {
				sum += n
			}
		}
		return sum, nil
	})))
	obj.RawSetString("fail", L.NewFunction(bridge.Method(obj, func(args []any) (any, error) {
		return nil, errors.New("method failed")
	})))
	obj.RawSetString("nothing", L.NewFunction(bridge.Method(obj, func(args []any) (any, error) {
		return nil, nil
	})))
	L.SetGlobal("obj", obj)

	if err := L.DoString(`dot = obj.sum(1, 2, 3); colon = obj:sum(4, 5); none = obj.nothing()`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if v := L.GetGlobal("dot"); float64(v.(glua.LNumber)) != 6 {
		t.Errorf("obj.sum(1, 2, 3) = %v, want 6", v)
	}
	if v := L.GetGlobal("colon"); float64(v.(glua.LNumber)) != 9 {
		t.Errorf("obj:sum(4, 5) = %v, want 9", v)
	}
	if v := L.GetGlobal("none"); v != glua.LNil {
		t.Errorf("obj.nothing() = %v, want nil", v)
	}
	if len(calls) != 2 || len(calls[1]) != 2 {
		t.Errorf("colon call args = %v, want self dropped", calls)
	}

	err := L.DoString(`obj.fail()`)
	if err == nil || !strings.Contains(err.Error(), "method failed") {
		t.Errorf("obj.fail() error = %v, want method failed", err)
	}
}

func TestBridgeMethodWithoutSelf(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	var got []any
	L.SetGlobal("capture", L.NewFunction(bridge.Method(nil, func(args []any) (any, error) {
		got = args
		return nil, nil
	})))
	if err := L.DoString(`local t = {}; capture(t, "x")`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if len(got) != 2 || got[1] != "x" {
		t.Errorf("args = %v, want table and x", got)
	}
}

func TestBridgeToGoValueCycle(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	if err := L.DoString(`cyc = {name = "root"}; cyc.self = cyc`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	got, ok := bridge.ToGoValue(L.GetGlobal("cyc")).(map[string]any)
	if !ok {
		t.Fatalf("ToGoValue(cyc) = %T, want map", got)
	}
	if got["name"] != "root" || got["self"] != nil {
		t.Errorf("ToGoValue(cyc) = %v, want self cut to nil", got)
	}
}

func TestBridgeToGoValueSharedTable(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	if err := L.DoString(`local shared = {1, 2}; pair = {a = shared, b = shared}`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	got := bridge.ToGoValue(L.GetGlobal("pair")).(map[string]any)
	want := []any{int64(1), int64(2)}
	if !reflect.DeepEqual(got["a"], want) || !reflect.DeepEqual(got["b"], want) {
		t.Errorf("ToGoValue(pair) = %v, want both keys converted", got)
	}
}

func TestBridgeToLuaValueNamedTypes(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	type level string
	type count uint16

	if v := bridge.ToLuaValue(level("warn")); v != glua.LString("warn") {
		t.Errorf("ToLuaValue(level) = %v (%T), want warn", v, v)
	}
	if v := bridge.ToLuaValue(count(7)); v != glua.LNumber(7) {
		t.Errorf("ToLuaValue(count) = %v (%T), want 7", v, v)
	}
	var nilPtr *int
	if v := bridge.ToLuaValue(nilPtr); v != glua.LNil {
		t.Errorf("ToLuaValue(nil pointer) = %v, want nil", v)
	}
	ch := make(chan int)
	if ud, ok := bridge.ToLuaValue(ch).(*glua.LUserData); !ok || ud.Value != any(ch) {
		t.Errorf("ToLuaValue(chan) = %T, want userdata", ud)
	}
}
