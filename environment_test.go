package coderun

import (
	"errors"
	"reflect"
	"testing"
)

func errorCode(t *testing.T, err error) ErrorCode {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error")
	}
	var de *Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *Error, got %T", err)
	}
	return de.Code
}

func TestEnvironmentAddIsFirstWins(t *testing.T) {
	env := NewEnvironment()
	if !env.Add("x", &Number{Value: 1}) {
		t.Fatalf("first Add should succeed")
	}
	if env.Add("x", &Number{Value: 2}) {
		t.Fatalf("second Add should be rejected")
	}
	v, _ := env.Get("x")
	if v.(*Number).Value != 1 {
		t.Fatalf("expected 1, got %s", v.Inspect())
	}
	env.AddFunction("f", func(Object, Continuation) {})
	if env.Add("f", &Number{Value: 1}) {
		t.Fatalf("value must not shadow a function")
	}
	if env.AddFunction("x", func(Object, Continuation) {}) {
		t.Fatalf("function must not shadow a value")
	}
}

func TestEnvironmentSet(t *testing.T) {
	env := NewEnvironment()
	env.Add("x", &Number{Value: 1})
	env.Add("pi", &Number{Value: 3.14}, ReadOnly)

	if err := env.Set("x", &Number{Value: 5}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if code := errorCode(t, env.Set("y", &Number{Value: 1})); code != ErrCodeUnknown {
		t.Fatalf("expected UNKNOWN, got %s", code)
	}
	if code := errorCode(t, env.Set("x", &String{Value: "s"})); code != ErrCodeVariable {
		t.Fatalf("expected VARIABLE, got %s", code)
	}
	if code := errorCode(t, env.Set("pi", &Number{Value: 3})); code != ErrCodeReadOnly {
		t.Fatalf("expected READ_ONLY, got %s", code)
	}
	v, _ := env.Get("pi")
	if v.(*Number).Value != 3.14 {
		t.Fatalf("read-only value changed to %s", v.Inspect())
	}
	v, _ = env.Get("x")
	if v.(*Number).Value != 5 {
		t.Fatalf("expected 5, got %s", v.Inspect())
	}
}

func TestEnvironmentSetIndex(t *testing.T) {
	env := NewEnvironment()
	env.Add("arr", &Array{Elements: []Object{&Number{Value: 1}, &Number{Value: 2}}})
	env.Add("n", &Number{Value: 1})

	if err := env.SetIndex("arr", 1, &Number{Value: 9}); err != nil {
		t.Fatalf("SetIndex failed: %v", err)
	}
	tests := []struct {
		name  string
		index int
		value Object
		code  ErrorCode
	}{
		{"missing", 0, &Number{Value: 1}, ErrCodeUnknown},
		{"n", 0, &Number{Value: 1}, ErrCodeVariable},
		{"arr", 2, &Number{Value: 1}, ErrCodeOutOfArray},
		{"arr", -1, &Number{Value: 1}, ErrCodeOutOfArray},
		{"arr", 0, &String{Value: "s"}, ErrCodeVariable},
	}
	for _, tt := range tests {
		if code := errorCode(t, env.SetIndex(tt.name, tt.index, tt.value)); code != tt.code {
			t.Fatalf("SetIndex(%s, %d): expected %s, got %s", tt.name, tt.index, tt.code, code)
		}
	}
	v, _ := env.Get("arr")
	if v.Inspect() != "[1, 9]" {
		t.Fatalf("expected [1, 9], got %s", v.Inspect())
	}
}

func TestEnvironmentCopiesValues(t *testing.T) {
	env := NewEnvironment()
	arr := &Array{Elements: []Object{&Number{Value: 1}}}
	env.Add("arr", arr)
	arr.Elements[0].(*Number).Value = 42

	got, _ := env.Get("arr")
	if got.Inspect() != "[1]" {
		t.Fatalf("stored value aliased the argument: %s", got.Inspect())
	}
	got.(*Array).Elements[0].(*Number).Value = 7
	again, _ := env.Get("arr")
	if again.Inspect() != "[1]" {
		t.Fatalf("returned value aliased the store: %s", again.Inspect())
	}
}

func TestEnvironmentClearStore(t *testing.T) {
	env := NewEnvironment()
	env.Add("x", &Number{Value: 1})
	env.Add("limit", &Number{Value: 10}, ReadOnly)
	env.AddFunction("f", func(Object, Continuation) {})

	env.ClearStore()
	if env.Has("x") {
		t.Fatalf("read-write binding survived ClearStore")
	}
	if !env.Has("limit") || !env.HasFunction("f") {
		t.Fatalf("read-only value or function lost by ClearStore")
	}

	env.Clear()
	if env.Has("limit") {
		t.Fatalf("read-only binding survived Clear")
	}
	if !env.HasFunction("f") {
		t.Fatalf("function lost by Clear")
	}

	env.Remove("f")
	if env.HasFunction("f") {
		t.Fatalf("function survived Remove")
	}
}

func TestEnvironmentNamesAndSnapshot(t *testing.T) {
	env := NewEnvironment()
	env.Add("b", &Boolean{Value: true})
	env.Add("a", &String{Value: "s"}, ReadOnly)

	if names := env.Names(); !reflect.DeepEqual(names, []string{"a", "b"}) {
		t.Fatalf("unexpected names %v", names)
	}
	snap := env.Snapshot()
	if len(snap) != 2 || snap["a"].Inspect() != "s" || snap["b"].Inspect() != "true" {
		t.Fatalf("unexpected snapshot %v", snap)
	}
	b, ok := env.Lookup("a")
	if !ok || b.Permission != ReadOnly || !env.IsReadOnly("a") || env.IsReadOnly("b") {
		t.Fatalf("unexpected permissions for a: %+v", b)
	}
}
