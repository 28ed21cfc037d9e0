package coderun

import (
	"math"
	"reflect"
	"testing"

	"github.com/oarkflow/json"
)

func TestObjectInspect(t *testing.T) {
	tests := []struct {
		obj  Object
		want string
	}{
		{&Number{Value: 11}, "11"},
		{&Number{Value: 1.5}, "1.5"},
		{&Number{Value: -0.25}, "-0.25"},
		{&String{Value: "a1"}, "a1"},
		{&Boolean{Value: true}, "true"},
		{&Array{Elements: []Object{&Number{Value: 1}, &Number{Value: 2}, &Number{Value: 3}}}, "[1, 2, 3]"},
		{&Array{Elements: []Object{&String{Value: "x"}, &Boolean{Value: false}}}, `["x", false]`},
		{&Array{}, "[]"},
	}
	for _, tt := range tests {
		if got := tt.obj.Inspect(); got != tt.want {
			t.Fatalf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestObjectSetKeepsKind(t *testing.T) {
	n := &Number{Value: 1}
	if n.Set(&String{Value: "x"}) {
		t.Fatalf("number accepted a string")
	}
	if !n.Set(&Number{Value: 2}) || n.Value != 2 {
		t.Fatalf("number did not take a number: %v", n.Value)
	}
	b := &Boolean{}
	if b.Set(&Number{Value: 1}) || b.Value {
		t.Fatalf("boolean accepted a number")
	}
	arr := &Array{Elements: []Object{&Number{Value: 1}}}
	src := &Array{Elements: []Object{&Number{Value: 5}, &Number{Value: 6}}}
	if !arr.Set(src) {
		t.Fatalf("array did not take an array")
	}
	src.Elements[0].(*Number).Value = 0
	if arr.Inspect() != "[5, 6]" {
		t.Fatalf("array set aliased its source: %s", arr.Inspect())
	}
}

func TestArrayIndexBounds(t *testing.T) {
	arr := &Array{Elements: []Object{&Number{Value: 1}, &Number{Value: 2}, &Number{Value: 3}}}
	if _, err := arr.Index(3); err == nil || err.Code != ErrCodeOutOfArray {
		t.Fatalf("expected OUT_OF_ARRAY for index 3, got %v", err)
	}
	if err := arr.SetIndex(5, &Number{Value: 9}); err == nil || err.Code != ErrCodeOutOfArray {
		t.Fatalf("expected OUT_OF_ARRAY for index 5, got %v", err)
	}
	if arr.Inspect() != "[1, 2, 3]" {
		t.Fatalf("array modified by failed write: %s", arr.Inspect())
	}
	v, err := arr.Index(2)
	if err != nil || v.Inspect() != "3" {
		t.Fatalf("expected 3, got %v (%v)", v, err)
	}
}

func TestObjectFromToken(t *testing.T) {
	if v := ObjectFromToken(Token{Type: TOKEN_NUMBER, Literal: "2.5"}); v.(*Number).Value != 2.5 {
		t.Fatalf("unexpected number %v", v)
	}
	if v := ObjectFromToken(Token{Type: TOKEN_FALSE, Literal: "false"}); v.(*Boolean).Value {
		t.Fatalf("unexpected boolean %v", v)
	}
	if v := ObjectFromToken(Token{Type: TOKEN_PLUS, Literal: "+"}); v != nil {
		t.Fatalf("operator converted to %v", v)
	}
}

func TestToObjectAndBack(t *testing.T) {
	obj, err := ToObject([]int{1, 2, 3})
	if err != nil {
		t.Fatalf("ToObject failed: %v", err)
	}
	if obj.Inspect() != "[1, 2, 3]" {
		t.Fatalf("unexpected array %s", obj.Inspect())
	}
	if got := ToNative(obj); !reflect.DeepEqual(got, []any{1.0, 2.0, 3.0}) {
		t.Fatalf("unexpected native value %#v", got)
	}

	for _, v := range []any{int64(4), uint8(4), float32(4)} {
		obj, err := ToObject(v)
		if err != nil || obj.(*Number).Value != 4 {
			t.Fatalf("ToObject(%T) = %v, %v", v, obj, err)
		}
	}
	if obj, err := ToObject([]any{"a", true}); err != nil || obj.Inspect() != `["a", true]` {
		t.Fatalf("unexpected mixed array %v (%v)", obj, err)
	}
	if _, err := ToObject(map[string]int{"a": 1}); err == nil {
		t.Fatalf("expected error for map")
	}
	if _, err := ToObject(nil); err == nil {
		t.Fatalf("expected error for nil")
	}
}

func TestObjectMarshalJSON(t *testing.T) {
	values := map[string]Object{
		"arr": &Array{Elements: []Object{&Number{Value: 1}, &String{Value: "a"}}},
		"ok":  &Boolean{Value: true},
	}
	data, err := json.Marshal(values)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["ok"] != true {
		t.Fatalf("unexpected ok %v", decoded["ok"])
	}
	arr, ok := decoded["arr"].([]any)
	if !ok || len(arr) != 2 || arr[1] != "a" {
		t.Fatalf("unexpected arr %#v", decoded["arr"])
	}
}

func TestNumberMarshalJSONNonFinite(t *testing.T) {
	tests := []struct {
		obj  Object
		want string
	}{
		{&Number{Value: math.Inf(1)}, `"Infinity"`},
		{&Number{Value: math.Inf(-1)}, `"-Infinity"`},
		{&Number{Value: math.NaN()}, `"NaN"`},
		{&Number{Value: 2.5}, `2.5`},
		{&Array{Elements: []Object{&Number{Value: math.Inf(1)}, &Number{Value: 1}}}, `["Infinity",1]`},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.obj)
		if err != nil {
			t.Fatalf("marshal %s failed: %v", tt.obj.Inspect(), err)
		}
		if string(data) != tt.want {
			t.Fatalf("expected %s, got %s", tt.want, data)
		}
	}
}
