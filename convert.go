package coderun

import (
	"fmt"
	"reflect"

	"github.com/oarkflow/convert"
)

// ToObject converts a host value into a script value. Numbers of any Go
// width become Number, slices and arrays become Array. An Object is
// returned as a copy.
func ToObject(v any) (Object, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("cannot convert nil to a script value")
	case Object:
		return val.Clone(), nil
	case string:
		return &String{Value: val}, nil
	case bool:
		return &Boolean{Value: val}, nil
	case []any:
		return toArray(len(val), func(i int) any { return val[i] })
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		f, ok := convert.ToFloat64(v)
		if !ok {
			return nil, fmt.Errorf("cannot convert %T to number", v)
		}
		return &Number{Value: f}, nil
	case reflect.String:
		s, _ := convert.ToString(v)
		return &String{Value: s}, nil
	case reflect.Bool:
		b, _ := convert.ToBool(v)
		return &Boolean{Value: b}, nil
	case reflect.Slice, reflect.Array:
		return toArray(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	}
	if f, ok := convert.ToFloat64(v); ok {
		return &Number{Value: f}, nil
	}
	return nil, fmt.Errorf("cannot convert %T to a script value", v)
}

func toArray(n int, at func(int) any) (Object, error) {
	elements := make([]Object, n)
	for i := 0; i < n; i++ {
		el, err := ToObject(at(i))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		elements[i] = el
	}
	return &Array{Elements: elements}, nil
}

// ToNative converts a script value back to plain Go values: float64,
// string, bool and []any.
func ToNative(obj Object) any {
	switch o := obj.(type) {
	case *Number:
		return o.Value
	case *String:
		return o.Value
	case *Boolean:
		return o.Value
	case *Array:
		out := make([]any, len(o.Elements))
		for i, el := range o.Elements {
			out[i] = ToNative(el)
		}
		return out
	}
	return nil
}
