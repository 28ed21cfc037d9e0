package coderun

import (
	"math"
	"strconv"
	"strings"

	"github.com/oarkflow/json"
)

type ObjectType int

const (
	NUMBER_OBJ ObjectType = iota
	STRING_OBJ
	BOOLEAN_OBJ
	ARRAY_OBJ
)

func (ot ObjectType) String() string {
	switch ot {
	case NUMBER_OBJ:
		return "number"
	case STRING_OBJ:
		return "string"
	case BOOLEAN_OBJ:
		return "boolean"
	case ARRAY_OBJ:
		return "array"
	default:
		return "unknown"
	}
}

// Object is a script value. The kind of an Object never changes: Set
// only replaces the payload of an Object of the same kind.
type Object interface {
	Type() ObjectType
	Inspect() string
	Set(Object) bool
	Clone() Object
}

type Number struct {
	Value float64
}

func (n *Number) Type() ObjectType { return NUMBER_OBJ }
func (n *Number) Inspect() string  { return strconv.FormatFloat(n.Value, 'f', -1, 64) }
func (n *Number) Clone() Object    { return &Number{Value: n.Value} }
func (n *Number) Set(o Object) bool {
	v, ok := o.(*Number)
	if ok {
		n.Value = v.Value
	}
	return ok
}

// MarshalJSON writes non-finite values as the strings "Infinity",
// "-Infinity" and "NaN", which JSON numbers cannot hold.
func (n *Number) MarshalJSON() ([]byte, error) {
	switch {
	case math.IsNaN(n.Value):
		return []byte(`"NaN"`), nil
	case math.IsInf(n.Value, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(n.Value, -1):
		return []byte(`"-Infinity"`), nil
	}
	return json.Marshal(n.Value)
}

type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return s.Value }
func (s *String) Clone() Object    { return &String{Value: s.Value} }
func (s *String) Set(o Object) bool {
	v, ok := o.(*String)
	if ok {
		s.Value = v.Value
	}
	return ok
}
func (s *String) MarshalJSON() ([]byte, error) { return json.Marshal(s.Value) }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return strconv.FormatBool(b.Value) }
func (b *Boolean) Clone() Object    { return &Boolean{Value: b.Value} }
func (b *Boolean) Set(o Object) bool {
	v, ok := o.(*Boolean)
	if ok {
		b.Value = v.Value
	}
	return ok
}
func (b *Boolean) MarshalJSON() ([]byte, error) { return json.Marshal(b.Value) }

type Array struct {
	Elements []Object
}

func (a *Array) Type() ObjectType { return ARRAY_OBJ }

func (a *Array) Inspect() string {
	var out strings.Builder
	out.WriteString("[")
	for i, el := range a.Elements {
		if i > 0 {
			out.WriteString(", ")
		}
		if s, ok := el.(*String); ok {
			out.WriteString(strconv.Quote(s.Value))
			continue
		}
		out.WriteString(el.Inspect())
	}
	out.WriteString("]")
	return out.String()
}

func (a *Array) Clone() Object {
	elements := make([]Object, len(a.Elements))
	for i, el := range a.Elements {
		elements[i] = el.Clone()
	}
	return &Array{Elements: elements}
}

// Set replaces the elements with copies of the elements of o.
func (a *Array) Set(o Object) bool {
	v, ok := o.(*Array)
	if ok {
		a.Elements = v.Clone().(*Array).Elements
	}
	return ok
}

func (a *Array) MarshalJSON() ([]byte, error) {
	if a.Elements == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.Elements)
}

func (a *Array) Len() int { return len(a.Elements) }

func (a *Array) Index(i int) (Object, *Error) {
	if i < 0 || i >= len(a.Elements) {
		return nil, newError(ErrCodeOutOfArray, "index %d is out of range for array of length %d", i, len(a.Elements))
	}
	return a.Elements[i], nil
}

// SetIndex replaces the payload of element i. The element kind must
// match the kind of v.
func (a *Array) SetIndex(i int, v Object) *Error {
	el, err := a.Index(i)
	if err != nil {
		return err
	}
	if el.Type() != v.Type() {
		return newError(ErrCodeVariable, "cannot store %s in %s element %d", v.Type(), el.Type(), i)
	}
	a.Elements[i] = v.Clone()
	return nil
}

// ObjectFromToken converts a literal token to its value. It returns nil
// for tokens that are not literals.
func ObjectFromToken(tok Token) Object {
	switch tok.Type {
	case TOKEN_NUMBER:
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil
		}
		return &Number{Value: v}
	case TOKEN_STRING:
		return &String{Value: tok.Literal}
	case TOKEN_TRUE:
		return &Boolean{Value: true}
	case TOKEN_FALSE:
		return &Boolean{Value: false}
	}
	return nil
}
