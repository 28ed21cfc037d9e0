package coderun

import (
	"sort"
)

type Permission int

const (
	ReadWrite Permission = iota
	ReadOnly
)

func (p Permission) String() string {
	if p == ReadOnly {
		return "read-only"
	}
	return "read-write"
}

type Binding struct {
	Permission Permission
	Value      Object
}

// NativeFunc is a host function callable from scripts. arg is nil when
// the call has no arguments, the single argument for one, and an Array
// otherwise. The function must eventually call k.Resume, either before
// returning or later from host code.
type NativeFunc func(arg Object, k Continuation)

// Environment holds the variables and native functions visible to a
// script. Values and functions share one name space. Values are copied
// on the way in and on the way out.
type Environment struct {
	store     map[string]*Binding
	functions map[string]NativeFunc
}

func NewEnvironment() *Environment {
	return &Environment{
		store:     make(map[string]*Binding),
		functions: make(map[string]NativeFunc),
	}
}

// Add creates a binding when name is free. It reports whether the
// binding was created.
func (e *Environment) Add(name string, value Object, perm ...Permission) bool {
	if value == nil || e.taken(name) {
		return false
	}
	p := ReadWrite
	if len(perm) > 0 {
		p = perm[0]
	}
	e.store[name] = &Binding{Permission: p, Value: value.Clone()}
	return true
}

func (e *Environment) taken(name string) bool {
	if _, ok := e.store[name]; ok {
		return true
	}
	_, ok := e.functions[name]
	return ok
}

func (e *Environment) writable(name string) (*Binding, error) {
	b, ok := e.store[name]
	if !ok {
		return nil, newError(ErrCodeUnknown, "'%s' is not declared", name)
	}
	if b.Permission == ReadOnly {
		return nil, newError(ErrCodeReadOnly, "'%s' is read-only", name)
	}
	return b, nil
}

// Set replaces the value of an existing read-write binding. The new
// value must have the kind of the old one.
func (e *Environment) Set(name string, value Object) error {
	b, err := e.writable(name)
	if err != nil {
		return err
	}
	if b.Value.Type() != value.Type() {
		return newError(ErrCodeVariable, "cannot assign %s to '%s' of type %s", value.Type(), name, b.Value.Type())
	}
	b.Value.Set(value.Clone())
	return nil
}

func (e *Environment) SetIndex(name string, index int, value Object) error {
	b, err := e.writable(name)
	if err != nil {
		return err
	}
	arr, ok := b.Value.(*Array)
	if !ok {
		return newError(ErrCodeVariable, "'%s' is a %s, not an array", name, b.Value.Type())
	}
	if err := arr.SetIndex(index, value); err != nil {
		return err
	}
	return nil
}

func (e *Environment) Get(name string) (Object, bool) {
	b, ok := e.store[name]
	if !ok {
		return nil, false
	}
	return b.Value.Clone(), true
}

// Lookup returns the binding without copying its value. Callers must
// not modify the value.
func (e *Environment) Lookup(name string) (Binding, bool) {
	b, ok := e.store[name]
	if !ok {
		return Binding{}, false
	}
	return *b, true
}

func (e *Environment) Has(name string) bool {
	_, ok := e.store[name]
	return ok
}

func (e *Environment) IsReadOnly(name string) bool {
	b, ok := e.store[name]
	return ok && b.Permission == ReadOnly
}

func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.store))
	for name := range e.store {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Environment) Snapshot() map[string]Object {
	out := make(map[string]Object, len(e.store))
	for name, b := range e.store {
		out[name] = b.Value.Clone()
	}
	return out
}

func (e *Environment) AddFunction(name string, fn NativeFunc) bool {
	if fn == nil || e.taken(name) {
		return false
	}
	e.functions[name] = fn
	return true
}

func (e *Environment) GetFunction(name string) (NativeFunc, bool) {
	fn, ok := e.functions[name]
	return fn, ok
}

func (e *Environment) HasFunction(name string) bool {
	_, ok := e.functions[name]
	return ok
}

// Remove deletes a value or function binding.
func (e *Environment) Remove(name string) {
	delete(e.store, name)
	delete(e.functions, name)
}

// ClearStore drops the read-write bindings. Read-only values and
// functions survive.
func (e *Environment) ClearStore() {
	for name, b := range e.store {
		if b.Permission == ReadWrite {
			delete(e.store, name)
		}
	}
}

// Clear drops every value binding. Functions survive.
func (e *Environment) Clear() {
	e.store = make(map[string]*Binding)
}
