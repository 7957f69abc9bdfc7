// Package state holds the variable environment of one trace conversion and the
// immutable snapshot rows materialized from it.
package state

import "github.com/akr81/CounterExample2Sequence/internal/expr"

// Env is an insertion-ordered variable environment. Keys are never removed,
// only overwritten, so the order is the order of first binding.
type Env struct {
	order  []string
	values map[string]expr.Value
}

// NewEnv creates an empty environment
func NewEnv() *Env {
	return &Env{values: make(map[string]expr.Value)}
}

// Lookup returns the value bound to name
func (e *Env) Lookup(name string) (expr.Value, bool) {
	if e == nil {
		return expr.Value{}, false
	}
	v, ok := e.values[name]
	return v, ok
}

// Bind binds name to v, keeping the position of an existing binding
func (e *Env) Bind(name string, v expr.Value) {
	if _, ok := e.values[name]; !ok {
		e.order = append(e.order, name)
	}
	e.values[name] = v
}

// Names returns the bound names in first-binding order
func (e *Env) Names() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Len returns the number of bindings
func (e *Env) Len() int {
	if e == nil {
		return 0
	}
	return len(e.order)
}

// Clone returns an independent copy. Values are immutable, so a shallow copy
// of the map never aliases anything the original can still change.
func (e *Env) Clone() *Env {
	c := NewEnv()
	if e == nil {
		return c
	}
	c.order = append(c.order, e.order...)
	for k, v := range e.values {
		c.values[k] = v
	}
	return c
}

// Bindings returns the bindings in first-binding order
func (e *Env) Bindings() []Binding {
	if e == nil {
		return nil
	}
	out := make([]Binding, len(e.order))
	for idx, name := range e.order {
		out[idx] = Binding{Name: name, Value: e.values[name]}
	}
	return out
}
