package state

import "github.com/akr81/CounterExample2Sequence/internal/expr"

// Binding is one variable and its value at the time of a snapshot
type Binding struct {
	Name  string
	Value expr.Value
}

// Context carries the non-variable fields of a snapshot row
type Context struct {
	Example  int    // Sparse-diff example (run) id; 0 for full traces
	Step     int    // Step number (full trace) or state number within the example
	Process  string // Process that executed the step (full trace only)
	Action   string // Original action text (full trace only)
	FileLine string // Source location "file:line" (full trace only)
}

// Snapshot is one materialized row. The variable list is a private copy, so a
// Snapshot never changes once created.
type Snapshot struct {
	Context
	Loop bool
	vars []Binding
}

// NewSnapshot builds a snapshot from explicit bindings, copying them
func NewSnapshot(ctx Context, loop bool, vars []Binding) Snapshot {
	copied := make([]Binding, len(vars))
	copy(copied, vars)
	return Snapshot{Context: ctx, Loop: loop, vars: copied}
}

// Vars returns a copy of the bindings in first-binding order
func (s Snapshot) Vars() []Binding {
	out := make([]Binding, len(s.vars))
	copy(out, s.vars)
	return out
}

// Value returns the value of name at this snapshot
func (s Snapshot) Value(name string) (expr.Value, bool) {
	for _, b := range s.vars {
		if b.Name == name {
			return b.Value, true
		}
	}
	return expr.Value{}, false
}

// Len returns the number of variables captured
func (s Snapshot) Len() int {
	return len(s.vars)
}
