package state

import "github.com/akr81/CounterExample2Sequence/internal/expr"

// Accumulator owns the environment of one trace conversion together with the
// loop flags. Nothing outside it mutates the environment.
type Accumulator struct {
	initial     *Env
	env         *Env
	loop        bool
	loopPending bool
}

// NewAccumulator starts from a private copy of initial, which may be nil
func NewAccumulator(initial *Env) *Accumulator {
	return &Accumulator{
		initial: initial.Clone(),
		env:     initial.Clone(),
	}
}

// Bind binds name to v
func (a *Accumulator) Bind(name string, v expr.Value) {
	a.env.Bind(name, v)
}

// Apply executes an assignment statement against the environment and returns the bound name
func (a *Accumulator) Apply(statement string) (string, error) {
	return expr.Exec(statement, a.env)
}

// Lookup returns the current value of name
func (a *Accumulator) Lookup(name string) (expr.Value, bool) {
	return a.env.Lookup(name)
}

// Snapshot materializes the current environment under ctx with the active loop flag
func (a *Accumulator) Snapshot(ctx Context) Snapshot {
	return Snapshot{Context: ctx, Loop: a.loop, vars: a.env.Bindings()}
}

// SetLoopPending records that a loop begins at the next significant point
func (a *Accumulator) SetLoopPending() {
	a.loopPending = true
}

// ActivateLoop makes a pending loop flag active. The flag is sticky: once
// active it stays set until ResetRun.
func (a *Accumulator) ActivateLoop() {
	a.loop = a.loop || a.loopPending
}

// Loop reports the active loop flag
func (a *Accumulator) Loop() bool {
	return a.loop
}

// LoopPending reports whether a loop start has been announced
func (a *Accumulator) LoopPending() bool {
	return a.loopPending
}

// ResetRun clears both loop flags for a new independent run. With resetEnv the
// environment also returns to the initial bindings.
func (a *Accumulator) ResetRun(resetEnv bool) {
	a.loop = false
	a.loopPending = false
	if resetEnv {
		a.env = a.initial.Clone()
	}
}

// Names returns the currently bound names in first-binding order
func (a *Accumulator) Names() []string {
	return a.env.Names()
}
