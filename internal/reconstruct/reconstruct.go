// Package reconstruct turns a counterexample trace into the ordered snapshot
// rows of its variables and, for full traces, the message sequence of a
// diagram.
package reconstruct

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/akr81/CounterExample2Sequence/internal/expr"
	"github.com/akr81/CounterExample2Sequence/internal/state"
	"github.com/akr81/CounterExample2Sequence/internal/trace"
)

// Options control one conversion
type Options struct {
	Dialect   trace.Dialect // DialectAuto detects from the text
	Initial   *state.Env    // Bindings in place before the first line; may be nil
	CarryOver bool          // Sparse diff: keep bindings across examples instead of resetting
	Logger    *slog.Logger  // nil discards
}

// Result of a conversion
type Result struct {
	Dialect   trace.Dialect
	Snapshots []state.Snapshot
	Variables []string  // Union of variable names in first-binding order
	Sequence  *Sequence // Full traces only
}

// Reconstruct converts trace text. Evaluation failures wrap
// expr.ErrInvalidExpression and abort the conversion.
func Reconstruct(text string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	dialect := trace.Resolve(opts.Dialect, text)
	classifier, err := trace.NewClassifier(dialect)
	if err != nil {
		return nil, err
	}
	events := trace.ClassifyAll(classifier, text)
	logger.Debug("classified trace", "dialect", string(dialect), "lines", len(events))

	var result *Result
	switch dialect {
	case trace.DialectSpin:
		result, err = fullTrace(events, opts)
	default:
		result, err = sparseDiff(events, opts, logger)
	}
	if err != nil {
		return nil, err
	}
	result.Dialect = dialect
	result.Variables = columns(opts.Initial, result.Snapshots)
	logger.Debug("reconstructed snapshots", "dialect", string(dialect), "snapshots", len(result.Snapshots), "variables", len(result.Variables))
	return result, nil
}

// fullTrace emits one snapshot per assignment step, eagerly
func fullTrace(events []trace.Event, opts Options) (*Result, error) {
	acc := state.NewAccumulator(opts.Initial)
	seq := newSequenceBuilder()
	var snaps []state.Snapshot

	for _, ev := range events {
		switch e := ev.(type) {
		case trace.CycleMarker:
			acc.SetLoopPending()
			acc.ActivateLoop()
			seq.startLoop()
		case trace.StepAssignment:
			if _, err := acc.Apply(e.Action); err != nil {
				return nil, fmt.Errorf("step %d: %w", e.Number, err)
			}
			snaps = append(snaps, acc.Snapshot(state.Context{
				Step:     e.Number,
				Process:  e.Process,
				Action:   e.Action,
				FileLine: e.Location,
			}))
			seq.add(ev)
		case trace.StepMessage, trace.StepGuard:
			seq.add(ev)
		}
	}

	return &Result{Snapshots: snaps, Sequence: seq.build()}, nil
}

// sparseDiff emits one snapshot per state header, flushed when the next
// header or the end of input shows that no more diffs belong to it
func sparseDiff(events []trace.Event, opts Options, logger *slog.Logger) (*Result, error) {
	acc := state.NewAccumulator(opts.Initial)
	var (
		snaps   []state.Snapshot
		current trace.StateHeader
		started bool
	)

	flush := func() {
		snap := acc.Snapshot(state.Context{Example: current.Example, Step: current.Step})
		logger.Debug("state flushed", "example", current.Example, "step", current.Step, "loop", snap.Loop, "variables", snap.Len())
		snaps = append(snaps, snap)
	}

	for _, ev := range events {
		switch e := ev.(type) {
		case trace.CycleMarker:
			acc.SetLoopPending()
		case trace.StateHeader:
			if started {
				flush()
			}
			if !started || e.Example != current.Example {
				// diffs ahead of the first header belong to no run, keep them
				acc.ResetRun(started && !opts.CarryOver)
			}
			acc.ActivateLoop()
			current = e
			started = true
		case trace.Diff:
			acc.Bind(e.Variable, expr.String(e.Value))
		}
	}
	if started {
		flush()
	}

	return &Result{Snapshots: snaps}, nil
}

func columns(initial *state.Env, snaps []state.Snapshot) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, name := range initial.Names() {
		add(name)
	}
	for _, snap := range snaps {
		for _, b := range snap.Vars() {
			add(b.Name)
		}
	}
	return names
}
