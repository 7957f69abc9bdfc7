package reconstruct

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/akr81/CounterExample2Sequence/internal/expr"
	"github.com/akr81/CounterExample2Sequence/internal/sample"
	"github.com/akr81/CounterExample2Sequence/internal/state"
	"github.com/akr81/CounterExample2Sequence/internal/trace"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func valueAt(t *testing.T, snap state.Snapshot, name string) string {
	t.Helper()
	v, ok := snap.Value(name)
	if !ok {
		t.Fatalf("snapshot %d.%d has no %s", snap.Example, snap.Step, name)
	}
	return v.String()
}

func TestReconstruct_SpinSample(t *testing.T) {
	result, err := Reconstruct(sample.Spin(), Options{})
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	if result.Dialect != trace.DialectSpin {
		t.Errorf("Dialect = %s, want spin", result.Dialect)
	}
	if len(result.Snapshots) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(result.Snapshots))
	}

	tests := []struct {
		step     int
		variable string
		want     string
		process  string
	}{
		{9, "DB_state", "stop", "DB:1"},
		{15, "DB_state", "ready", "DB:1"},
		{20, "Agent_state", "sending", "Agent:1"},
	}
	for idx, tt := range tests {
		t.Run(fmt.Sprintf("step %d", tt.step), func(t *testing.T) {
			snap := result.Snapshots[idx]
			if snap.Step != tt.step {
				t.Fatalf("Step = %d, want %d", snap.Step, tt.step)
			}
			if snap.Process != tt.process {
				t.Errorf("Process = %s, want %s", snap.Process, tt.process)
			}
			if got := valueAt(t, snap, tt.variable); got != tt.want {
				t.Errorf("%s = %s, want %s", tt.variable, got, tt.want)
			}
			if snap.Loop {
				t.Error("sample has no cycle but loop is set")
			}
		})
	}

	// Agent_state is bound only at step 20
	if _, ok := result.Snapshots[0].Value("Agent_state"); ok {
		t.Error("step 9 already has Agent_state")
	}
	if want := []string{"DB_state", "Agent_state"}; !reflect.DeepEqual(result.Variables, want) {
		t.Errorf("Variables = %v, want %v", result.Variables, want)
	}
}

func TestReconstruct_SpinSequence(t *testing.T) {
	result, err := Reconstruct(sample.Spin(), Options{Dialect: trace.DialectSpin})
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	seq := result.Sequence
	if seq == nil {
		t.Fatal("Sequence is nil for a full trace")
	}

	if want := []string{":init::1", "Agent:1", "DB:1"}; !reflect.DeepEqual(seq.Participants, want) {
		t.Errorf("Participants = %v, want %v", seq.Participants, want)
	}
	if len(seq.Messages) != 12 {
		t.Fatalf("got %d messages, want 12", len(seq.Messages))
	}

	tests := []struct {
		idx  int
		want Message
	}{
		{0, Message{Source: ":init::1", Arrow: ArrowSync, Destination: ":init::1", Label: "s.2: l.88: (run Agent())", Step: 2, Location: "main_original.pml:88"}},
		{2, Message{Source: ":init::1", Arrow: ArrowSync, Destination: "Agent_ch", Label: "s.4: l.90: request_send", Step: 4, Location: "main_original.pml:90"}},
		{3, Message{Source: "Agent_ch", Arrow: ArrowReply, Destination: "Agent:1", Label: "s.5: l.20: event", Step: 5, Location: "main_original.pml:20"}},
		{5, Message{Source: "DB:1", Arrow: ArrowSync, Destination: "DB:1", Label: "s.9: l.81: DB_state = stop", Step: 9, Location: "main_original.pml:81"}},
	}
	for _, tt := range tests {
		t.Run(tt.want.Label, func(t *testing.T) {
			if got := seq.Messages[tt.idx]; got != tt.want {
				t.Errorf("Messages[%d] = %+v, want %+v", tt.idx, got, tt.want)
			}
		})
	}
	if seq.Loop.Active {
		t.Error("loop region reported for a trace without a cycle")
	}
}

const cyclicSpin = `
  1:	proc  0 (P:1) m.pml:3 (state 1)	[x = 1]
  2:	proc  1 (Q:1) m.pml:9 (state 1)	[ch!x]
  <<<<<START OF CYCLE>>>>>
  3:	proc  0 (P:1) m.pml:4 (state 2)	[x = x + 1]
  4:	proc  0 (P:1) m.pml:5 (state 3)	[(x > 1)]
  5:	proc  0 (P:1) m.pml:6 (state 4)	[y = x * 2]
`

func TestReconstruct_SpinCycle(t *testing.T) {
	result, err := Reconstruct(cyclicSpin, Options{Dialect: trace.DialectSpin})
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}

	wantLoop := []bool{false, true, true}
	for idx, snap := range result.Snapshots {
		if snap.Loop != wantLoop[idx] {
			t.Errorf("snapshot %d loop = %v, want %v", snap.Step, snap.Loop, wantLoop[idx])
		}
	}
	if got := valueAt(t, result.Snapshots[2], "y"); got != "4" {
		t.Errorf("y = %s, want 4", got)
	}

	loop := result.Sequence.Loop
	if !loop.Active || loop.Start != 2 || loop.End != 5 {
		t.Errorf("Loop = %+v, want active 2..5", loop)
	}
}

func TestReconstruct_InitialEnvironment(t *testing.T) {
	initial := state.NewEnv()
	initial.Bind("x", expr.Int(10))

	result, err := Reconstruct(cyclicSpin, Options{Dialect: trace.DialectSpin, Initial: initial})
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	// step 1 rebinds x = 1, step 3 increments
	if got := valueAt(t, result.Snapshots[1], "x"); got != "2" {
		t.Errorf("x = %s, want 2", got)
	}
	if v, _ := initial.Lookup("x"); !v.Equal(expr.Int(10)) {
		t.Error("initial environment was mutated")
	}
}

func TestReconstruct_InvalidExpressionAborts(t *testing.T) {
	text := "  1:\tproc  0 (P:1) m.pml:3 (state 1)\t[x = 1]\n" +
		"  3:\tproc  0 (P:1) m.pml:4 (state 2)\t[x = f(1)]\n"

	_, err := Reconstruct(text, Options{Dialect: trace.DialectSpin})
	if !errors.Is(err, expr.ErrInvalidExpression) {
		t.Fatalf("error = %v, want ErrInvalidExpression", err)
	}
	if !strings.HasPrefix(err.Error(), "step 3:") {
		t.Errorf("error = %q, want step prefix", err.Error())
	}
}

func TestReconstruct_SMVSample(t *testing.T) {
	result, err := Reconstruct(sample.SMV(), Options{})
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	if result.Dialect != trace.DialectSMV {
		t.Errorf("Dialect = %s, want smv", result.Dialect)
	}
	if result.Sequence != nil {
		t.Error("sparse-diff result carries a sequence")
	}
	if len(result.Snapshots) != 8 {
		t.Fatalf("got %d snapshots, want 8", len(result.Snapshots))
	}

	first := result.Snapshots[0]
	if first.Example != 1 || first.Step != 1 {
		t.Fatalf("first snapshot = %d.%d", first.Example, first.Step)
	}
	for name, want := range map[string]string{"status": "Idle", "water_level": "0", "is_lid_closed": "FALSE", "dispense_button_pressed": "FALSE"} {
		if got := valueAt(t, first, name); got != want {
			t.Errorf("1.1 %s = %s, want %s", name, got, want)
		}
	}

	second := result.Snapshots[1]
	for name, want := range map[string]string{"status": "Idle", "water_level": "3", "temperature": "Warm", "is_lid_closed": "TRUE", "is_locked": "TRUE", "heater_on": "FALSE"} {
		if got := valueAt(t, second, name); got != want {
			t.Errorf("1.2 %s = %s, want %s", name, got, want)
		}
	}
	if second.Len() != first.Len() {
		t.Errorf("1.2 has %d variables, 1.1 has %d", second.Len(), first.Len())
	}

	wantLoop := []bool{false, false, false, false, false, true, true, true}
	for idx, snap := range result.Snapshots {
		if snap.Loop != wantLoop[idx] {
			t.Errorf("%d.%d loop = %v, want %v", snap.Example, snap.Step, snap.Loop, wantLoop[idx])
		}
	}
}

const twoRuns = `
  -> State: 1.1 <-
    a = 1
  -> State: 1.2 <-
    a = 2
  -- Loop starts here
  -> State: 2.1 <-
    b = 7
`

func TestReconstruct_SMVRunBoundary(t *testing.T) {
	tests := []struct {
		name      string
		carryOver bool
		wantA     bool
	}{
		{"reset per run", false, false},
		{"carry over", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Reconstruct(twoRuns, Options{Dialect: trace.DialectSMV, CarryOver: tt.carryOver})
			if err != nil {
				t.Fatalf("Reconstruct() error = %v", err)
			}
			if len(result.Snapshots) != 3 {
				t.Fatalf("got %d snapshots, want 3", len(result.Snapshots))
			}
			last := result.Snapshots[2]
			if _, ok := last.Value("a"); ok != tt.wantA {
				t.Errorf("2.1 has a = %v, want %v", ok, tt.wantA)
			}
			// a loop announced at the end of run 1 does not leak into run 2
			if last.Loop {
				t.Error("2.1 inherited the loop flag of run 1")
			}
			if got := valueAt(t, result.Snapshots[1], "a"); got != "2" {
				t.Errorf("1.2 a = %s, want 2", got)
			}
		})
	}
}

func TestReconstruct_SMVEdgeCases(t *testing.T) {
	t.Run("no headers", func(t *testing.T) {
		result, err := Reconstruct("x = 1\ny = 2\n", Options{Dialect: trace.DialectSMV})
		if err != nil {
			t.Fatalf("Reconstruct() error = %v", err)
		}
		if len(result.Snapshots) != 0 {
			t.Errorf("got %d snapshots, want none", len(result.Snapshots))
		}
	})

	t.Run("diffs before the first header", func(t *testing.T) {
		result, err := Reconstruct("pre = 1\n-> State: 1.1 <-\nx = 2\n", Options{Dialect: trace.DialectSMV})
		if err != nil {
			t.Fatalf("Reconstruct() error = %v", err)
		}
		if len(result.Snapshots) != 1 {
			t.Fatalf("got %d snapshots, want 1", len(result.Snapshots))
		}
		if got := valueAt(t, result.Snapshots[0], "pre"); got != "1" {
			t.Errorf("pre = %s, want 1", got)
		}
	})

	t.Run("empty header", func(t *testing.T) {
		result, err := Reconstruct("-> State: 1.1 <-\nx = 2\n-> State: 1.2 <-\n", Options{Dialect: trace.DialectSMV})
		if err != nil {
			t.Fatalf("Reconstruct() error = %v", err)
		}
		if len(result.Snapshots) != 2 || valueAt(t, result.Snapshots[1], "x") != "2" {
			t.Errorf("empty state did not repeat the environment")
		}
	})
}

// genSpinTrace builds a full trace from op codes:
// 0 assignment, 1 guard, 2 send, 3 cycle marker, 4 noise
func genSpinTrace(ops []int) (string, int) {
	var b strings.Builder
	assigns := 0
	for idx, op := range ops {
		step := idx + 1
		switch op {
		case 0:
			assigns++
			fmt.Fprintf(&b, "%3d:\tproc  0 (P:1) m.pml:%d (state 1)\t[v%d = %d]\n", step, step, idx%3, idx)
		case 1:
			fmt.Fprintf(&b, "%3d:\tproc  1 (Q:1) m.pml:%d (state 2)\t[((v0 == %d))]\n", step, step, idx)
		case 2:
			fmt.Fprintf(&b, "%3d:\tproc  1 (Q:1) m.pml:%d (state 3)\t[ch!v%d]\n", step, step, idx%3)
		case 3:
			b.WriteString("  <<<<<START OF CYCLE>>>>>\n")
		default:
			b.WriteString("MSC: ~G line 3\n")
		}
	}
	return b.String(), assigns
}

// genSMVTrace builds a sparse-diff trace from op codes:
// 0 next state, 1 first state of a new example, 2 diff, 3 loop marker, 4 noise
func genSMVTrace(ops []int) (string, int) {
	var b strings.Builder
	example, step, headers := 1, 0, 0
	for idx, op := range ops {
		switch op {
		case 0, 1:
			if op == 1 && step > 0 {
				example++
				step = 0
			}
			step++
			headers++
			fmt.Fprintf(&b, "  -> State: %d.%d <-\n", example, step)
		case 2:
			fmt.Fprintf(&b, "    v%d = %d\n", idx%3, idx)
		case 3:
			b.WriteString("  -- Loop starts here\n")
		default:
			b.WriteString("-- specification AG (v0 = 1)  is false\n")
		}
	}
	return b.String(), headers
}

func TestProperty_FullTrace(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	opsGen := gen.SliceOf(gen.IntRange(0, 4))

	properties.Property("one snapshot per assignment step", prop.ForAll(
		func(ops []int) bool {
			text, assigns := genSpinTrace(ops)
			result, err := Reconstruct(text, Options{Dialect: trace.DialectSpin})
			return err == nil && len(result.Snapshots) == assigns
		},
		opsGen,
	))

	properties.Property("loop flag is false before the first cycle marker and true after", prop.ForAll(
		func(ops []int) bool {
			text, _ := genSpinTrace(ops)
			result, err := Reconstruct(text, Options{Dialect: trace.DialectSpin})
			if err != nil {
				return false
			}
			seen := false
			snap := 0
			for _, op := range ops {
				switch op {
				case 3:
					seen = true
				case 0:
					if result.Snapshots[snap].Loop != seen {
						return false
					}
					snap++
				}
			}
			return true
		},
		opsGen,
	))

	properties.Property("step keys are non-decreasing", prop.ForAll(
		func(ops []int) bool {
			text, _ := genSpinTrace(ops)
			result, err := Reconstruct(text, Options{Dialect: trace.DialectSpin})
			if err != nil {
				return false
			}
			for idx := 1; idx < len(result.Snapshots); idx++ {
				if result.Snapshots[idx].Step < result.Snapshots[idx-1].Step {
					return false
				}
			}
			return true
		},
		opsGen,
	))

	properties.Property("conversion is deterministic", prop.ForAll(
		func(ops []int, sparse, carryOver bool) bool {
			text, _ := genSpinTrace(ops)
			if sparse {
				text, _ = genSMVTrace(ops)
			}
			opts := Options{Dialect: trace.DialectAuto, CarryOver: carryOver}
			first, err1 := Reconstruct(text, opts)
			second, err2 := Reconstruct(text, opts)
			return err1 == nil && err2 == nil && reflect.DeepEqual(first, second)
		},
		opsGen,
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property: every sparse-diff header yields exactly one snapshot
func TestProperty_SparseDiffOneSnapshotPerHeader(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("mixed sparse traces emit one snapshot per header in key order", prop.ForAll(
		func(ops []int, carryOver bool) bool {
			text, headers := genSMVTrace(ops)
			result, err := Reconstruct(text, Options{Dialect: trace.DialectSMV, CarryOver: carryOver})
			if err != nil || len(result.Snapshots) != headers {
				return false
			}
			for idx := 1; idx < len(result.Snapshots); idx++ {
				prev, cur := result.Snapshots[idx-1], result.Snapshots[idx]
				if cur.Example < prev.Example || (cur.Example == prev.Example && cur.Step <= prev.Step) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 4)),
		gen.Bool(),
	))

	properties.Property("snapshot count equals header count", prop.ForAll(
		func(diffs []int) bool {
			var b strings.Builder
			for idx, n := range diffs {
				fmt.Fprintf(&b, "  -> State: %d.%d <-\n", idx/4+1, idx%4+1)
				for d := 0; d < n; d++ {
					fmt.Fprintf(&b, "    v%d = %d\n", d, idx)
				}
			}
			result, err := Reconstruct(b.String(), Options{Dialect: trace.DialectSMV})
			return err == nil && len(result.Snapshots) == len(diffs)
		},
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}
