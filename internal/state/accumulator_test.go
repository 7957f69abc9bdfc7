package state

import (
	"testing"

	"github.com/akr81/CounterExample2Sequence/internal/expr"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEnv_KeepsFirstBindingOrder(t *testing.T) {
	env := NewEnv()
	env.Bind("b", expr.Int(1))
	env.Bind("a", expr.Int(2))
	env.Bind("b", expr.Int(3))

	names := env.Names()
	if len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Errorf("Names() = %v, want [b a]", names)
	}
	if v, _ := env.Lookup("b"); !v.Equal(expr.Int(3)) {
		t.Errorf("b = %s, want 3", v.Repr())
	}
}

func TestAccumulator_SnapshotIsACopy(t *testing.T) {
	acc := NewAccumulator(nil)
	if _, err := acc.Apply("x = 1"); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	snap := acc.Snapshot(Context{Step: 1})

	if _, err := acc.Apply("x = 2"); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if _, err := acc.Apply("y = 3"); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if v, _ := snap.Value("x"); !v.Equal(expr.Int(1)) {
		t.Errorf("snapshot x = %s after later mutation, want 1", v.Repr())
	}
	if _, ok := snap.Value("y"); ok {
		t.Error("snapshot gained a variable bound after it was taken")
	}

	vars := snap.Vars()
	vars[0].Value = expr.Int(99)
	if v, _ := snap.Value("x"); !v.Equal(expr.Int(1)) {
		t.Error("mutating Vars() result changed the snapshot")
	}
}

func TestAccumulator_InitialEnvIsNotAliased(t *testing.T) {
	initial := NewEnv()
	initial.Bind("count", expr.Int(0))

	acc := NewAccumulator(initial)
	if _, err := acc.Apply("count = count + 1"); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if v, _ := initial.Lookup("count"); !v.Equal(expr.Int(0)) {
		t.Errorf("initial count = %s, want 0", v.Repr())
	}
	if v, _ := acc.Lookup("count"); !v.Equal(expr.Int(1)) {
		t.Errorf("accumulated count = %s, want 1", v.Repr())
	}
}

func TestAccumulator_LoopFlags(t *testing.T) {
	acc := NewAccumulator(nil)

	acc.SetLoopPending()
	if acc.Loop() {
		t.Fatal("pending loop must not be active yet")
	}
	acc.ActivateLoop()
	if !acc.Loop() {
		t.Fatal("ActivateLoop() did not activate the pending loop")
	}
	acc.ActivateLoop()
	if !acc.Loop() {
		t.Fatal("loop flag is not sticky")
	}

	acc.ResetRun(false)
	if acc.Loop() || acc.LoopPending() {
		t.Error("ResetRun() left loop flags set")
	}
}

func TestAccumulator_ResetRunRestoresInitial(t *testing.T) {
	initial := NewEnv()
	initial.Bind("mode", expr.String("off"))

	acc := NewAccumulator(initial)
	acc.Bind("mode", expr.String("on"))
	acc.Bind("extra", expr.Int(1))

	acc.ResetRun(false)
	if v, _ := acc.Lookup("mode"); v.String() != "on" {
		t.Errorf("carry-over reset changed mode to %s", v.String())
	}

	acc.ResetRun(true)
	if v, _ := acc.Lookup("mode"); v.String() != "off" {
		t.Errorf("mode = %s after reset, want off", v.String())
	}
	if _, ok := acc.Lookup("extra"); ok {
		t.Error("extra survived an environment reset")
	}
}

// Property: a snapshot reflects exactly the environment at the time it was taken
func TestProperty_SnapshotsAreImmutable(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("later binds never change earlier snapshots", prop.ForAll(
		func(values []int64) bool {
			acc := NewAccumulator(nil)
			snaps := make([]Snapshot, 0, len(values))
			for idx, v := range values {
				acc.Bind("v", expr.Int(v))
				snaps = append(snaps, acc.Snapshot(Context{Step: idx}))
			}
			for idx, snap := range snaps {
				got, ok := snap.Value("v")
				if !ok || !got.Equal(expr.Int(values[idx])) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64()),
	))

	properties.TestingRun(t)
}
