package drift

import (
	"github.com/akr81/CounterExample2Sequence/internal/state"
)

// DriftType represents the type of variable change between two snapshots.
type DriftType string

const (
	DriftAdded   DriftType = "added"   // Bound now but not before
	DriftRemoved DriftType = "removed" // Bound before but not now (new sparse-diff run)
	DriftChanged DriftType = "changed" // Bound in both with different values
)

// KeyDrift represents a single variable's change.
type KeyDrift struct {
	Key           string    `json:"key"`
	Type          DriftType `json:"type"`
	PreviousValue string    `json:"previousValue,omitempty"`
	CurrentValue  string    `json:"currentValue,omitempty"`
}

// StepDrift lists the changes a snapshot introduces relative to its predecessor.
type StepDrift struct {
	Example int        `json:"example,omitempty"`
	Step    int        `json:"step"`
	Loop    bool       `json:"loop"`
	Changes []KeyDrift `json:"changes"`
}

// DriftReport contains the changes of a whole snapshot sequence.
type DriftReport struct {
	HasDrift bool        `json:"hasDrift"`
	Steps    []StepDrift `json:"steps"`
}

// Detect compares every snapshot with the one before it; the first snapshot
// is compared with an empty environment. Snapshots without changes are omitted.
func Detect(snaps []state.Snapshot) DriftReport {
	report := DriftReport{Steps: []StepDrift{}}

	var previous []state.Binding
	for _, snap := range snaps {
		current := snap.Vars()
		changes := Compare(previous, current)
		if len(changes) > 0 {
			report.Steps = append(report.Steps, StepDrift{
				Example: snap.Example,
				Step:    snap.Step,
				Loop:    snap.Loop,
				Changes: changes,
			})
		}
		previous = current
	}

	report.HasDrift = len(report.Steps) > 0
	return report
}

// Compare returns the changes from previous to current. Added and changed
// variables come in current binding order, removed ones after them.
func Compare(previous, current []state.Binding) []KeyDrift {
	prev := make(map[string]state.Binding, len(previous))
	for _, b := range previous {
		prev[b.Name] = b
	}
	seen := make(map[string]bool, len(current))

	var changes []KeyDrift
	for _, b := range current {
		seen[b.Name] = true
		old, ok := prev[b.Name]
		if !ok {
			changes = append(changes, KeyDrift{
				Key:          b.Name,
				Type:         DriftAdded,
				CurrentValue: b.Value.String(),
			})
			continue
		}
		if !old.Value.Equal(b.Value) || old.Value.Kind() != b.Value.Kind() {
			changes = append(changes, KeyDrift{
				Key:           b.Name,
				Type:          DriftChanged,
				PreviousValue: old.Value.String(),
				CurrentValue:  b.Value.String(),
			})
		}
	}

	for _, b := range previous {
		if !seen[b.Name] {
			changes = append(changes, KeyDrift{
				Key:           b.Name,
				Type:          DriftRemoved,
				PreviousValue: b.Value.String(),
			})
		}
	}
	return changes
}
