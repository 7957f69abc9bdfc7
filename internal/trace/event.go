// Package trace classifies the lines of a model-checker counterexample into
// events. Classification is total: every line maps to exactly one Event, and
// lines that match nothing are Noise.
package trace

import "strings"

// Event is one classified trace line
type Event interface {
	isEvent()
}

// Direction of a channel operation
type Direction string

const (
	Send Direction = "send"
	Recv Direction = "recv"
)

// Step carries the fields shared by every full-trace step line
type Step struct {
	Number   int    // Step number as printed by the checker
	Process  string // Process name, e.g. "DB:1"
	Location string // Source location "file:line"
	Action   string // Bracketed action text, brackets removed
}

// Line returns the source line number part of Location
func (s Step) Line() string {
	if idx := strings.LastIndex(s.Location, ":"); idx >= 0 {
		return s.Location[idx+1:]
	}
	return s.Location
}

// StepAssignment is a step whose action binds a variable
type StepAssignment struct {
	Step
	Variable string // Bound name
	Expr     string // Right-hand side text
}

// StepGuard is a step whose action only tests a condition
type StepGuard struct {
	Step
}

// StepMessage is a channel send or receive
type StepMessage struct {
	Step
	Channel   string
	Payload   string
	Direction Direction
}

// CycleMarker announces the start of the accepting cycle (full trace) or that
// the next state begins the loop body (sparse diff)
type CycleMarker struct{}

// StateHeader opens a labeled state "-> State: E.S <-"
type StateHeader struct {
	Example int
	Step    int
}

// Diff is a "name = value" line of a sparse-diff trace; Value is verbatim
type Diff struct {
	Variable string
	Value    string
}

// Noise is any line that carries no trace information
type Noise struct {
	Text string
}

func (StepAssignment) isEvent() {}
func (StepGuard) isEvent()      {}
func (StepMessage) isEvent()    {}
func (CycleMarker) isEvent()    {}
func (StateHeader) isEvent()    {}
func (Diff) isEvent()           {}
func (Noise) isEvent()          {}

// Classifier maps one raw line to an Event
type Classifier interface {
	Classify(line string) Event
}

// Lines splits trace text into lines, dropping carriage returns
func Lines(text string) []string {
	lines := strings.Split(text, "\n")
	for idx, line := range lines {
		lines[idx] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// ClassifyAll classifies every line of text
func ClassifyAll(c Classifier, text string) []Event {
	lines := Lines(text)
	events := make([]Event, 0, len(lines))
	for _, line := range lines {
		events = append(events, c.Classify(line))
	}
	return events
}
