package trace

import (
	"regexp"
	"strconv"
	"strings"
)

// CycleMarkerText is printed by SPIN where the accepting cycle begins
const CycleMarkerText = "<<<<<START OF CYCLE>>>>>"

var (
	// "  9:	proc  2 (DB:1) main.pml:81 (state 34)	[DB_state = stop]"
	stepPattern = regexp.MustCompile(`^\s*(\d+):\s*proc\s*\d+\s*\(([^)]+)\)\s+(\S+:\d+)\s*\(state\s*\d+\)\s*\[(.+?)\]\s*$`)

	// channel operation: name or name[index] followed by ! !! ? or ??
	messagePattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_.]*(?:\[[^\]]*\])?)\s*(!!|!|\?\?|\?)(.*)$`)
)

// SpinClassifier classifies lines of a full trace
type SpinClassifier struct{}

// Classify implements Classifier
func (SpinClassifier) Classify(line string) Event {
	if strings.Contains(line, CycleMarkerText) {
		return CycleMarker{}
	}

	m := stepPattern.FindStringSubmatch(line)
	if m == nil {
		return Noise{Text: line}
	}
	number, err := strconv.Atoi(m[1])
	if err != nil {
		return Noise{Text: line}
	}
	step := Step{
		Number:   number,
		Process:  m[2],
		Location: m[3],
		Action:   strings.TrimSpace(m[4]),
	}
	return ClassifyAction(step)
}

// ClassifyAction sub-classifies the action of a step line
func ClassifyAction(step Step) Event {
	if channel, payload, dir, ok := SplitMessage(step.Action); ok {
		return StepMessage{Step: step, Channel: channel, Payload: payload, Direction: dir}
	}
	if idx := AssignmentIndex(step.Action); idx >= 0 {
		lhs := strings.TrimRight(strings.TrimSpace(step.Action[:idx]), "+-*/%")
		return StepAssignment{
			Step:     step,
			Variable: strings.TrimSpace(lhs),
			Expr:     strings.TrimSpace(step.Action[idx+1:]),
		}
	}
	return StepGuard{Step: step}
}

// SplitMessage splits a channel operation into channel and payload. A "!"
// followed by "=" is an inequality, and a leading "!" is a negation.
func SplitMessage(action string) (channel, payload string, dir Direction, ok bool) {
	m := messagePattern.FindStringSubmatch(action)
	if m == nil {
		return "", "", "", false
	}
	rest := m[3]
	if strings.HasPrefix(rest, "=") {
		return "", "", "", false
	}
	dir = Send
	if strings.HasPrefix(m[2], "?") {
		dir = Recv
	}
	return m[1], strings.TrimSpace(rest), dir, true
}

// AssignmentIndex returns the byte offset of the assignment "=" in action, or
// -1 when the action is not an assignment. Only an "=" outside brackets and
// quotes that is not part of == != <= >= counts, and any "==" disqualifies the
// whole action.
func AssignmentIndex(action string) int {
	if strings.Contains(action, "==") {
		return -1
	}
	depth := 0
	var quote byte
	for i := 0; i < len(action); i++ {
		ch := action[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case '=':
			if depth != 0 {
				continue
			}
			if i > 0 && strings.IndexByte("!<>", action[i-1]) >= 0 {
				continue
			}
			return i
		}
	}
	return -1
}
