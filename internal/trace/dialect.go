package trace

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDialect is returned for a dialect name other than auto, spin or smv
var ErrUnknownDialect = errors.New("unknown dialect")

// Dialect names a counterexample format
type Dialect string

const (
	DialectAuto Dialect = "auto" // Detect from the trace text
	DialectSpin Dialect = "spin" // Full trace, one line per process action
	DialectSMV  Dialect = "smv"  // Sparse diff, labeled states with changed variables
)

// ParseDialect accepts a dialect name case-insensitively; empty means auto
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return DialectAuto, nil
	case "spin", "promela":
		return DialectSpin, nil
	case "smv", "nusmv":
		return DialectSMV, nil
	default:
		return "", fmt.Errorf("%w: %q (want auto, spin or smv)", ErrUnknownDialect, s)
	}
}

// Detect returns DialectSMV if any line is a state header, otherwise DialectSpin
func Detect(text string) Dialect {
	for _, line := range Lines(text) {
		if stateHeaderPattern.MatchString(line) {
			return DialectSMV
		}
	}
	return DialectSpin
}

// Resolve turns DialectAuto into a concrete dialect for text
func Resolve(d Dialect, text string) Dialect {
	if d == DialectAuto || d == "" {
		return Detect(text)
	}
	return d
}

// NewClassifier returns the classifier for a concrete dialect
func NewClassifier(d Dialect) (Classifier, error) {
	switch d {
	case DialectSpin:
		return SpinClassifier{}, nil
	case DialectSMV:
		return SMVClassifier{}, nil
	default:
		return nil, fmt.Errorf("%w: %q has no classifier", ErrUnknownDialect, d)
	}
}
