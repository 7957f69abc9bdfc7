// Package sample provides the built-in counterexample traces used when no
// trace file is given.
package sample

import _ "embed"

var (
	//go:embed spin.txt
	spinTrace string

	//go:embed smv.txt
	smvTrace string
)

// Spin returns a SPIN full trace of an agent/database handshake that violates
// a never claim
func Spin() string {
	return spinTrace
}

// SMV returns a NuSMV trace with two counterexamples for a kettle controller,
// the second one ending in a loop
func SMV() string {
	return smvTrace
}
