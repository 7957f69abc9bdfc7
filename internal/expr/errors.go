package expr

import (
	"errors"
	"fmt"
)

// ErrInvalidExpression is wrapped by every parse and evaluation failure
var ErrInvalidExpression = errors.New("invalid expression")

// Error describes why an expression was rejected
type Error struct {
	Source string // Full source text being parsed or evaluated
	Pos    int    // Byte offset of the failure, -1 when not positional
	Msg    string
}

func (e *Error) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("invalid expression %q: %s at position %d", e.Source, e.Msg, e.Pos)
	}
	return fmt.Sprintf("invalid expression %q: %s", e.Source, e.Msg)
}

// Unwrap lets errors.Is match ErrInvalidExpression
func (e *Error) Unwrap() error {
	return ErrInvalidExpression
}

func syntaxError(src string, pos int, format string, args ...interface{}) error {
	return &Error{Source: src, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// runtimeError is raised during evaluation; the source is attached by the caller
type runtimeError struct {
	msg string
}

func (e *runtimeError) Error() string { return e.msg }

func evalErrorf(format string, args ...interface{}) error {
	return &runtimeError{msg: fmt.Sprintf(format, args...)}
}

// withSource turns an evaluation failure into an *Error carrying the source text
func withSource(src string, err error) error {
	if err == nil {
		return nil
	}
	var rt *runtimeError
	if errors.As(err, &rt) {
		return &Error{Source: src, Pos: -1, Msg: rt.msg}
	}
	return err
}
