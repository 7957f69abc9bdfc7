package expr

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type of a Value
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindTuple
	KindSet
	KindDict
)

var kindNames = map[Kind]string{
	KindNone:   "none",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "str",
	KindList:   "list",
	KindTuple:  "tuple",
	KindSet:    "set",
	KindDict:   "dict",
}

// String returns the type name used in error messages
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Value is an immutable evaluated value. Containers are never mutated after
// construction, so copying a Value never aliases mutable storage.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	items []Value // list, tuple, set elements or dict values
	keys  []Value // dict keys, parallel to items
}

// None returns the None value
func None() Value { return Value{kind: KindNone} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point value
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string value
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a list value holding a copy of items
func List(items ...Value) Value {
	return Value{kind: KindList, items: copyValues(items)}
}

// Tuple returns a tuple value holding a copy of items
func Tuple(items ...Value) Value {
	return Value{kind: KindTuple, items: copyValues(items)}
}

// Set returns a set value; duplicate elements are dropped, first occurrence wins
func Set(items ...Value) Value {
	unique := make([]Value, 0, len(items))
	for _, it := range items {
		if !containsValue(unique, it) {
			unique = append(unique, it)
		}
	}
	return Value{kind: KindSet, items: unique}
}

// Dict returns a mapping value. keys and values must have the same length.
// A repeated key keeps its first position and its last value.
func Dict(keys, values []Value) Value {
	d := Value{kind: KindDict}
	for idx, k := range keys {
		pos := indexOf(d.keys, k)
		if pos >= 0 {
			d.items[pos] = values[idx]
			continue
		}
		d.keys = append(d.keys, k)
		d.items = append(d.items, values[idx])
	}
	return d
}

func copyValues(items []Value) []Value {
	if len(items) == 0 {
		return nil
	}
	out := make([]Value, len(items))
	copy(out, items)
	return out
}

// Kind returns the dynamic type of v
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean payload and whether v is a bool
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer payload and whether v is an int
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float payload and whether v is a float
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsString returns the string payload and whether v is a string
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Items returns a copy of the elements of a list, tuple or set, or the values of a dict
func (v Value) Items() []Value { return copyValues(v.items) }

// Keys returns a copy of the keys of a dict
func (v Value) Keys() []Value { return copyValues(v.keys) }

// Len returns the number of elements of a container or runes of a string
func (v Value) Len() int {
	switch v.kind {
	case KindString:
		return len([]rune(v.s))
	case KindList, KindTuple, KindSet, KindDict:
		return len(v.items)
	}
	return 0
}

// Truthy reports the truth value of v
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNone:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	default:
		return len(v.items) > 0
	}
}

// IsIntegral reports whether v is an int, a bool, or a float without a fractional part
func (v Value) IsIntegral() bool {
	switch v.kind {
	case KindInt, KindBool:
		return true
	case KindFloat:
		return !math.IsInf(v.f, 0) && !math.IsNaN(v.f) && v.f == math.Trunc(v.f) && math.Abs(v.f) < 1<<62
	}
	return false
}

// Normalize converts an integral float into an int. Every other value is returned unchanged.
// The checker has no floating point notion, so true division artifacts such as 4/2 render as 2.
func (v Value) Normalize() Value {
	if v.kind == KindFloat && v.IsIntegral() {
		return Int(int64(v.f))
	}
	return v
}

// Equal reports value equality. Numbers compare across bool, int and float.
func (v Value) Equal(o Value) bool {
	if isNumeric(v.kind) && isNumeric(o.kind) {
		if v.kind == KindFloat || o.kind == KindFloat {
			return toFloat(v) == toFloat(o)
		}
		return toInt(v) == toInt(o)
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindString:
		return v.s == o.s
	case KindList, KindTuple:
		if len(v.items) != len(o.items) {
			return false
		}
		for idx := range v.items {
			if !v.items[idx].Equal(o.items[idx]) {
				return false
			}
		}
		return true
	case KindSet:
		if len(v.items) != len(o.items) {
			return false
		}
		for _, it := range v.items {
			if !containsValue(o.items, it) {
				return false
			}
		}
		return true
	case KindDict:
		if len(v.keys) != len(o.keys) {
			return false
		}
		for idx, k := range v.keys {
			pos := indexOf(o.keys, k)
			if pos < 0 || !v.items[idx].Equal(o.items[pos]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders v the way a table cell shows it: strings raw, containers with quoted elements
func (v Value) String() string {
	if v.kind == KindString {
		return v.s
	}
	return v.Repr()
}

// Repr renders v with strings quoted
func (v Value) Repr() string {
	switch v.kind {
	case KindNone:
		return "None"
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		if v.IsIntegral() {
			return strconv.FormatInt(int64(v.f), 10)
		}
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return quote(v.s)
	case KindList:
		return "[" + joinRepr(v.items) + "]"
	case KindTuple:
		if len(v.items) == 1 {
			return "(" + v.items[0].Repr() + ",)"
		}
		return "(" + joinRepr(v.items) + ")"
	case KindSet:
		if len(v.items) == 0 {
			return "set()"
		}
		return "{" + joinRepr(v.items) + "}"
	case KindDict:
		parts := make([]string, len(v.keys))
		for idx, k := range v.keys {
			parts[idx] = k.Repr() + ": " + v.items[idx].Repr()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "<unknown>"
}

func joinRepr(items []Value) string {
	parts := make([]string, len(items))
	for idx, it := range items {
		parts[idx] = it.Repr()
	}
	return strings.Join(parts, ", ")
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return "'" + s + "'"
}

func indexOf(items []Value, v Value) int {
	for idx, it := range items {
		if it.Equal(v) {
			return idx
		}
	}
	return -1
}

func containsValue(items []Value, v Value) bool {
	return indexOf(items, v) >= 0
}

func isNumeric(k Kind) bool {
	return k == KindBool || k == KindInt || k == KindFloat
}

func toInt(v Value) int64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindFloat:
		return int64(v.f)
	}
	return v.i
}

func toFloat(v Value) float64 {
	if v.kind == KindFloat {
		return v.f
	}
	return float64(toInt(v))
}
