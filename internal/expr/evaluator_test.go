package expr

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestExec_BindsAssignments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		env  Vars
		key  string
		want Value
	}{
		{
			name: "unbound identifier becomes its own spelling",
			src:  "x = foo",
			env:  Vars{},
			key:  "x",
			want: String("foo"),
		},
		{
			name: "integer literal",
			src:  "x = 5",
			env:  Vars{},
			key:  "x",
			want: Int(5),
		},
		{
			name: "bound identifier copies its value",
			src:  "b = a",
			env:  Vars{"a": Int(5)},
			key:  "b",
			want: Int(5),
		},
		{
			name: "symbolic constant from a checker trace",
			src:  "DB_state = stop",
			env:  Vars{},
			key:  "DB_state",
			want: String("stop"),
		},
		{
			name: "arithmetic over bound names",
			src:  "count = count + 1",
			env:  Vars{"count": Int(2)},
			key:  "count",
			want: Int(3),
		},
		{
			name: "quoted string",
			src:  `msg = "hello"`,
			env:  Vars{},
			key:  "msg",
			want: String("hello"),
		},
		{
			name: "boolean keyword",
			src:  "flag = True",
			env:  Vars{},
			key:  "flag",
			want: Bool(true),
		},
		{
			name: "conditional expression",
			src:  "mode = fast if speed > 3 else slow",
			env:  Vars{"speed": Int(5)},
			key:  "mode",
			want: String("fast"),
		},
		{
			name: "augmented assignment",
			src:  "n *= 4",
			env:  Vars{"n": Int(3)},
			key:  "n",
			want: Int(12),
		},
		{
			name: "unparenthesized tuple",
			src:  "pair = 1, 2",
			env:  Vars{},
			key:  "pair",
			want: Tuple(Int(1), Int(2)),
		},
		{
			name: "comparison result",
			src:  "ok = a == ready",
			env:  Vars{"a": String("ready")},
			key:  "ok",
			want: Bool(true),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := Exec(tt.src, tt.env)
			if err != nil {
				t.Fatalf("Exec(%q) error = %v", tt.src, err)
			}
			if name != tt.key {
				t.Errorf("Exec() bound %q, want %q", name, tt.key)
			}
			got, ok := tt.env[tt.key]
			if !ok {
				t.Fatalf("%s not bound", tt.key)
			}
			if !got.Equal(tt.want) || got.Kind() != tt.want.Kind() {
				t.Errorf("%s = %s (%s), want %s (%s)", tt.key, got.Repr(), got.Kind(), tt.want.Repr(), tt.want.Kind())
			}
		})
	}
}

func TestExec_CopySemantics(t *testing.T) {
	env := Vars{"a": Int(5)}
	if _, err := Exec("b = a", env); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if _, err := Exec("a = 7", env); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	if got, _ := env["b"].AsInt(); got != 5 {
		t.Errorf("b = %d after rebinding a, want 5", got)
	}
}

func TestExec_BareExpressionBindsNothing(t *testing.T) {
	env := Vars{}
	name, err := Exec("(1)", env)
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if name != "" {
		t.Errorf("Exec() bound %q, want nothing", name)
	}
	if len(env) != 0 {
		t.Errorf("env = %v, want empty", env)
	}
}

func TestEval_Operators(t *testing.T) {
	scope := Vars{
		"n":    Int(7),
		"xs":   List(Int(1), Int(2), Int(3)),
		"rec":  Dict([]Value{String("id")}, []Value{Int(42)}),
		"name": String("agent"),
	}

	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "7"},
		{"(1 + 2) * 3", "9"},
		{"7 / 2", "3.5"},
		{"8 / 2", "4"},
		{"7 // 2", "3"},
		{"-7 // 2", "-4"},
		{"-7 % 3", "2"},
		{"2 ** 10", "1024"},
		{"2 ** -1", "0.5"},
		{"-2 ** 2", "-4"},
		{"not True", "False"},
		{"0 or idle", "idle"},
		{"1 and 0", "0"},
		{"1 < n <= 7", "True"},
		{"1 < n < 7", "False"},
		{"2 in xs", "True"},
		{"9 not in xs", "True"},
		{"xs[-1]", "3"},
		{"xs[1:]", "[2, 3]"},
		{"name[0:3]", "age"},
		{"rec['id']", "42"},
		{"rec.id", "42"},
		{"[1, 'a']", "[1, 'a']"},
		{"{1, 2, 1}", "{1, 2}"},
		{"(1,)", "(1,)"},
		{"{}", "{}"},
		{"'ab' * 2", "abab"},
		{"xs + [4]", "[1, 2, 3, 4]"},
		{"True + 1", "2"},
		{"None is None", "True"},
		{"'ent' in name", "True"},
		{"n if n > 3 else 0", "7"},
		{"9223372036854775806 + 1", "9223372036854775807"},
		{"-9223372036854775807 - 1", "-9223372036854775808"},
		{"3037000499 * 3037000499", "9223372030926249001"},
		{"2 ** 62", "4611686018427387904"},
		{"(-2) ** 63", "-9223372036854775808"},
		{"(-1) ** 1000001", "-1"},
		{"(-9223372036854775807 - 1) % -1", "0"},
		{"[0] * 3", "[0, 0, 0]"},
		{"'' * 9223372036854775807", ""},
		{"[] * 9223372036854775807", "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Eval(tt.src, scope)
			if err != nil {
				t.Fatalf("Eval(%q) error = %v", tt.src, err)
			}
			if got.String() != tt.want {
				t.Errorf("Eval(%q) = %s, want %s", tt.src, got.String(), tt.want)
			}
		})
	}
}

func TestExec_RejectsDisallowedSyntax(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"function call", "x = run(Agent)"},
		{"call without assignment", "run Agent()"},
		{"lambda", "f = lambda: 1"},
		{"import", "import os"},
		{"two statements", "x = 1; y = 2"},
		{"chained assignment", "x = y = 1"},
		{"subscript target", "xs[0] = 1"},
		{"attribute target", "a.b = 1"},
		{"promela and", "x = (a && b)"},
		{"unterminated string", `x = "abc`},
		{"empty", "   "},
		{"dangling operator", "x = 1 +"},
		{"for keyword", "x = for"},
		{"division by zero", "x = 1 / 0"},
		{"type mismatch", "x = 'a' - 1"},
		{"augmented unbound", "ghost += 1"},
		{"index out of range", "x = [1][3]"},
		{"unhashable key", "x = {[1]: 2}"},
		{"list repeated past the length limit", "x = [1, 2] * 9223372036854775807"},
		{"string repeated past the length limit", "x = 'ab' * 9223372036854775807"},
		{"count before list", "x = 9223372036854775807 * (1,)"},
		{"large but finite repetition", "x = [0] * 2000000"},
		{"addition overflow", "x = 9223372036854775807 + 1"},
		{"subtraction overflow", "x = -9223372036854775807 - 2"},
		{"multiplication overflow", "x = 3037000500 * 3037000500"},
		{"power overflow", "x = 2 ** 64"},
		{"floor division overflow", "x = (-9223372036854775807 - 1) // -1"},
		{"negation overflow", "x = -(-9223372036854775807 - 1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Vars{}
			_, err := Exec(tt.src, env)
			if err == nil {
				t.Fatalf("Exec(%q) expected error", tt.src)
			}
			if !errors.Is(err, ErrInvalidExpression) {
				t.Errorf("Exec(%q) error = %v, want ErrInvalidExpression", tt.src, err)
			}
			if len(env) != 0 {
				t.Errorf("failed Exec mutated env: %v", env)
			}
		})
	}
}

func TestExec_AugmentedOverflowKeepsBinding(t *testing.T) {
	for _, src := range []string{"n += 1", "n *= 2", "n **= 2"} {
		t.Run(src, func(t *testing.T) {
			env := Vars{"n": Int(math.MaxInt64)}
			_, err := Exec(src, env)
			if !errors.Is(err, ErrInvalidExpression) {
				t.Fatalf("Exec(%q) error = %v, want ErrInvalidExpression", src, err)
			}
			if got, _ := env["n"].AsInt(); got != math.MaxInt64 {
				t.Errorf("n = %d after failed Exec, want unchanged", got)
			}
		})
	}
}

func TestParse_DeepNesting(t *testing.T) {
	src := "x = "
	for i := 0; i < maxDepth+10; i++ {
		src += "("
	}
	src += "1"
	for i := 0; i < maxDepth+10; i++ {
		src += ")"
	}

	_, err := Parse(src)
	if !errors.Is(err, ErrInvalidExpression) {
		t.Errorf("Parse() error = %v, want ErrInvalidExpression", err)
	}
}

func TestValue_Normalize(t *testing.T) {
	tests := []struct {
		in   Value
		want Value
	}{
		{Float(3), Int(3)},
		{Float(2.5), Float(2.5)},
		{Int(4), Int(4)},
		{String("3"), String("3")},
	}

	for _, tt := range tests {
		got := tt.in.Normalize()
		if got.Kind() != tt.want.Kind() || !got.Equal(tt.want) {
			t.Errorf("Normalize(%s) = %s (%s), want %s", tt.in.Repr(), got.Repr(), got.Kind(), tt.want.Repr())
		}
	}
}

// Property: any identifier without a binding evaluates to a string equal to its own spelling
func TestProperty_UnboundIdentifierIsSymbolicConstant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("x = <ident> binds the identifier's spelling", prop.ForAll(
		func(ident string) bool {
			if IsKeyword(ident) {
				return true
			}
			env := Vars{}
			if _, err := Exec("x = "+ident, env); err != nil {
				t.Logf("Exec error for %q: %v", ident, err)
				return false
			}
			got, ok := env["x"].AsString()
			return ok && got == ident
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

// Property: an integer literal binds exactly that integer, and copying it preserves the value
func TestProperty_IntegerAssignmentAndCopy(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("a = n; b = a yields b == n", prop.ForAll(
		func(n int64) bool {
			env := Vars{}
			if _, err := Exec(fmt.Sprintf("a = %d", n), env); err != nil {
				return false
			}
			if _, err := Exec("b = a", env); err != nil {
				return false
			}
			got, ok := env["b"].AsInt()
			return ok && got == n
		},
		gen.Int64Range(-1_000_000, 1_000_000),
	))

	properties.Property("floor division and modulo reconstruct the dividend", prop.ForAll(
		func(a, b int64) bool {
			if b == 0 {
				return true
			}
			scope := Vars{"a": Int(a), "b": Int(b)}
			got, err := Eval("(a // b) * b + a % b", scope)
			if err != nil {
				return false
			}
			v, ok := got.AsInt()
			return ok && v == a
		},
		gen.Int64Range(-10_000, 10_000),
		gen.Int64Range(-100, 100),
	))

	properties.TestingRun(t)
}
