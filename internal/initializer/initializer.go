// Package initializer pre-populates a variable environment from the
// initialized declarations of a Promela model, e.g. "int count = 0;".
package initializer

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/akr81/CounterExample2Sequence/internal/expr"
	"github.com/akr81/CounterExample2Sequence/internal/state"
)

// ErrMissingInput is returned when the model file cannot be read
var ErrMissingInput = errors.New("cannot read model file")

// numericTypes default to 0 when declared without an initializer
var numericTypes = map[string]bool{
	"bit": true, "bool": true, "byte": true, "short": true, "int": true, "unsigned": true, "pid": true,
}

// "int x = 1, y;" or "mtype:state s = idle;"; chan declarations are skipped
var declPattern = regexp.MustCompile(`^\s*(?:(?:local|show|hidden)\s+)*(bit|bool|byte|short|int|unsigned|pid|mtype(?::\w+)?)\s+([A-Za-z_][^;]*);`)

var blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)

// Parse evaluates every declaration in a model and returns the resulting
// environment. Declarations may refer to names declared before them.
func Parse(content []byte) (*state.Env, error) {
	env := state.NewEnv()
	text := blockComment.ReplaceAllStringFunc(string(content), func(c string) string {
		// keep line numbers stable
		return strings.Repeat("\n", strings.Count(c, "\n"))
	})

	for idx, line := range strings.Split(text, "\n") {
		if cut := strings.Index(line, "//"); cut >= 0 {
			line = line[:cut]
		}
		m := declPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		typ := m[1]
		for _, decl := range splitTopLevel(m[2]) {
			if err := declare(env, typ, decl); err != nil {
				return nil, fmt.Errorf("line %d: %w", idx+1, err)
			}
		}
	}
	return env, nil
}

// Load reads and parses a model file
func Load(path string) (*state.Env, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrMissingInput, path, err)
	}
	return Parse(content)
}

func declare(env *state.Env, typ, decl string) error {
	decl = strings.TrimSpace(decl)
	if decl == "" {
		return nil
	}
	if _, _, ok := strings.Cut(decl, "="); ok {
		_, err := expr.Exec(decl, env)
		return err
	}
	// arrays without initializer have no scalar value to show
	if strings.Contains(decl, "[") {
		return nil
	}
	if numericTypes[typ] {
		env.Bind(decl, expr.Int(0))
	}
	return nil
}

// splitTopLevel splits on commas outside brackets and quotes
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == quote {
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
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
