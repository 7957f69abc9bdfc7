// Package digest fingerprints a converted snapshot table so that identical
// traces can be recognized across runs.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/akr81/CounterExample2Sequence/internal/table"
)

// Pattern matches a digest string
var Pattern = regexp.MustCompile(`^sha256:[a-f0-9]{64}$`)

// Summary describes one conversion
type Summary struct {
	Digest    string   `json:"digest"` // sha256:hex of the canonical table JSON
	Dialect   string   `json:"dialect"`
	Snapshots int      `json:"snapshots"`
	Variables []string `json:"variables"`
}

// Compute returns "sha256:" + hex of the canonical JSON of t
func Compute(t table.Table) string {
	return Of(table.MarshalCanonical(t))
}

// Of hashes raw canonical bytes
func Of(canonical []byte) string {
	hash := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// Summarize builds the summary of a table
func Summarize(t table.Table, dialect string, variables []string) Summary {
	vars := make([]string, len(variables))
	copy(vars, variables)
	return Summary{
		Digest:    Compute(t),
		Dialect:   dialect,
		Snapshots: len(t.Rows),
		Variables: vars,
	}
}

// ToJSON serializes the summary to pretty-printed JSON
func (s Summary) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// WriteToFile writes the summary to path, creating parent directories if needed
func (s Summary) WriteToFile(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	jsonBytes, err := s.ToJSON()
	if err != nil {
		return err
	}

	return os.WriteFile(path, jsonBytes, 0644)
}
