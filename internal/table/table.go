// Package table lays snapshot rows out as a table and writes it as CSV, JSON,
// YAML or aligned text.
package table

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/akr81/CounterExample2Sequence/internal/expr"
	"github.com/akr81/CounterExample2Sequence/internal/reconstruct"
	"github.com/akr81/CounterExample2Sequence/internal/state"
	"github.com/akr81/CounterExample2Sequence/internal/trace"
)

// ErrUnknownFormat is returned for an unsupported output format
var ErrUnknownFormat = errors.New("unknown table format")

// Format is an output encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat accepts a format name; empty means csv
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "text", "txt", "table":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q (want csv, json, yaml or text)", ErrUnknownFormat, s)
	}
}

// FormatForPath infers the format from an output file extension
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".txt":
		return FormatText
	default:
		return FormatCSV
	}
}

// Cell is one table value; Present is false where the variable was not yet bound
type Cell struct {
	Value   expr.Value
	Present bool
}

// Table is a rectangular view of a snapshot sequence
type Table struct {
	Columns []string
	Rows    [][]Cell
}

var (
	fullTraceColumns  = []string{"step", "loop", "process", "action", "file_line"}
	sparseDiffColumns = []string{"example", "step", "loop"}
)

// FromResult builds the table of a conversion. Integral floats are
// normalized to ints.
func FromResult(r *reconstruct.Result) Table {
	lead := fullTraceColumns
	if r.Dialect == trace.DialectSMV {
		lead = sparseDiffColumns
	}

	t := Table{Columns: append(append([]string{}, lead...), variableColumns(lead, r.Variables)...)}
	for _, snap := range r.Snapshots {
		row := make([]Cell, 0, len(t.Columns))
		for _, col := range lead {
			row = append(row, Cell{Value: contextValue(snap, col), Present: true})
		}
		for _, name := range r.Variables {
			v, ok := snap.Value(name)
			row = append(row, Cell{Value: v.Normalize(), Present: ok})
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// variableColumns names the variable columns. A variable whose name is taken
// by a lead column, or by an earlier renamed variable, gets a "var." prefix.
func variableColumns(lead, variables []string) []string {
	taken := make(map[string]bool, len(lead)+len(variables))
	for _, col := range lead {
		taken[col] = true
	}
	for _, name := range variables {
		taken[name] = true
	}

	cols := make([]string, len(variables))
	for idx, name := range variables {
		col := name
		for isLead(lead, col) || (col != name && taken[col]) {
			col = "var." + col
		}
		taken[col] = true
		cols[idx] = col
	}
	return cols
}

func isLead(lead []string, name string) bool {
	for _, col := range lead {
		if col == name {
			return true
		}
	}
	return false
}

func contextValue(snap state.Snapshot, col string) expr.Value {
	switch col {
	case "example":
		return expr.Int(int64(snap.Example))
	case "step":
		return expr.Int(int64(snap.Step))
	case "loop":
		return expr.Bool(snap.Loop)
	case "process":
		return expr.String(snap.Process)
	case "action":
		return expr.String(snap.Action)
	case "file_line":
		return expr.String(snap.FileLine)
	}
	return expr.None()
}

// Column returns the index of a column, or -1
func (t Table) Column(name string) int {
	for idx, col := range t.Columns {
		if col == name {
			return idx
		}
	}
	return -1
}

// Text renders a cell the way the CSV and text formats show it
func (c Cell) Text() string {
	if !c.Present {
		return ""
	}
	return c.Value.String()
}
