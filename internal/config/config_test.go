package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akr81/CounterExample2Sequence/internal/plantuml"
	"github.com/akr81/CounterExample2Sequence/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.Dialect)
	assert.Equal(t, "variable_table.csv", cfg.Table.Output)
	assert.Equal(t, table.FormatCSV, cfg.TableFormat())
	assert.Equal(t, plantuml.DefaultServer, cfg.Diagram.Server)
	assert.Equal(t, 2.0, cfg.Diagram.Scale)
	assert.True(t, cfg.Diagram.Fetch)
	assert.False(t, cfg.Sparse.CarryOver)
	assert.Empty(t, cfg.Store.Path)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "ce2seq.yaml", `
dialect: smv
table:
  output: out/table.json
diagram:
  scale: 1.5
  timeout: 5s
  fetch: false
sparse:
  carry_over: true
store:
  path: runs.db
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "smv", cfg.Dialect)
	assert.Equal(t, table.FormatJSON, cfg.TableFormat())
	assert.Equal(t, 1.5, cfg.Diagram.Scale)
	assert.Equal(t, 5*time.Second, cfg.Diagram.Timeout)
	assert.False(t, cfg.Diagram.Fetch)
	assert.True(t, cfg.Sparse.CarryOver)
	assert.Equal(t, "runs.db", cfg.Store.Path)
	// untouched keys keep their defaults
	assert.Equal(t, "sequence_diagram.png", cfg.Diagram.Output)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "ce2seq.toml", `
dialect = "spin"
init = "model.pml"

[table]
format = "yaml"

[log]
level = "debug"
format = "json"
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "spin", cfg.Dialect)
	assert.Equal(t, "model.pml", cfg.Init)
	assert.Equal(t, table.FormatYAML, cfg.TableFormat())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "ce2seq.yaml", "dialect: smv\ntable:\n  output: a.csv\n")
	environ := []string{
		"CE2SEQ_DIALECT=spin",
		"CE2SEQ_TABLE_OUTPUT=b.txt",
		"CE2SEQ_DIAGRAM_TIMEOUT=2s",
		"CE2SEQ_SPARSE_CARRY_OVER=true",
		"CE2SEQ_STORE_PATH=/tmp/runs.db",
		"UNRELATED=1",
	}

	cfg, err := Load(path, environ)
	require.NoError(t, err)

	assert.Equal(t, "spin", cfg.Dialect)
	assert.Equal(t, "b.txt", cfg.Table.Output)
	assert.Equal(t, table.FormatText, cfg.TableFormat())
	assert.Equal(t, 2*time.Second, cfg.Diagram.Timeout)
	assert.True(t, cfg.Sparse.CarryOver)
	assert.Equal(t, "/tmp/runs.db", cfg.Store.Path)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		environ []string
		wantErr string
	}{
		{"unknown dialect", "c.yaml", "dialect: tla\n", nil, "unknown dialect"},
		{"unknown format", "c.yaml", "table:\n  format: xlsx\n", nil, "unknown table format"},
		{"bad scale", "c.yaml", "diagram:\n  scale: 0\n", nil, "diagram.scale"},
		{"bad log level", "c.toml", "[log]\nlevel = \"loud\"\n", nil, "unknown log level"},
		{"bad yaml", "c.yaml", "dialect: [\n", nil, "decode YAML"},
		{"unsupported extension", "c.ini", "x=1\n", nil, "unsupported config format"},
		{"bad env value", "c.yaml", "", []string{"CE2SEQ_DIAGRAM_SCALE=big"}, "parse env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := Load(path, tt.environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.True(t, errors.Is(err, ErrMissingFile))
}

func TestResolvePath(t *testing.T) {
	environ := []string{"CE2SEQ_CONFIG=/etc/ce2seq.toml"}
	assert.Equal(t, "flag.yaml", ResolvePath("flag.yaml", environ))
	assert.Equal(t, "/etc/ce2seq.toml", ResolvePath("", environ))
	assert.Empty(t, ResolvePath("", nil))
}
