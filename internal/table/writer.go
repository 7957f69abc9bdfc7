package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/akr81/CounterExample2Sequence/internal/expr"

	"golang.org/x/text/width"
	"gopkg.in/yaml.v3"
)

// Write encodes t to w in the given format
func Write(w io.Writer, t Table, format Format) error {
	switch format {
	case FormatCSV, "":
		return WriteCSV(w, t)
	case FormatJSON:
		return WriteJSON(w, t)
	case FormatYAML:
		return WriteYAML(w, t)
	case FormatText:
		return WriteText(w, t)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteFile writes t to path, creating parent directories if needed
func WriteFile(path string, t Table, format Format) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, t, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes a header row and one row per snapshot; unbound cells are empty
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		record := make([]string, len(row))
		for idx, c := range row {
			record[idx] = c.Text()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes an indented array of objects with keys in column order
func WriteJSON(w io.Writer, t Table) error {
	_, err := w.Write(append(encodeRows(t, true), '\n'))
	return err
}

// MarshalCanonical encodes t as compact JSON with keys in column order. The
// output depends only on the table contents.
func MarshalCanonical(t Table) []byte {
	return encodeRows(t, false)
}

func encodeRows(t Table, indent bool) []byte {
	if len(t.Rows) == 0 {
		return []byte("[]")
	}
	var buf []byte
	buf = append(buf, '[')
	for r, row := range t.Rows {
		if r > 0 {
			buf = append(buf, ',')
		}
		if indent {
			buf = append(buf, "\n  "...)
		}
		buf = append(buf, '{')
		first := true
		for idx, c := range row {
			if !c.Present {
				continue
			}
			if !first {
				buf = append(buf, ',')
			}
			first = false
			if indent {
				buf = append(buf, "\n    "...)
			}
			key, _ := json.Marshal(t.Columns[idx])
			buf = append(buf, key...)
			buf = append(buf, ':')
			if indent {
				buf = append(buf, ' ')
			}
			buf = appendJSON(buf, c.Value)
		}
		if indent && !first {
			buf = append(buf, "\n  "...)
		}
		buf = append(buf, '}')
	}
	if indent {
		buf = append(buf, '\n')
	}
	return append(buf, ']')
}

// appendJSON encodes v; strings holding an integer are written as numbers
func appendJSON(buf []byte, v expr.Value) []byte {
	switch v.Kind() {
	case expr.KindNone:
		return append(buf, "null"...)
	case expr.KindBool:
		b, _ := v.AsBool()
		return strconv.AppendBool(buf, b)
	case expr.KindInt:
		i, _ := v.AsInt()
		return strconv.AppendInt(buf, i, 10)
	case expr.KindFloat:
		f, _ := v.AsFloat()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return strconv.AppendQuote(buf, v.String())
		}
		return strconv.AppendFloat(buf, f, 'g', -1, 64)
	case expr.KindString:
		s, _ := v.AsString()
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return strconv.AppendInt(buf, i, 10)
		}
		quoted, _ := json.Marshal(s)
		return append(buf, quoted...)
	case expr.KindDict:
		buf = append(buf, '{')
		keys, values := v.Keys(), v.Items()
		for idx, k := range keys {
			if idx > 0 {
				buf = append(buf, ',')
			}
			key, _ := json.Marshal(k.String())
			buf = append(buf, key...)
			buf = append(buf, ':')
			buf = appendJSON(buf, values[idx])
		}
		return append(buf, '}')
	default:
		buf = append(buf, '[')
		for idx, it := range v.Items() {
			if idx > 0 {
				buf = append(buf, ',')
			}
			buf = appendJSON(buf, it)
		}
		return append(buf, ']')
	}
}

// WriteYAML writes a sequence of mappings with keys in column order
func WriteYAML(w io.Writer, t Table) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range t.Rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for idx, c := range row {
			if !c.Present {
				continue
			}
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: t.Columns[idx]},
				yamlNode(c.Value))
		}
		doc.Content = append(doc.Content, m)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func yamlNode(v expr.Value) *yaml.Node {
	switch v.Kind() {
	case expr.KindNone:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case expr.KindBool:
		b, _ := v.AsBool()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
	case expr.KindInt:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: v.String()}
	case expr.KindFloat:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: v.String()}
	case expr.KindString:
		s, _ := v.AsString()
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: s}
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	case expr.KindDict:
		m := &yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle}
		keys, values := v.Keys(), v.Items()
		for idx, k := range keys {
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k.String()},
				yamlNode(values[idx]))
		}
		return m
	default:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, it := range v.Items() {
			seq.Content = append(seq.Content, yamlNode(it))
		}
		return seq
	}
}

// WriteText writes left-aligned columns padded by terminal display width
func WriteText(w io.Writer, t Table) error {
	widths := make([]int, len(t.Columns))
	for idx, col := range t.Columns {
		widths[idx] = DisplayWidth(col)
	}
	for _, row := range t.Rows {
		for idx, c := range row {
			if n := DisplayWidth(c.Text()); n > widths[idx] {
				widths[idx] = n
			}
		}
	}

	var sb strings.Builder
	writeLine := func(cells []string) {
		for idx, s := range cells {
			if idx > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(s)
			if idx < len(cells)-1 {
				sb.WriteString(strings.Repeat(" ", widths[idx]-DisplayWidth(s)))
			}
		}
		sb.WriteString("\n")
	}

	writeLine(t.Columns)
	rule := make([]string, len(t.Columns))
	for idx := range rule {
		rule[idx] = strings.Repeat("-", widths[idx])
	}
	writeLine(rule)
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for idx, c := range row {
			cells[idx] = c.Text()
		}
		writeLine(cells)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// DisplayWidth counts East Asian wide and fullwidth runes as two columns
func DisplayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// MarshalRow encodes one row as a compact JSON object, skipping unbound cells
func MarshalRow(columns []string, row []Cell) []byte {
	buf := []byte{'{'}
	first := true
	for idx, c := range row {
		if !c.Present {
			continue
		}
		if !first {
			buf = append(buf, ',')
		}
		first = false
		key, _ := json.Marshal(columns[idx])
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = appendJSON(buf, c.Value)
	}
	return append(buf, '}')
}
