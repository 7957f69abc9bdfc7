package store

import (
	"fmt"

	"github.com/akr81/CounterExample2Sequence/internal/expr"
	"github.com/akr81/CounterExample2Sequence/internal/table"

	"github.com/valyala/fastjson"
)

func decodeColumns(raw string) ([]string, error) {
	v, err := fastjson.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid columns: %w", err)
	}
	items, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("invalid columns: %w", err)
	}
	cols := make([]string, len(items))
	for idx, it := range items {
		b, err := it.StringBytes()
		if err != nil {
			return nil, fmt.Errorf("invalid column %d: %w", idx, err)
		}
		cols[idx] = string(b)
	}
	return cols, nil
}

// decodeRow parses a stored row object back into cells. Lists, tuples and
// sets all come back as lists, and strings holding integers as ints.
func decodeRow(cols []string, raw string) ([]table.Cell, error) {
	v, err := fastjson.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot row: %w", err)
	}
	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot row: %w", err)
	}

	index := make(map[string]int, len(cols))
	for idx, col := range cols {
		index[col] = idx
	}

	row := make([]table.Cell, len(cols))
	var visitErr error
	obj.Visit(func(key []byte, val *fastjson.Value) {
		idx, ok := index[string(key)]
		if !ok {
			if visitErr == nil {
				visitErr = fmt.Errorf("snapshot row has unknown column %q", key)
			}
			return
		}
		row[idx] = table.Cell{Value: toValue(val), Present: true}
	})
	if visitErr != nil {
		return nil, visitErr
	}
	return row, nil
}

func toValue(v *fastjson.Value) expr.Value {
	switch v.Type() {
	case fastjson.TypeNull:
		return expr.None()
	case fastjson.TypeTrue:
		return expr.Bool(true)
	case fastjson.TypeFalse:
		return expr.Bool(false)
	case fastjson.TypeNumber:
		if i, err := v.Int64(); err == nil {
			return expr.Int(i)
		}
		return expr.Float(v.GetFloat64())
	case fastjson.TypeString:
		return expr.String(string(v.GetStringBytes()))
	case fastjson.TypeArray:
		arr := v.GetArray()
		items := make([]expr.Value, len(arr))
		for idx, it := range arr {
			items[idx] = toValue(it)
		}
		return expr.List(items...)
	case fastjson.TypeObject:
		var keys, values []expr.Value
		v.GetObject().Visit(func(key []byte, val *fastjson.Value) {
			keys = append(keys, expr.String(string(key)))
			values = append(values, toValue(val))
		})
		return expr.Dict(keys, values)
	}
	return expr.None()
}
