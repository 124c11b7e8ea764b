package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
)

const (
	maxColumns   = 6
	maxCellWidth = 40
)

// preferred columns come first when an item carries them.
var preferred = []string{"id", "name", "username", "status", "date", "role"}

// Items prints a collection as a table, or as a JSON array in JSON mode.
func (p *Printer) Items(items []json.RawMessage) error {
	if p.json {
		if items == nil {
			items = []json.RawMessage{}
		}
		return p.JSON(items)
	}
	if len(items) == 0 {
		p.Info("No items.")
		return nil
	}

	objects := make([]map[string]any, 0, len(items))
	for _, raw := range items {
		obj, ok := decodeObject(raw)
		if !ok {
			obj = map[string]any{"value": strings.TrimSpace(string(raw))}
		}
		objects = append(objects, obj)
	}

	columns := Columns(objects)
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = strings.ToUpper(strings.ReplaceAll(c, "_", " "))
	}
	table := NewTable(p.out, headers)
	for _, obj := range objects {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = Cell(obj[c])
		}
		table.AddRow(row)
	}
	return table.Render()
}

// Item prints one object as FIELD/VALUE rows, or as JSON in JSON mode.
func (p *Printer) Item(raw json.RawMessage) error {
	if p.json {
		return p.JSON(raw)
	}
	obj, ok := decodeObject(raw)
	if !ok {
		_, err := fmt.Fprintln(p.out, strings.TrimSpace(string(raw)))
		return err
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := NewTable(p.out, []string{"FIELD", "VALUE"})
	for _, k := range keys {
		table.AddRow([]string{k, Cell(obj[k])})
	}
	return table.Render()
}

// Columns picks the table columns for a set of objects: well-known keys first,
// then the remaining scalar keys alphabetically, capped at a readable width.
func Columns(objects []map[string]any) []string {
	seen := map[string]bool{}
	for _, obj := range objects {
		for k, v := range obj {
			switch v.(type) {
			case map[string]any, []any:
				continue
			}
			seen[k] = true
		}
	}

	var cols []string
	for _, k := range preferred {
		if seen[k] {
			cols = append(cols, k)
		}
	}
	rest := make([]string, 0, len(seen))
	for k := range seen {
		if !slices.Contains(preferred, k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	cols = append(cols, rest...)
	if len(cols) > maxColumns {
		cols = cols[:maxColumns]
	}
	return cols
}

// Cell renders a decoded JSON value for a table cell.
func Cell(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s = val
	case float64, bool:
		s = fmt.Sprint(val)
	default:
		b, _ := json.Marshal(val)
		s = string(b)
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > maxCellWidth {
		s = string(r[:maxCellWidth-1]) + "…"
	}
	return s
}

func decodeObject(raw json.RawMessage) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
