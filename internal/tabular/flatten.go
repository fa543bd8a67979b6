package tabular

import "sort"

// Record describes the array-of-objects field that is expanded into rows.
type Record struct {
	// Path is the entry key holding the sequence.
	Path string
	// Prefix is prepended to every element field.
	Prefix string
	// Keys fixes the column order of element fields. Fields not listed
	// follow in lexical order.
	Keys []string
}

// Flatten expands the record sequence of every entry into rows. See
// FlattenEntry.
func Flatten(entries []Payload, rec Record, spec ColumnSpec) []*Row {
	var rows []*Row
	for _, entry := range entries {
		rows = append(rows, FlattenEntry(entry, rec, spec)...)
	}
	return rows
}

// FlattenEntry emits one row per element of the sequence stored under
// rec.Path. Each row holds the element's top-level fields, prefixed,
// followed by the spec columns resolved against the entry itself. An absent,
// empty or non-sequence rec.Path yields no rows.
func FlattenEntry(entry Payload, rec Record, spec ColumnSpec) []*Row {
	items, ok := entry[rec.Path].([]any)
	if !ok || len(items) == 0 {
		return nil
	}

	meta := Project(entry, spec)
	rows := make([]*Row, 0, len(items))
	for _, item := range items {
		row := NewRow()
		if obj, ok := asObject(item); ok {
			flattenObject(row, rec.Prefix, obj, rec.Keys)
		} else {
			row.Set(rec.Prefix+"0", item)
		}
		row.Merge(meta)
		rows = append(rows, row)
	}
	return rows
}

// flattenObject writes the fields of obj into row. Nested objects stay whole
// in a single column.
func flattenObject(row *Row, prefix string, obj Payload, order []string) {
	for _, k := range orderedKeys(obj, order) {
		row.Set(prefix+k, obj[k])
	}
}

func orderedKeys(obj Payload, order []string) []string {
	keys := make([]string, 0, len(obj))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if _, ok := obj[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(obj)-len(keys))
	for k := range obj {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
