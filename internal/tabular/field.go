package tabular

import "strings"

type fieldKind int

const (
	scalarField fieldKind = iota
	pathField
)

// Field describes one column extracted from an entry: either a top-level key
// or a path of nested keys.
type Field struct {
	kind     fieldKind
	segments []string
}

// ColumnSpec is the ordered list of fields projected from every entry.
type ColumnSpec []Field

// Scalar selects the top-level key name.
func Scalar(name string) Field {
	return Field{kind: scalarField, segments: []string{name}}
}

// Path selects a nested value, e.g. Path("main", "temp").
func Path(segments ...string) Field {
	return Field{kind: pathField, segments: append([]string(nil), segments...)}
}

// Column returns the raw column name. Path segments are joined with "."; the
// dots are turned into underscores later by NormalizeColumnName.
func (f Field) Column() string {
	return strings.Join(f.segments, ".")
}

// Resolve looks the field up in entry. A missing key, or a missing or
// non-object intermediate on a path, yields (nil, false).
func (f Field) Resolve(entry Payload) (any, bool) {
	if f.kind == scalarField {
		v, ok := entry[f.segments[0]]
		return v, ok
	}

	cur := entry
	last := len(f.segments) - 1
	for i, seg := range f.segments {
		v, ok := cur[seg]
		if !ok {
			return nil, false
		}
		if i == last {
			return v, true
		}
		next, ok := asObject(v)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// Project resolves every field of spec against entry, in order. Missing
// fields are present with a nil value.
func Project(entry Payload, spec ColumnSpec) *Row {
	row := NewRow()
	for _, f := range spec {
		v, _ := f.Resolve(entry)
		row.Set(f.Column(), v)
	}
	return row
}

// NormalizeColumnName replaces every "." in name with "_".
func NormalizeColumnName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}
