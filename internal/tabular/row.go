package tabular

import (
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ISOLayout is the layout used for datetime values when rows are encoded.
const ISOLayout = "2006-01-02T15:04:05.000"

// Row is an ordered mapping from column name to value.
type Row struct {
	cols []string
	vals map[string]any
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{vals: make(map[string]any)}
}

// Set stores v under col. A new column is appended at the end; an existing
// one keeps its position.
func (r *Row) Set(col string, v any) {
	if _, ok := r.vals[col]; !ok {
		r.cols = append(r.cols, col)
	}
	r.vals[col] = v
}

// Get returns the value stored under col.
func (r *Row) Get(col string) (any, bool) {
	v, ok := r.vals[col]
	return v, ok
}

// Has reports whether col is present (possibly with a nil value).
func (r *Row) Has(col string) bool {
	_, ok := r.vals[col]
	return ok
}

// Columns returns the column names in order.
func (r *Row) Columns() []string {
	return append([]string(nil), r.cols...)
}

// Len returns the number of columns.
func (r *Row) Len() int {
	return len(r.cols)
}

// Delete removes col.
func (r *Row) Delete(col string) {
	if _, ok := r.vals[col]; !ok {
		return
	}
	delete(r.vals, col)
	for i, c := range r.cols {
		if c == col {
			r.cols = append(r.cols[:i], r.cols[i+1:]...)
			break
		}
	}
}

// Rename moves the value of from to to, keeping the position of from. If to
// already exists its value is overwritten in place and from is dropped.
// It reports whether from was present.
func (r *Row) Rename(from, to string) bool {
	v, ok := r.vals[from]
	if !ok || from == to {
		return ok
	}
	if _, exists := r.vals[to]; exists {
		r.vals[to] = v
		r.Delete(from)
		return true
	}
	delete(r.vals, from)
	r.vals[to] = v
	for i, c := range r.cols {
		if c == from {
			r.cols[i] = to
			break
		}
	}
	return true
}

// Merge appends every column of other, in order.
func (r *Row) Merge(other *Row) {
	for _, c := range other.cols {
		r.Set(c, other.vals[c])
	}
}

// Clone returns a copy of the row. Values are shared.
func (r *Row) Clone() *Row {
	out := &Row{
		cols: append([]string(nil), r.cols...),
		vals: make(map[string]any, len(r.vals)),
	}
	for k, v := range r.vals {
		out.vals[k] = v
	}
	return out
}

// NormalizeColumns rewrites every column name with NormalizeColumnName.
// When two columns collapse onto the same name the first position is kept
// and the later value wins; the collapsed names are returned.
func (r *Row) NormalizeColumns() []string {
	var collided []string
	cols := make([]string, 0, len(r.cols))
	vals := make(map[string]any, len(r.vals))
	for _, c := range r.cols {
		n := NormalizeColumnName(c)
		if _, ok := vals[n]; ok {
			collided = append(collided, n)
		} else {
			cols = append(cols, n)
		}
		vals[n] = r.vals[c]
	}
	r.cols = cols
	r.vals = vals
	return collided
}

// Encode writes the row as a JSON object with the given columns, in order.
// Columns absent from the row are written as null.
func (r *Row) Encode(columns []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := encodeValue(r.vals[c])
		if err != nil {
			return nil, fmt.Errorf("encode column %q: %w", c, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes the row with its own column order.
func (r *Row) MarshalJSON() ([]byte, error) {
	return r.Encode(r.cols)
}

func encodeValue(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return []byte("null"), nil
	case time.Time:
		return json.Marshal(t.UTC().Format(ISOLayout))
	case *time.Time:
		if t == nil {
			return []byte("null"), nil
		}
		return json.Marshal(t.UTC().Format(ISOLayout))
	default:
		return json.Marshal(v)
	}
}
