package tabular

// Table is an ordered set of rows whose schema is the union of the row
// columns.
type Table struct {
	rows []*Row
}

// NewTable returns a table holding rows.
func NewTable(rows ...*Row) *Table {
	return &Table{rows: rows}
}

// Append adds rows at the end.
func (t *Table) Append(rows ...*Row) {
	t.rows = append(t.rows, rows...)
}

// Concat appends every row of other.
func (t *Table) Concat(other *Table) {
	if other == nil {
		return
	}
	t.rows = append(t.rows, other.rows...)
}

// Rows returns the rows in order.
func (t *Table) Rows() []*Row {
	return t.rows
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Columns returns the union of row columns in first-seen order.
func (t *Table) Columns() []string {
	var cols []string
	seen := make(map[string]bool)
	for _, r := range t.rows {
		for _, c := range r.cols {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}
