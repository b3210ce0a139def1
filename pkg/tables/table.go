// Package tables provides the in-memory table model shared by every
// gradekeep workflow, plus a CSV codec tolerant of the encodings and
// formatting artifacts found in real gradebook exports.
package tables

import (
	"fmt"

	"github.com/gradekeep/gradekeep/pkg/errors"
)

// Table is an ordered set of named columns over positional rows.
// Cells are strings; the empty string is the null cell.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string

	index map[string]int
}

// New creates an empty table with the given name and columns.
func New(name string, columns []string) *Table {
	t := &Table{
		Name:    name,
		Columns: append([]string(nil), columns...),
	}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		// First occurrence wins for duplicate headers
		if _, ok := t.index[c]; !ok {
			t.index[c] = i
		}
	}
}

// Column returns the positional index of a column by exact name.
func (t *Table) Column(name string) (int, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[name]
	return i, ok
}

// HasColumn reports whether the table has a column with the exact name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Get returns the cell at (row, column name), or "" when the column
// does not exist or the row is short.
func (t *Table) Get(row int, name string) string {
	i, ok := t.Column(name)
	if !ok || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][i]
}

// Set writes a cell at (row, column name). The column must exist.
func (t *Table) Set(row int, name, value string) error {
	i, ok := t.Column(name)
	if !ok {
		return errors.NewColumnError(t.Name, "existing", name)
	}
	if row < 0 || row >= len(t.Rows) {
		return errors.NewValidationError("row", row, fmt.Sprintf("out of range (table has %d rows)", len(t.Rows)))
	}
	for i >= len(t.Rows[row]) {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][i] = value
	return nil
}

// AddColumn appends a column and fills every existing row with fill.
// Adding a column that already exists is a no-op.
func (t *Table) AddColumn(name, fill string) {
	if t.HasColumn(name) {
		return
	}
	t.Columns = append(t.Columns, name)
	t.index[name] = len(t.Columns) - 1
	for i := range t.Rows {
		for len(t.Rows[i]) < len(t.Columns) {
			t.Rows[i] = append(t.Rows[i], fill)
		}
	}
}

// AppendRow adds a row, padding or truncating to the column count.
func (t *Table) AppendRow(cells []string) {
	row := make([]string, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// Row returns the raw row at i, padded to the column count.
func (t *Table) Row(i int) []string {
	if i < 0 || i >= len(t.Rows) {
		return nil
	}
	row := make([]string, len(t.Columns))
	copy(row, t.Rows[i])
	return row
}

// Select returns a new table containing only the named columns, in the
// given order. A missing column is an error.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		j, ok := t.Column(c)
		if !ok {
			return nil, errors.NewColumnError(t.Name, "selected", c)
		}
		idx[i] = j
	}
	out := New(t.Name, columns)
	for _, row := range t.Rows {
		cells := make([]string, len(idx))
		for i, j := range idx {
			if j < len(row) {
				cells[i] = row[j]
			}
		}
		out.Rows = append(out.Rows, cells)
	}
	return out, nil
}

// ReorderColumns returns a new table with columns in the given order.
// The order must be a permutation of the existing columns.
func (t *Table) ReorderColumns(columns []string) (*Table, error) {
	if len(columns) != len(t.Columns) {
		return nil, errors.NewValidationError("columns", len(columns),
			fmt.Sprintf("order has %d columns, table has %d", len(columns), len(t.Columns)))
	}
	out, err := t.Select(columns...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := New(t.Name, t.Columns)
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}
