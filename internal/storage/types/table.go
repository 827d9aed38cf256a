package types

import (
	"fmt"
	"strings"
)

// Value is a nullable table cell.
//
// Two non-null values are equal iff their strings are equal. Null equals
// null and never equals a non-null value, including the empty string.
type Value struct {
	s     string
	valid bool
}

// String returns a non-null value.
func String(s string) Value {
	return Value{s: s, valid: true}
}

// Null returns the null value.
func Null() Value {
	return Value{}
}

// IsNull reports whether v is null.
func (v Value) IsNull() bool {
	return !v.valid
}

// Str returns the string and whether the value is non-null.
func (v Value) Str() (string, bool) {
	return v.s, v.valid
}

// Equal reports whether v and o are equal under the null policy above.
func (v Value) Equal(o Value) bool {
	return v.valid == o.valid && v.s == o.s
}

// String implements fmt.Stringer. Null renders as <null>.
func (v Value) String() string {
	if !v.valid {
		return "<null>"
	}
	return v.s
}

// Table is a row-oriented dataset with named columns.
type Table struct {
	Columns []string
	Rows    [][]Value
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Append adds a row. The row must be as wide as the column list.
func (t *Table) Append(row ...Value) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(row), len(t.Columns))
	}
	r := make([]Value, len(row))
	copy(r, row)
	t.Rows = append(t.Rows, r)
	return nil
}

// AppendStrings adds a row of non-null values.
func (t *Table) AppendStrings(row ...string) error {
	vals := make([]Value, len(row))
	for i, s := range row {
		vals[i] = String(s)
	}
	return t.Append(vals...)
}

// Validate checks that column names are unique and non-empty and that
// every row matches the column count.
func (t *Table) Validate() error {
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if c == "" {
			return fmt.Errorf("empty column name")
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	for i, r := range t.Rows {
		if len(r) != len(t.Columns) {
			return fmt.Errorf("row %d has %d values, table has %d columns", i, len(r), len(t.Columns))
		}
	}
	return nil
}

// Select returns a new table with the rows at the given positions.
// Rows are shared, not copied.
func (t *Table) Select(positions []int) *Table {
	out := NewTable(t.Columns...)
	out.Rows = make([][]Value, len(positions))
	for i, p := range positions {
		out.Rows[i] = t.Rows[p]
	}
	return out
}

// RowString renders a row for diagnostics and multiset comparisons.
func (t *Table) RowString(i int) string {
	parts := make([]string, len(t.Columns))
	for j, c := range t.Columns {
		parts[j] = c + "=" + t.Rows[i][j].String()
	}
	return strings.Join(parts, ",")
}

// Concat stacks tables. The result's columns are the union of all
// columns in first-seen order; cells a source table lacks are null.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	pos := make(map[string]int)
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := pos[c]; !ok {
				pos[c] = len(out.Columns)
				out.Columns = append(out.Columns, c)
			}
		}
	}

	for _, t := range tables {
		mapping := make([]int, len(t.Columns))
		for j, c := range t.Columns {
			mapping[j] = pos[c]
		}
		for _, r := range t.Rows {
			row := make([]Value, len(out.Columns))
			for j, v := range r {
				row[mapping[j]] = v
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}
