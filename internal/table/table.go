package table

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Value is a single loosely-typed cell. The zero Value is null.
type Value struct {
	s     string
	valid bool
}

// Null returns a missing cell
func Null() Value {
	return Value{}
}

// String wraps s as a present cell (an empty string is still present)
func String(s string) Value {
	return Value{s: s, valid: true}
}

// IsNull reports whether the cell is missing
func (v Value) IsNull() bool {
	return !v.valid
}

// String returns the raw text, or "" for null
func (v Value) String() string {
	return v.s
}

// Float parses the cell as a number
func (v Value) Float() (float64, bool) {
	if !v.valid {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Kind is the inferred type of a column
type Kind int

const (
	// KindCategorical columns hold free text
	KindCategorical Kind = iota
	// KindNumeric columns hold only numbers (or nothing at all)
	KindNumeric
)

func (k Kind) String() string {
	if k == KindNumeric {
		return "numeric"
	}
	return "categorical"
}

// Table is an in-memory, column-named, row-ordered table
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New creates an empty table with the given columns
func New(columns ...string) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		t.addColumnName(c)
	}
	return t
}

func (t *Table) addColumnName(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	t.columns = append(t.columns, name)
	t.index[name] = len(t.columns) - 1
	return len(t.columns) - 1
}

// Columns returns a copy of the column names in order
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Width returns the number of columns
func (t *Table) Width() int {
	return len(t.columns)
}

// HasColumn reports whether name is a column
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AppendRow adds a row; values must line up with Columns()
func (t *Table) AppendRow(values ...Value) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.columns))
	}
	row := make([]Value, len(values))
	copy(row, values)
	t.rows = append(t.rows, row)
	return nil
}

// AppendRecord adds a row from a column→value map. Unknown keys become new
// columns (null for earlier rows); columns absent from rec are null.
func (t *Table) AppendRecord(rec map[string]Value, order ...string) {
	keys := order
	if len(keys) == 0 {
		for k := range rec {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		if _, ok := rec[k]; ok && !t.HasColumn(k) {
			t.addColumnName(k)
			for i := range t.rows {
				t.rows[i] = append(t.rows[i], Null())
			}
		}
	}
	row := make([]Value, len(t.columns))
	for k, v := range rec {
		if i, ok := t.index[k]; ok {
			row[i] = v
		}
	}
	t.rows = append(t.rows, row)
}

// Row returns a copy of row i
func (t *Table) Row(i int) []Value {
	out := make([]Value, len(t.columns))
	copy(out, t.rows[i])
	return out
}

// Get returns the cell at row i, column col (null if col is unknown)
func (t *Table) Get(i int, col string) Value {
	c, ok := t.index[col]
	if !ok || i < 0 || i >= len(t.rows) {
		return Null()
	}
	return t.rows[i][c]
}

// Set replaces the cell at row i, column col
func (t *Table) Set(i int, col string, v Value) error {
	c, ok := t.index[col]
	if !ok {
		return fmt.Errorf("unknown column %q", col)
	}
	if i < 0 || i >= len(t.rows) {
		return fmt.Errorf("row %d out of range", i)
	}
	t.rows[i][c] = v
	return nil
}

// Column returns a copy of the cells in col
func (t *Table) Column(col string) []Value {
	c, ok := t.index[col]
	if !ok {
		return nil
	}
	out := make([]Value, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[c]
	}
	return out
}

// NullCount returns how many cells in col are missing
func (t *Table) NullCount(col string) int {
	c, ok := t.index[col]
	if !ok {
		return 0
	}
	n := 0
	for _, row := range t.rows {
		if row[c].IsNull() {
			n++
		}
	}
	return n
}

// Kind infers the column type: numeric when every present cell parses as a
// number. A column with no present cells is numeric, matching how an
// all-empty CSV column loads as floats.
func (t *Table) Kind(col string) Kind {
	c, ok := t.index[col]
	if !ok {
		return KindCategorical
	}
	for _, row := range t.rows {
		v := row[c]
		if v.IsNull() {
			continue
		}
		if _, ok := v.Float(); !ok {
			return KindCategorical
		}
	}
	return KindNumeric
}

// Rename changes column names in place. Mapping keys that are not columns
// are ignored; renaming onto an existing column is an error.
func (t *Table) Rename(mapping map[string]string) error {
	for _, old := range t.Columns() {
		newName, ok := mapping[old]
		if !ok || newName == old {
			continue
		}
		if _, exists := t.index[newName]; exists {
			return fmt.Errorf("rename %q: column %q already exists", old, newName)
		}
		i := t.index[old]
		delete(t.index, old)
		t.columns[i] = newName
		t.index[newName] = i
	}
	return nil
}

// SetColumn adds (or overwrites) col with values computed per row
func (t *Table) SetColumn(col string, fn func(i int) Value) {
	c, exists := t.index[col]
	if !exists {
		c = t.addColumnName(col)
		for i := range t.rows {
			t.rows[i] = append(t.rows[i], Null())
		}
	}
	for i := range t.rows {
		t.rows[i][c] = fn(i)
	}
}

// DropColumns removes the named columns; unknown names are ignored
func (t *Table) DropColumns(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if t.HasColumn(n) {
			drop[n] = true
		}
	}
	if len(drop) == 0 {
		return
	}
	keep := make([]int, 0, len(t.columns))
	for i, c := range t.columns {
		if !drop[c] {
			keep = append(keep, i)
		}
	}
	t.project(keep)
}

// Select returns a new table holding only cols, in that order
func (t *Table) Select(cols ...string) (*Table, error) {
	idx := make([]int, 0, len(cols))
	for _, c := range cols {
		i, ok := t.index[c]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", c)
		}
		idx = append(idx, i)
	}
	out := t.Clone()
	out.project(idx)
	return out, nil
}

func (t *Table) project(idx []int) {
	cols := make([]string, len(idx))
	index := make(map[string]int, len(idx))
	for j, i := range idx {
		cols[j] = t.columns[i]
		index[cols[j]] = j
	}
	for r, row := range t.rows {
		nr := make([]Value, len(idx))
		for j, i := range idx {
			nr[j] = row[i]
		}
		t.rows[r] = nr
	}
	t.columns = cols
	t.index = index
}

// Clone returns a deep copy
func (t *Table) Clone() *Table {
	out := New(t.columns...)
	out.rows = make([][]Value, len(t.rows))
	for i, row := range t.rows {
		nr := make([]Value, len(row))
		copy(nr, row)
		out.rows[i] = nr
	}
	return out
}

// Take returns a new table with the rows at the given indices, in that order
func (t *Table) Take(indices []int) *Table {
	out := New(t.columns...)
	out.rows = make([][]Value, 0, len(indices))
	for _, i := range indices {
		nr := make([]Value, len(t.columns))
		copy(nr, t.rows[i])
		out.rows = append(out.rows, nr)
	}
	return out
}

// Filter returns the rows for which keep returns true, preserving order
func (t *Table) Filter(keep func(i int) bool) *Table {
	var idx []int
	for i := range t.rows {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return t.Take(idx)
}

// Head returns the first n rows
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.Take(idx)
}

// Sample draws min(n, Len()) rows uniformly without replacement.
// rng must not be nil.
func (t *Table) Sample(n int, rng *rand.Rand) *Table {
	if n > len(t.rows) {
		n = len(t.rows)
	}
	if n <= 0 {
		return New(t.columns...)
	}
	perm := rng.Perm(len(t.rows))
	return t.Take(perm[:n])
}

// DropDuplicates keeps the first row for each distinct value of key.
// Missing keys count as one shared value.
func (t *Table) DropDuplicates(key string) (*Table, error) {
	c, ok := t.index[key]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", key)
	}
	seen := make(map[string]bool, len(t.rows))
	seenNull := false
	return t.Filter(func(i int) bool {
		v := t.rows[i][c]
		if v.IsNull() {
			if seenNull {
				return false
			}
			seenNull = true
			return true
		}
		if seen[v.s] {
			return false
		}
		seen[v.s] = true
		return true
	}), nil
}

// Concat stacks tables row-wise. The result has the union of columns in
// first-seen order; cells for columns a table lacks are null.
func Concat(tables ...*Table) *Table {
	out := New()
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.columns {
			out.addColumnName(c)
		}
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		mapping := make([]int, len(t.columns))
		for i, c := range t.columns {
			mapping[i] = out.index[c]
		}
		for _, row := range t.rows {
			nr := make([]Value, len(out.columns))
			for i, v := range row {
				nr[mapping[i]] = v
			}
			out.rows = append(out.rows, nr)
		}
	}
	return out
}
