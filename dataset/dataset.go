package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ============================================================================
// DATASET — Rectangular table of named, typed columns
// ============================================================================
// Produced by the readers in this package (CSV, Excel) or built directly by
// callers. Values are one of: nil, float64, int, int64, bool, string,
// time.Time. A Dataset is never mutated after construction; WithColumn
// returns a new Dataset sharing the existing column slices.
// ============================================================================

var (
	// ErrEmpty is returned when a source has no header row.
	ErrEmpty = errors.New("dataset has no columns")
	// ErrUnsupportedFormat is returned by Load for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Column is a named, ordered sequence of values.
type Column struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
}

// Dataset is an ordered set of equally long columns.
type Dataset struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New builds a Dataset, rejecting duplicate names and ragged columns.
func New(columns ...Column) (*Dataset, error) {
	d := &Dataset{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := d.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i == 0 {
			d.rows = len(c.Values)
		} else if len(c.Values) != d.rows {
			return nil, fmt.Errorf("column %q has %d values, expected %d", c.Name, len(c.Values), d.rows)
		}
		d.index[c.Name] = len(d.columns)
		d.columns = append(d.columns, c)
	}
	return d, nil
}

// MustNew is New for fixtures and literals; it panics on error.
func MustNew(columns ...Column) *Dataset {
	d, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return d
}

// Len returns the row count.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return d.rows
}

// Width returns the column count.
func (d *Dataset) Width() int {
	if d == nil {
		return 0
	}
	return len(d.columns)
}

// Names returns column names in their original order.
func (d *Dataset) Names() []string {
	if d == nil {
		return nil
	}
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order. The slice must not be modified.
func (d *Dataset) Columns() []Column {
	if d == nil {
		return nil
	}
	return d.columns
}

// Column looks up a column by exact name.
func (d *Dataset) Column(name string) (*Column, bool) {
	if d == nil {
		return nil, false
	}
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return &d.columns[i], true
}

// Has reports whether a column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.Column(name)
	return ok
}

// WithColumn returns a new Dataset with c appended (or replacing a column of
// the same name in place). The receiver is left untouched.
func (d *Dataset) WithColumn(c Column) (*Dataset, error) {
	cols := make([]Column, 0, d.Width()+1)
	replaced := false
	for _, existing := range d.Columns() {
		if existing.Name == c.Name {
			cols = append(cols, c)
			replaced = true
			continue
		}
		cols = append(cols, existing)
	}
	if !replaced {
		cols = append(cols, c)
	}
	return New(cols...)
}

// Head returns a Dataset with at most n rows.
func (d *Dataset) Head(n int) *Dataset {
	if n >= d.Len() {
		return d
	}
	cols := make([]Column, len(d.columns))
	for i, c := range d.columns {
		cols[i] = Column{Name: c.Name, Values: c.Values[:n]}
	}
	return MustNew(cols...)
}

// Stringify renders a cell the way every text role sees it.
// nil becomes "", whole floats lose their fraction ("1001", not "1001.0").
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) && x < 1e15 && x > -1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return Stringify(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// ============================================================================
// CELL TYPING
// ============================================================================

// typeColumn converts raw text cells into typed values: a column whose
// non-empty cells all parse as numbers becomes float64, empty cells become
// nil, anything else stays a string.
func typeColumn(cells []string) []any {
	values := make([]any, len(cells))
	numeric := true
	seen := 0
	for _, c := range cells {
		if isNull(c) {
			continue
		}
		seen++
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			numeric = false
			break
		}
	}
	numeric = numeric && seen > 0

	for i, c := range cells {
		if isNull(c) {
			values[i] = nil
			continue
		}
		if numeric {
			f, _ := strconv.ParseFloat(c, 64)
			values[i] = f
			continue
		}
		values[i] = c
	}
	return values
}

func isNull(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "null", "NULL", "NaN", "nan", "N/A", "n/a":
		return true
	}
	return false
}

// fromRows builds a Dataset from a header and raw text rows. Short rows are
// padded with empty cells, long rows truncated.
func fromRows(headers []string, rows [][]string) (*Dataset, error) {
	if len(headers) == 0 {
		return nil, ErrEmpty
	}

	names := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		names[i] = name
	}

	cols := make([]Column, len(names))
	for j, name := range names {
		cells := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				cells[i] = strings.TrimSpace(row[j])
			}
		}
		cols[j] = Column{Name: name, Values: typeColumn(cells)}
	}
	return New(cols...)
}
