// Package table provides a lazily evaluated tabular data structure for ETL
// work: construction from in-memory shapes and files, column and row
// transforms, nested-structure reshaping, and CSV, JSON, Avro, HTML, Arrow
// and Parquet codecs.
//
// A Table holds a source rather than rows. Transforms rebind the source to a
// wrapper that is evaluated each time the table is read, so a table built
// on a file or URL re-reads it on every pass until Materialize is called.
//
// # Basic Usage
//
//	t, err := table.New([]map[string]any{{"first": "Bob", "last": "Smith"}})
//	if err != nil {
//	    return err
//	}
//	if err := t.AddColumn("full", func(r table.Row) any {
//	    return r["first"].(string) + " " + r["last"].(string)
//	}); err != nil {
//	    return err
//	}
//	path, err := t.ToCSV("people.csv.gz", table.CSVOptions{})
//
// Tables are not safe for concurrent mutation.
package table

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

// Row is a view of one row keyed by column name. Absent keys read as nil.
type Row map[string]any

// Table is a handle over a lazily evaluated sequence of rows with an
// ordered, unique header.
type Table struct {
	src source
}

// Empty returns a table with no columns and no rows
func Empty() *Table {
	return &Table{src: &memSource{}}
}

// New builds a table from an in-memory value. Accepted shapes:
//   - []map[string]any or []Row: one row per map, header is the union of
//     keys in first-seen order with each map's new keys in lexical order
//   - [][]any or [][]string: the first element is the header row
//   - []any whose elements are all maps or all slices, treated as above
//   - *Table: shares the other table's source
//
// Empty slices of any accepted shape produce an empty table. nil and other
// shapes fail with a value error.
func New(data any) (*Table, error) {
	switch v := data.(type) {
	case nil:
		return nil, errors.New(errors.ErrorTypeValue, "could not create table from nil")
	case *Table:
		if v == nil {
			return nil, errors.New(errors.ErrorTypeValue, "could not create table from nil *Table")
		}
		return &Table{src: v.src}, nil
	case []Row:
		maps := make([]map[string]any, len(v))
		for i, r := range v {
			maps[i] = r
		}
		return fromMaps(maps, nil)
	case []map[string]any:
		return fromMaps(v, nil)
	case [][]any:
		return fromLists(v)
	case [][]string:
		lists := make([][]any, len(v))
		for i, row := range v {
			lists[i] = stringsToAny(row)
		}
		return fromLists(lists)
	case []any:
		return fromAny(v)
	}
	return nil, errors.Newf(errors.ErrorTypeValue, "could not create table from %T", data)
}

func fromAny(items []any) (*Table, error) {
	if len(items) == 0 {
		return Empty(), nil
	}
	if _, ok := asMap(items[0]); ok {
		maps := make([]map[string]any, len(items))
		for i, item := range items {
			m, ok := asMap(item)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeValue,
					"could not create table: element %d is %T, expected a map", i, item)
			}
			maps[i] = m
		}
		return fromMaps(maps, nil)
	}
	if _, ok := asList(items[0]); ok {
		lists := make([][]any, len(items))
		for i, item := range items {
			l, ok := asList(item)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeValue,
					"could not create table: element %d is %T, expected a list", i, item)
			}
			lists[i] = l
		}
		return fromLists(lists)
	}
	return nil, errors.Newf(errors.ErrorTypeValue, "could not create table from []%T", items[0])
}

// fromMaps aligns maps onto a header. Columns in prefix come first in the
// given order; the remaining keys follow in first-seen order.
func fromMaps(maps []map[string]any, prefix []string) (*Table, error) {
	header := cloneStrings(prefix)
	seen := make(map[string]bool, len(prefix))
	for _, h := range prefix {
		if seen[h] {
			return nil, duplicateColumn(h)
		}
		seen[h] = true
	}
	for _, m := range maps {
		for _, k := range sortedKeys(m) {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}

	rows := make([][]any, len(maps))
	for i, m := range maps {
		row := make([]any, len(header))
		for j, h := range header {
			row[j] = m[h]
		}
		rows[i] = row
	}
	return &Table{src: &memSource{header: header, rows: rows}}, nil
}

func fromLists(lists [][]any) (*Table, error) {
	if len(lists) == 0 {
		return Empty(), nil
	}
	header := make([]string, len(lists[0]))
	for i, h := range lists[0] {
		header[i] = ToString(h)
	}
	return FromRows(header, lists[1:])
}

// FromRows builds a table from a header and positional rows. Short rows
// are padded with nil and long rows truncated to the header width.
func FromRows(header []string, rows [][]any) (*Table, error) {
	if err := checkUnique(header); err != nil {
		return nil, err
	}
	h := cloneStrings(header)
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = fitRow(r, len(h))
	}
	return &Table{src: &memSource{header: h, rows: out}}, nil
}

// FromOrderedRows builds a table from maps with a caller-supplied column
// order. Keys not in header are appended in first-seen order.
func FromOrderedRows(header []string, rows []Row) (*Table, error) {
	maps := make([]map[string]any, len(rows))
	for i, r := range rows {
		maps[i] = r
	}
	return fromMaps(maps, header)
}

// FromColumns builds a table from parallel column slices. Shorter columns
// are padded with nil.
func FromColumns(names []string, columns [][]any) (*Table, error) {
	if len(names) != len(columns) {
		return nil, errors.Newf(errors.ErrorTypeValue,
			"got %d column names for %d columns", len(names), len(columns))
	}
	if err := checkUnique(names); err != nil {
		return nil, err
	}
	n := 0
	for _, c := range columns {
		if len(c) > n {
			n = len(c)
		}
	}
	rows := make([][]any, n)
	for i := range rows {
		row := make([]any, len(names))
		for j, c := range columns {
			if i < len(c) {
				row[j] = c[i]
			}
		}
		rows[i] = row
	}
	return &Table{src: &memSource{header: cloneStrings(names), rows: rows}}, nil
}

// Columns returns the header
func (t *Table) Columns() ([]string, error) {
	c, err := t.src.open()
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Header(), nil
}

// Each calls fn for every row in order, stopping at the first error
func (t *Table) Each(fn func(Row) error) error {
	c, err := t.src.open()
	if err != nil {
		return err
	}
	defer c.Close()

	header := c.Header()
	for {
		row, err := c.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(toRow(header, row)); err != nil {
			return err
		}
	}
}

// Rows evaluates the table into row maps
func (t *Table) Rows() ([]Row, error) {
	var rows []Row
	err := t.Each(func(r Row) error {
		rows = append(rows, r)
		return nil
	})
	return rows, err
}

// NumRows counts the rows
func (t *Table) NumRows() (int, error) {
	c, err := t.src.open()
	if err != nil {
		return 0, err
	}
	defer c.Close()

	n := 0
	for {
		_, err := c.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		n++
	}
}

// IsEmpty reports whether the table has no rows
func (t *Table) IsEmpty() (bool, error) {
	c, err := t.src.open()
	if err != nil {
		return false, err
	}
	defer c.Close()

	_, err = c.Next()
	if err == io.EOF {
		return true, nil
	}
	return false, err
}

// Row returns the row at index i
func (t *Table) Row(i int) (Row, error) {
	if i < 0 {
		return nil, errors.Newf(errors.ErrorTypeValue, "row index %d is negative", i)
	}
	c, err := t.src.open()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	header := c.Header()
	for n := 0; ; n++ {
		row, err := c.Next()
		if err == io.EOF {
			return nil, errors.Newf(errors.ErrorTypeNotFound, "row %d out of range", i).
				WithDetail("rows", n)
		}
		if err != nil {
			return nil, err
		}
		if n == i {
			return toRow(header, row), nil
		}
	}
}

// Column returns every value of the named column
func (t *Table) Column(name string) ([]any, error) {
	c, err := t.src.open()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	idx := indexOf(c.Header(), name)
	if idx < 0 {
		return nil, missingColumn(name)
	}
	var out []any
	for {
		row, err := c.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, row[idx])
	}
}

// First returns the first cell of the first row, or nil for an empty table
func (t *Table) First() (any, error) {
	c, err := t.src.open()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	row, err := c.Next()
	if err == io.EOF || (err == nil && len(row) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row[0], nil
}

// ColumnTypes returns the distinct Go type names found in a column, in
// first-seen order. nil values report as "<nil>".
func (t *Table) ColumnTypes(name string) ([]string, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	var types []string
	seen := map[string]bool{}
	for _, v := range values {
		tn := fmt.Sprintf("%T", v)
		if !seen[tn] {
			seen[tn] = true
			types = append(types, tn)
		}
	}
	return types, nil
}

// MaxWidth returns the length in runes of the longest rendered value in a
// column
func (t *Table) MaxWidth(name string) (int, error) {
	values, err := t.Column(name)
	if err != nil {
		return 0, err
	}
	width := 0
	for _, v := range values {
		if n := utf8.RuneCountInString(ToString(v)); n > width {
			width = n
		}
	}
	return width, nil
}

// Copy returns a table sharing this table's current source. Later
// transforms on either table do not affect the other.
func (t *Table) Copy() *Table {
	return &Table{src: t.src}
}

// Materialize evaluates the table once and keeps the rows in memory, so
// later reads do not touch the original file or URL again.
func (t *Table) Materialize() error {
	if _, ok := t.src.(*memSource); ok {
		return nil
	}
	header, rows, err := drain(t.src)
	if err != nil {
		return err
	}
	t.src = &memSource{header: header, rows: rows}
	return nil
}

func toRow(header []string, row []any) Row {
	r := make(Row, len(header))
	for i, h := range header {
		if i < len(row) {
			r[h] = row[i]
		} else {
			r[h] = nil
		}
	}
	return r
}

func fitRow(row []any, width int) []any {
	out := make([]any, width)
	copy(out, row)
	return out
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func checkUnique(header []string) error {
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if seen[h] {
			return duplicateColumn(h)
		}
		seen[h] = true
	}
	return nil
}

func duplicateColumn(name string) *errors.Error {
	return errors.New(errors.ErrorTypeConflict, "column already exists").WithDetail("column", name)
}

func missingColumn(name string) *errors.Error {
	return errors.New(errors.ErrorTypeNotFound, "column not found").WithDetail("column", name)
}

// indexesOf resolves names against header, failing on the first unknown name
func indexesOf(header []string, names []string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i] = indexOf(header, n)
		if idx[i] < 0 {
			return nil, missingColumn(n)
		}
	}
	return idx, nil
}
