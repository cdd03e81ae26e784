package table

import (
	"io"
	"sort"
	"strings"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

// SelectRows returns a new table with the rows for which pred is true. The
// receiver is unchanged.
func (t *Table) SelectRows(pred func(Row) bool) *Table {
	return &Table{src: transform(t.src, func(in []string) ([]string, rowFunc, error) {
		return in, func(row []any) ([]any, bool, error) {
			return row, pred(toRow(in, row)), nil
		}, nil
	})}
}

// RemoveNullRows drops rows holding nil in any of the named columns, or in
// any column when none are named
func (t *Table) RemoveNullRows(columns ...string) error {
	header, err := t.Columns()
	if err != nil {
		return err
	}
	if _, err := indexesOf(header, columns); err != nil {
		return err
	}
	names := cloneStrings(columns)
	t.src = transform(t.src, func(in []string) ([]string, rowFunc, error) {
		idx, err := indexesOf(in, names)
		if err != nil {
			return nil, nil, err
		}
		if len(names) == 0 {
			idx = make([]int, len(in))
			for i := range idx {
				idx[i] = i
			}
		}
		return in, func(row []any) ([]any, bool, error) {
			for _, j := range idx {
				if row[j] == nil {
					return nil, false, nil
				}
			}
			return row, true, nil
		}, nil
	})
	return nil
}

// Head keeps the first n rows
func (t *Table) Head(n int) error {
	if n < 0 {
		return errors.Newf(errors.ErrorTypeValue, "head count %d is negative", n)
	}
	inner := t.src
	t.src = sourceFunc(func() (cursor, error) {
		c, err := inner.open()
		if err != nil {
			return nil, err
		}
		return &headCursor{cursor: c, left: n}, nil
	})
	return nil
}

type headCursor struct {
	cursor
	left int
}

func (c *headCursor) Next() ([]any, error) {
	if c.left <= 0 {
		return nil, io.EOF
	}
	c.left--
	return c.cursor.Next()
}

// Tail keeps the last n rows
func (t *Table) Tail(n int) error {
	if n < 0 {
		return errors.Newf(errors.ErrorTypeValue, "tail count %d is negative", n)
	}
	t.src = buffered(t.src, func(header []string, rows [][]any) ([]string, [][]any, error) {
		if len(rows) > n {
			rows = rows[len(rows)-n:]
		}
		return header, rows, nil
	})
	return nil
}

// Chunk splits the table into in-memory tables of at most size rows
func (t *Table) Chunk(size int) ([]*Table, error) {
	if size <= 0 {
		return nil, errors.Newf(errors.ErrorTypeValue, "chunk size %d must be positive", size)
	}
	header, rows, err := drain(t.src)
	if err != nil {
		return nil, err
	}
	chunks := make([]*Table, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, &Table{src: &memSource{header: header, rows: rows[start:end]}})
	}
	return chunks, nil
}

// Sort orders rows by the named columns, or by every column in header order
// when none are named. The sort is stable and mixes types in the order
// nil, bool, numbers, strings, then anything else.
func (t *Table) Sort(columns []string, reverse bool) error {
	header, err := t.Columns()
	if err != nil {
		return err
	}
	if _, err := indexesOf(header, columns); err != nil {
		return err
	}
	names := cloneStrings(columns)
	t.src = buffered(t.src, func(in []string, rows [][]any) ([]string, [][]any, error) {
		keys := names
		if len(keys) == 0 {
			keys = in
		}
		idx, err := indexesOf(in, keys)
		if err != nil {
			return nil, nil, err
		}
		sortRows(rows, idx, reverse)
		return in, rows, nil
	})
	return nil
}

func sortRows(rows [][]any, idx []int, reverse bool) {
	sort.SliceStable(rows, func(a, b int) bool {
		for _, j := range idx {
			c := compareValues(rows[a][j], rows[b][j])
			if c == 0 {
				continue
			}
			if reverse {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Deduplicate collapses rows equal on keys, or on every column when keys is
// empty, keeping the first occurrence. Unless presorted, rows are sorted on
// the keys first and the result is in sorted order; presorted keeps
// first-occurrence order without sorting.
func (t *Table) Deduplicate(keys []string, presorted bool) error {
	header, err := t.Columns()
	if err != nil {
		return err
	}
	if _, err := indexesOf(header, keys); err != nil {
		return err
	}
	names := cloneStrings(keys)
	t.src = buffered(t.src, func(in []string, rows [][]any) ([]string, [][]any, error) {
		k := names
		if len(k) == 0 {
			k = in
		}
		idx, err := indexesOf(in, k)
		if err != nil {
			return nil, nil, err
		}
		if !presorted {
			sortRows(rows, idx, false)
		}
		seen := make(map[string]bool, len(rows))
		out := rows[:0]
		for _, row := range rows {
			key := rowKey(row, idx)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, row)
		}
		return in, out, nil
	})
	return nil
}

func rowKey(row []any, idx []int) string {
	parts := make([]string, len(idx))
	for i, j := range idx {
		parts[i] = valueKey(row[j])
	}
	return strings.Join(parts, "\x00")
}

// Concat appends the rows of tables. The header becomes the union of all
// headers in first-seen order; missing values are nil.
func (t *Table) Concat(tables ...*Table) error {
	inputs := []source{t.src}
	header, err := t.Columns()
	if err != nil {
		return err
	}
	for _, other := range tables {
		h, err := other.Columns()
		if err != nil {
			return err
		}
		for _, c := range h {
			if indexOf(header, c) < 0 {
				header = append(header, c)
			}
		}
		inputs = append(inputs, other.src)
	}

	mappers := make([]func([]string) rowFunc, len(inputs))
	for i := range mappers {
		mappers[i] = func(in []string) rowFunc {
			idx := make([]int, len(header))
			for j, h := range header {
				idx[j] = indexOf(in, h)
			}
			return func(row []any) ([]any, bool, error) {
				out := make([]any, len(header))
				for j, k := range idx {
					if k >= 0 {
						out[j] = row[k]
					}
				}
				return out, true, nil
			}
		}
	}
	t.src = sourceFunc(func() (cursor, error) {
		return &chainCursor{header: header, inputs: inputs, mappers: mappers}, nil
	})
	return nil
}

// Stack appends the rows of tables by position under the receiver's
// header. Short rows are padded with nil and long rows truncated.
func (t *Table) Stack(tables ...*Table) error {
	header, err := t.Columns()
	if err != nil {
		return err
	}
	inputs := []source{t.src}
	for _, other := range tables {
		inputs = append(inputs, other.src)
	}
	width := len(header)
	fit := func([]string) rowFunc {
		return func(row []any) ([]any, bool, error) {
			return fitRow(row, width), true, nil
		}
	}
	mappers := make([]func([]string) rowFunc, len(inputs))
	for i := range mappers {
		mappers[i] = fit
	}
	t.src = sourceFunc(func() (cursor, error) {
		return &chainCursor{header: header, inputs: inputs, mappers: mappers}, nil
	})
	return nil
}
