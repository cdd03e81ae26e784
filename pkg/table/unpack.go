package table

import (
	"io"
	"strconv"
)

// DefaultUnpackSampleSize is how many rows UnpackDict scans for keys when
// none are given
const DefaultUnpackSampleSize = 5000

// UnpackDictOptions configures UnpackDict
type UnpackDictOptions struct {
	// Keys fixes the keys to unpack. Empty means the union of keys seen in
	// the first SampleSize rows.
	Keys       []string
	SampleSize int

	// NoPrepend names new columns by bare key instead of prefix_key
	NoPrepend bool
	// PrependValue overrides the column name as the prefix
	PrependValue string

	// IncludeOriginal keeps the source column
	IncludeOriginal bool
	// Missing fills keys absent from a row
	Missing any
}

// UnpackDict expands a column of maps into one column per key, appended
// after the existing columns. Generated names that collide with existing
// columns fail with a conflict error.
func (t *Table) UnpackDict(column string, opts UnpackDictOptions) error {
	header, err := t.Columns()
	if err != nil {
		return err
	}
	if indexOf(header, column) < 0 {
		return missingColumn(column)
	}

	keys := cloneStrings(opts.Keys)
	if len(keys) == 0 {
		sample := opts.SampleSize
		if sample <= 0 {
			sample = DefaultUnpackSampleSize
		}
		keys, err = t.sampleKeys(column, sample)
		if err != nil {
			return err
		}
	}

	prefix := column
	if opts.PrependValue != "" {
		prefix = opts.PrependValue
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		if opts.NoPrepend {
			names[i] = k
		} else {
			names[i] = prefix + "_" + k
		}
	}
	base := baseHeader(header, column, opts.IncludeOriginal)
	if err := checkUnique(append(cloneStrings(base), names...)); err != nil {
		return err
	}

	t.src = transform(t.src, func(in []string) ([]string, rowFunc, error) {
		src := indexOf(in, column)
		if src < 0 {
			return nil, nil, missingColumn(column)
		}
		out := append(baseHeader(in, column, opts.IncludeOriginal), names...)
		return out, func(row []any) ([]any, bool, error) {
			nr := baseRow(row, src, opts.IncludeOriginal)
			m, _ := asMap(row[src])
			for _, k := range keys {
				v, ok := m[k]
				if !ok {
					v = opts.Missing
				}
				nr = append(nr, v)
			}
			return nr, true, nil
		}, nil
	})
	return nil
}

// sampleKeys collects map keys of column from the first n rows
func (t *Table) sampleKeys(column string, n int) ([]string, error) {
	c, err := t.src.open()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	idx := indexOf(c.Header(), column)
	var keys []string
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		row, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		m, ok := asMap(row[idx])
		if !ok {
			continue
		}
		for _, k := range sortedKeys(m) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}

// UnpackListOptions configures UnpackList
type UnpackListOptions struct {
	// Prefix names new columns prefix_0, prefix_1, ... and defaults to the
	// column name
	Prefix string
	// MaxColumns caps the number of new columns. Zero means no cap.
	MaxColumns int
	// IncludeOriginal keeps the source column
	IncludeOriginal bool
	// Missing fills positions past the end of a shorter list
	Missing any
}

// UnpackList expands a column of lists into one column per position,
// appended after the existing columns. The column count is the longest
// list in the table.
func (t *Table) UnpackList(column string, opts UnpackListOptions) error {
	values, err := t.Column(column)
	if err != nil {
		return err
	}
	header, err := t.Columns()
	if err != nil {
		return err
	}

	width := 0
	for _, v := range values {
		if l, ok := asList(v); ok && len(l) > width {
			width = len(l)
		}
	}
	if opts.MaxColumns > 0 && width > opts.MaxColumns {
		width = opts.MaxColumns
	}

	prefix := column
	if opts.Prefix != "" {
		prefix = opts.Prefix
	}
	names := make([]string, width)
	for i := range names {
		names[i] = prefix + "_" + strconv.Itoa(i)
	}
	base := baseHeader(header, column, opts.IncludeOriginal)
	if err := checkUnique(append(cloneStrings(base), names...)); err != nil {
		return err
	}

	t.src = transform(t.src, func(in []string) ([]string, rowFunc, error) {
		src := indexOf(in, column)
		if src < 0 {
			return nil, nil, missingColumn(column)
		}
		out := append(baseHeader(in, column, opts.IncludeOriginal), names...)
		return out, func(row []any) ([]any, bool, error) {
			nr := baseRow(row, src, opts.IncludeOriginal)
			l, _ := asList(row[src])
			for i := 0; i < width; i++ {
				if i < len(l) {
					nr = append(nr, l[i])
				} else {
					nr = append(nr, opts.Missing)
				}
			}
			return nr, true, nil
		}, nil
	})
	return nil
}

func baseHeader(header []string, column string, keep bool) []string {
	out := make([]string, 0, len(header))
	for _, h := range header {
		if keep || h != column {
			out = append(out, h)
		}
	}
	return out
}

func baseRow(row []any, src int, keep bool) []any {
	out := make([]any, 0, len(row))
	for i, v := range row {
		if keep || i != src {
			out = append(out, v)
		}
	}
	return out
}
