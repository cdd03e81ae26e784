package table

import (
	"sort"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

type columnOptions struct {
	index   int
	replace bool
}

// ColumnOption configures AddColumn and RenameColumn
type ColumnOption func(*columnOptions)

// AtIndex places a new column at position i instead of appending it
func AtIndex(i int) ColumnOption {
	return func(o *columnOptions) { o.index = i }
}

// Replace allows the target column name to already exist. AddColumn then
// overwrites the existing values; RenameColumn drops the existing column.
func Replace() ColumnOption {
	return func(o *columnOptions) { o.replace = true }
}

func applyColumnOptions(opts []ColumnOption) columnOptions {
	o := columnOptions{index: -1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// valueFunc turns a constant or a func(Row) any into a per-row function
func valueFunc(value any) func(header []string, row []any) any {
	switch f := value.(type) {
	case func(Row) any:
		return func(header []string, row []any) any { return f(toRow(header, row)) }
	case func(Row) string:
		return func(header []string, row []any) any { return f(toRow(header, row)) }
	}
	return func([]string, []any) any { return value }
}

// AddColumn adds a column holding value, which is either a constant or a
// func(Row) any evaluated per row. Adding a name that exists fails with a
// conflict error unless Replace is given.
func (t *Table) AddColumn(name string, value any, opts ...ColumnOption) error {
	o := applyColumnOptions(opts)
	header, err := t.Columns()
	if err != nil {
		return err
	}
	if indexOf(header, name) >= 0 {
		if !o.replace {
			return duplicateColumn(name)
		}
		return t.FillColumn(name, value)
	}
	if o.index > len(header) || o.index < -1 {
		return errors.Newf(errors.ErrorTypeValue, "column index %d out of range", o.index).
			WithDetail("columns", len(header))
	}

	fn := valueFunc(value)
	t.src = transform(t.src, func(in []string) ([]string, rowFunc, error) {
		pos := o.index
		if pos < 0 || pos > len(in) {
			pos = len(in)
		}
		out := make([]string, 0, len(in)+1)
		out = append(out, in[:pos]...)
		out = append(out, name)
		out = append(out, in[pos:]...)
		return out, func(row []any) ([]any, bool, error) {
			v := fn(in, row)
			nr := make([]any, 0, len(row)+1)
			nr = append(nr, row[:pos]...)
			nr = append(nr, v)
			nr = append(nr, row[pos:]...)
			return nr, true, nil
		}, nil
	})
	return nil
}

// RemoveColumn drops the named columns
func (t *Table) RemoveColumn(names ...string) error {
	header, err := t.Columns()
	if err != nil {
		return err
	}
	if _, err := indexesOf(header, names); err != nil {
		return err
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	keep := make([]string, 0, len(header))
	for _, h := range header {
		if !drop[h] {
			keep = append(keep, h)
		}
	}
	t.src = project(t.src, keep)
	return nil
}

// Cut keeps only the named columns, in the given order
func (t *Table) Cut(names ...string) error {
	header, err := t.Columns()
	if err != nil {
		return err
	}
	if _, err := indexesOf(header, names); err != nil {
		return err
	}
	if err := checkUnique(names); err != nil {
		return err
	}
	t.src = project(t.src, cloneStrings(names))
	return nil
}

// MoveColumn moves a column to position index
func (t *Table) MoveColumn(name string, index int) error {
	header, err := t.Columns()
	if err != nil {
		return err
	}
	if indexOf(header, name) < 0 {
		return missingColumn(name)
	}
	if index < 0 || index >= len(header) {
		return errors.Newf(errors.ErrorTypeValue, "column index %d out of range", index).
			WithDetail("columns", len(header))
	}
	order := make([]string, 0, len(header))
	for _, h := range header {
		if h != name {
			order = append(order, h)
		}
	}
	order = append(order[:index], append([]string{name}, order[index:]...)...)
	t.src = project(t.src, order)
	return nil
}

// project selects and reorders columns by name. Names absent from the
// inner header read as nil.
func project(inner source, names []string) source {
	return transform(inner, func(in []string) ([]string, rowFunc, error) {
		idx := make([]int, len(names))
		for i, n := range names {
			idx[i] = indexOf(in, n)
		}
		return cloneStrings(names), func(row []any) ([]any, bool, error) {
			out := make([]any, len(idx))
			for i, j := range idx {
				if j >= 0 {
					out[i] = row[j]
				}
			}
			return out, true, nil
		}, nil
	})
}

// relabel swaps the header without touching row values
func relabel(inner source, header []string) source {
	return transform(inner, func(in []string) ([]string, rowFunc, error) {
		if len(in) != len(header) {
			return nil, nil, errors.Newf(errors.ErrorTypeValue,
				"header has %d columns, table has %d", len(header), len(in))
		}
		return cloneStrings(header), func(row []any) ([]any, bool, error) {
			return row, true, nil
		}, nil
	})
}

// RenameColumn renames a column. Renaming onto an existing name fails with
// a conflict error unless Replace is given, which drops the existing column.
func (t *Table) RenameColumn(oldName, newName string, opts ...ColumnOption) error {
	o := applyColumnOptions(opts)
	header, err := t.Columns()
	if err != nil {
		return err
	}
	if indexOf(header, oldName) < 0 {
		return missingColumn(oldName)
	}
	if oldName == newName {
		return nil
	}
	if indexOf(header, newName) >= 0 {
		if !o.replace {
			return duplicateColumn(newName)
		}
		if err := t.RemoveColumn(newName); err != nil {
			return err
		}
		header, err = t.Columns()
		if err != nil {
			return err
		}
	}
	renamed := cloneStrings(header)
	renamed[indexOf(renamed, oldName)] = newName
	t.src = relabel(t.src, renamed)
	return nil
}

// RenameColumns applies several renames at once. The resulting header must
// be unique.
func (t *Table) RenameColumns(mapping map[string]string) error {
	header, err := t.Columns()
	if err != nil {
		return err
	}
	olds := make([]string, 0, len(mapping))
	for k := range mapping {
		olds = append(olds, k)
	}
	sort.Strings(olds)
	if _, err := indexesOf(header, olds); err != nil {
		return err
	}
	renamed := cloneStrings(header)
	for i, h := range renamed {
		if n, ok := mapping[h]; ok {
			renamed[i] = n
		}
	}
	if err := checkUnique(renamed); err != nil {
		return err
	}
	t.src = relabel(t.src, renamed)
	return nil
}

// SetHeader replaces every column name. header must be unique and match
// the current width.
func (t *Table) SetHeader(header []string) error {
	current, err := t.Columns()
	if err != nil {
		return err
	}
	if len(current) != len(header) {
		return errors.Newf(errors.ErrorTypeValue,
			"header has %d columns, table has %d", len(header), len(current))
	}
	if err := checkUnique(header); err != nil {
		return err
	}
	t.src = relabel(t.src, cloneStrings(header))
	return nil
}

// UseHeaderRow promotes the first data row to the header
func (t *Table) UseHeaderRow() error {
	inner := t.src
	t.src = sourceFunc(func() (cursor, error) {
		c, err := inner.open()
		if err != nil {
			return nil, err
		}
		width := len(c.Header())
		first, err := c.Next()
		if err != nil {
			c.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeValue, "table has no row to use as header")
		}
		header := make([]string, width)
		for i := range header {
			header[i] = ToString(first[i])
		}
		if err := checkUnique(header); err != nil {
			c.Close()
			return nil, err
		}
		return &mapCursor{inner: c, header: header, fn: func(row []any) ([]any, bool, error) {
			return row, true, nil
		}}, nil
	})
	return nil
}

// FillColumn overwrites every value of a column with value, a constant or
// a func(Row) any
func (t *Table) FillColumn(name string, value any) error {
	return t.fill(name, value, false)
}

// FillNullColumn replaces nil values of a column with value, a constant or
// a func(Row) any
func (t *Table) FillNullColumn(name string, value any) error {
	return t.fill(name, value, true)
}

func (t *Table) fill(name string, value any, onlyNil bool) error {
	header, err := t.Columns()
	if err != nil {
		return err
	}
	if indexOf(header, name) < 0 {
		return missingColumn(name)
	}
	fn := valueFunc(value)
	t.src = transform(t.src, func(in []string) ([]string, rowFunc, error) {
		idx := indexOf(in, name)
		return in, func(row []any) ([]any, bool, error) {
			if !onlyNil || row[idx] == nil {
				row[idx] = fn(in, row)
			}
			return row, true, nil
		}, nil
	})
	return nil
}

// CoalesceColumns sets dest to the first value among dest (when it exists)
// and sources that is neither nil nor "". dest is appended when missing.
// With removeSources, the source columns other than dest are dropped.
func (t *Table) CoalesceColumns(dest string, sources []string, removeSources bool) error {
	header, err := t.Columns()
	if err != nil {
		return err
	}
	if _, err := indexesOf(header, sources); err != nil {
		return err
	}
	candidates := make([]string, 0, len(sources)+1)
	if indexOf(header, dest) >= 0 {
		candidates = append(candidates, dest)
	}
	for _, s := range sources {
		if s != dest {
			candidates = append(candidates, s)
		}
	}

	pick := func(r Row) any {
		for _, c := range candidates {
			v := r[c]
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			return v
		}
		return nil
	}
	if indexOf(header, dest) >= 0 {
		err = t.FillColumn(dest, pick)
	} else {
		err = t.AddColumn(dest, pick)
	}
	if err != nil {
		return err
	}

	if removeSources {
		var drop []string
		for _, s := range sources {
			if s != dest {
				drop = append(drop, s)
			}
		}
		if len(drop) > 0 {
			return t.RemoveColumn(drop...)
		}
	}
	return nil
}

// MapColumns renames columns whose name matches one of a target's aliases.
// Matching uses NormalizeColumnName unless exact is set. Targets are
// processed in lexical order.
func (t *Table) MapColumns(aliases map[string][]string, exact bool) error {
	header, err := t.Columns()
	if err != nil {
		return err
	}
	norm := func(s string) string {
		if exact {
			return s
		}
		return NormalizeColumnName(s)
	}

	targets := make([]string, 0, len(aliases))
	for k := range aliases {
		targets = append(targets, k)
	}
	sort.Strings(targets)

	renames := map[string]string{}
	for _, h := range header {
		nh := norm(h)
	targetLoop:
		for _, target := range targets {
			for _, alias := range aliases[target] {
				if nh == norm(alias) {
					if h != target {
						renames[h] = target
					}
					break targetLoop
				}
			}
		}
	}
	if len(renames) == 0 {
		return nil
	}
	return t.RenameColumns(renames)
}

// MapAndCoalesceColumns resolves each target from its aliases. When more
// than one alias (or the target itself) is present, they are coalesced into
// the target and the aliases removed; a single present alias is renamed.
func (t *Table) MapAndCoalesceColumns(aliases map[string][]string) error {
	targets := make([]string, 0, len(aliases))
	for k := range aliases {
		targets = append(targets, k)
	}
	sort.Strings(targets)

	for _, target := range targets {
		header, err := t.Columns()
		if err != nil {
			return err
		}
		var present []string
		if indexOf(header, target) >= 0 {
			present = append(present, target)
		}
		for _, a := range aliases[target] {
			if a != target && indexOf(header, a) >= 0 && indexOf(present, a) < 0 {
				present = append(present, a)
			}
		}

		switch {
		case len(present) > 1:
			if err := t.CoalesceColumns(target, present, true); err != nil {
				return err
			}
		case len(present) == 1 && present[0] != target:
			if err := t.RenameColumn(present[0], target); err != nil {
				return err
			}
		}
	}
	return nil
}
