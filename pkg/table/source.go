package table

import (
	"io"
)

// cursor is a single pass over a table's rows. Rows returned by Next are
// aligned with Header and owned by the caller.
type cursor interface {
	Header() []string
	Next() ([]any, error)
	Close() error
}

// source produces cursors. Every open starts from the first row, so a
// source may be read any number of times.
type source interface {
	open() (cursor, error)
}

// sourceFunc adapts a function to source
type sourceFunc func() (cursor, error)

func (f sourceFunc) open() (cursor, error) { return f() }

// memSource is a fully evaluated table
type memSource struct {
	header []string
	rows   [][]any
}

func (m *memSource) open() (cursor, error) {
	return &memCursor{header: m.header, rows: m.rows}, nil
}

type memCursor struct {
	header []string
	rows   [][]any
	pos    int
}

func (c *memCursor) Header() []string { return cloneStrings(c.header) }

func (c *memCursor) Next() ([]any, error) {
	if c.pos >= len(c.rows) {
		return nil, io.EOF
	}
	row := c.rows[c.pos]
	c.pos++
	out := make([]any, len(c.header))
	copy(out, row)
	return out, nil
}

func (c *memCursor) Close() error { return nil }

// rowFunc transforms one row. Returning keep=false drops the row.
type rowFunc func(row []any) (out []any, keep bool, err error)

// mapCursor passes each row of inner through fn
type mapCursor struct {
	inner  cursor
	header []string
	fn     rowFunc
}

func (c *mapCursor) Header() []string { return cloneStrings(c.header) }

func (c *mapCursor) Next() ([]any, error) {
	for {
		row, err := c.inner.Next()
		if err != nil {
			return nil, err
		}
		out, keep, err := c.fn(row)
		if err != nil {
			return nil, err
		}
		if keep {
			return out, nil
		}
	}
}

func (c *mapCursor) Close() error { return c.inner.Close() }

// transform wraps inner lazily. prep runs on every open with the inner
// header and returns the output header and the row function for that pass,
// so per-pass state belongs in prep's closure.
func transform(inner source, prep func(header []string) ([]string, rowFunc, error)) source {
	return sourceFunc(func() (cursor, error) {
		c, err := inner.open()
		if err != nil {
			return nil, err
		}
		header, fn, err := prep(c.Header())
		if err != nil {
			c.Close()
			return nil, err
		}
		return &mapCursor{inner: c, header: header, fn: fn}, nil
	})
}

// buffered wraps inner with a transform that needs every row at once.
// Evaluation is still deferred until the source is opened.
func buffered(inner source, fn func(header []string, rows [][]any) ([]string, [][]any, error)) source {
	return sourceFunc(func() (cursor, error) {
		header, rows, err := drain(inner)
		if err != nil {
			return nil, err
		}
		header, rows, err = fn(header, rows)
		if err != nil {
			return nil, err
		}
		return (&memSource{header: header, rows: rows}).open()
	})
}

// drain reads a whole source
func drain(s source) ([]string, [][]any, error) {
	c, err := s.open()
	if err != nil {
		return nil, nil, err
	}
	defer c.Close()

	header := c.Header()
	var rows [][]any
	for {
		row, err := c.Next()
		if err == io.EOF {
			return header, rows, nil
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
}

// chainCursor reads several cursors back to back, mapping each onto a
// shared header through its own row function
type chainCursor struct {
	header  []string
	inputs  []source
	mappers []func([]string) rowFunc
	cur     cursor
	fn      rowFunc
	idx     int
}

func (c *chainCursor) Header() []string { return cloneStrings(c.header) }

func (c *chainCursor) Next() ([]any, error) {
	for {
		if c.cur == nil {
			if c.idx >= len(c.inputs) {
				return nil, io.EOF
			}
			cur, err := c.inputs[c.idx].open()
			if err != nil {
				return nil, err
			}
			c.cur = cur
			c.fn = c.mappers[c.idx](cur.Header())
			c.idx++
		}
		row, err := c.cur.Next()
		if err == io.EOF {
			if err := c.cur.Close(); err != nil {
				return nil, err
			}
			c.cur = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		out, keep, err := c.fn(row)
		if err != nil {
			return nil, err
		}
		if keep {
			return out, nil
		}
	}
}

func (c *chainCursor) Close() error {
	if c.cur != nil {
		return c.cur.Close()
	}
	return nil
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
