package table

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/ajitpratap0/nebula-table/pkg/config"
	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

// CSVOptions configures the CSV codec
type CSVOptions struct {
	// Delimiter separates fields. Zero uses the configured default.
	Delimiter rune
	// NoHeader skips the header line when writing
	NoHeader bool
	// Header supplies column names when reading a file without a header
	// line; every line is then data
	Header []string
}

func (o CSVOptions) delimiter() rune {
	if o.Delimiter != 0 {
		return o.Delimiter
	}
	return config.Current().CSV.DelimiterRune()
}

// FromCSV returns a table that reads a CSV file, a compressed CSV file, a
// zip archive holding a .csv entry, or an http(s) URL. The input is read
// each time the table is evaluated. Values are strings.
func FromCSV(path string, opts CSVOptions) (*Table, error) {
	if err := checkLocal(path); err != nil {
		return nil, err
	}
	if opts.Header != nil {
		if err := checkUnique(opts.Header); err != nil {
			return nil, err
		}
	}
	open := func() (io.ReadCloser, error) { return openInput(path) }
	if formatExt(path) == ".zip" {
		open = func() (io.ReadCloser, error) { return openZipCSV(path) }
	}
	return &Table{src: &csvSource{openFn: open, opts: opts}}, nil
}

// FromCSVString parses CSV text held in memory
func FromCSVString(s string, opts CSVOptions) (*Table, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New(errors.ErrorTypeValue, "csv input is empty")
	}
	t := &Table{src: &csvSource{
		openFn: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(s)), nil },
		opts:   opts,
	}}
	return t, t.Materialize()
}

type csvSource struct {
	openFn func() (io.ReadCloser, error)
	opts   CSVOptions
}

func (s *csvSource) open() (cursor, error) {
	in, err := s.openFn()
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(in)
	r.Comma = s.opts.delimiter()
	r.FieldsPerRecord = -1

	header := cloneStrings(s.opts.Header)
	if s.opts.Header == nil {
		header, err = r.Read()
		if err == io.EOF {
			// blank lines only, as written for a table with no columns
			return counted("csv", &csvCursor{in: in, r: r, header: []string{}}), nil
		}
		if err != nil {
			in.Close()
			return nil, formatError("csv", err)
		}
		if len(header) > 0 {
			header[0] = strings.TrimPrefix(header[0], "\ufeff")
		}
		if err := checkUnique(header); err != nil {
			in.Close()
			return nil, err
		}
	}
	return counted("csv", &csvCursor{in: in, r: r, header: header}), nil
}

type csvCursor struct {
	in     io.Closer
	r      *csv.Reader
	header []string
}

func (c *csvCursor) Header() []string { return cloneStrings(c.header) }

func (c *csvCursor) Next() ([]any, error) {
	rec, err := c.r.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, formatError("csv", err)
	}
	row := make([]any, len(c.header))
	for i := range row {
		if i < len(rec) {
			row[i] = rec[i]
		} else {
			row[i] = ""
		}
	}
	return row, nil
}

func (c *csvCursor) Close() error { return c.in.Close() }

// encodeCSV writes the table as CSV and returns the row count
func (t *Table) encodeCSV(w io.Writer, opts CSVOptions, header bool) (int, error) {
	c, err := t.src.open()
	if err != nil {
		return 0, err
	}
	defer c.Close()

	cw := csv.NewWriter(w)
	cw.Comma = opts.delimiter()
	if header {
		if err := cw.Write(c.Header()); err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to write csv header")
		}
	}

	n := 0
	var rec []string
	for {
		row, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		rec = rec[:0]
		for _, v := range row {
			rec = append(rec, ToString(v))
		}
		if err := cw.Write(rec); err != nil {
			return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to write csv row").WithDetail("row", n)
		}
		n++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to flush csv")
	}
	return n, nil
}

// ToCSV writes the table to path, compressed when the extension asks for
// it. An empty path writes a temp file. The written path is returned.
func (t *Table) ToCSV(path string, opts CSVOptions) (string, error) {
	var rows int
	out, err := writeFile(path, ".csv", false, func(w io.Writer) error {
		var err error
		rows, err = t.encodeCSV(w, opts, !opts.NoHeader)
		return err
	})
	if err != nil {
		return "", err
	}
	wrote("csv", out, rows)
	return out, nil
}

// AppendCSV appends the rows, without a header line, to an existing CSV
// file. A missing file is created with a header.
func (t *Table) AppendCSV(path string, opts CSVOptions) error {
	header := !opts.NoHeader && checkLocal(path) != nil
	var rows int
	_, err := writeFile(path, ".csv", true, func(w io.Writer) error {
		var err error
		rows, err = t.encodeCSV(w, opts, header)
		return err
	})
	if err != nil {
		return err
	}
	wrote("csv", path, rows)
	return nil
}

// ToCSVString renders the table as CSV text
func (t *Table) ToCSVString(opts CSVOptions) (string, error) {
	var buf bytes.Buffer
	if _, err := t.encodeCSV(&buf, opts, !opts.NoHeader); err != nil {
		return "", err
	}
	return buf.String(), nil
}
