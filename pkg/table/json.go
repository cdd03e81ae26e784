package table

import (
	"io"

	"github.com/ajitpratap0/nebula-table/pkg/json"
)

// JSONOptions configures the JSON codec
type JSONOptions struct {
	// LineDelimited writes one object per line instead of a JSON array.
	// Readers detect the layout from the input.
	LineDelimited bool
}

// FromJSON returns a table that reads a JSON array of objects or
// line-delimited objects from a file or URL. The header is the union of
// object keys in document order. Integral numbers decode to int64, other
// numbers to float64.
func FromJSON(path string, opts JSONOptions) (*Table, error) {
	if err := checkLocal(path); err != nil {
		return nil, err
	}
	return &Table{src: &jsonSource{path: path}}, nil
}

type jsonSource struct {
	path string
}

func (s *jsonSource) open() (cursor, error) {
	in, err := openInput(s.path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	header, rows, err := decodeJSONRows(in)
	if err != nil {
		return nil, err
	}
	c, _ := (&memSource{header: header, rows: rows}).open()
	return counted("json", c), nil
}

func decodeJSONRows(r io.Reader) ([]string, [][]any, error) {
	var header []string
	index := map[string]int{}
	var objects []map[string]any
	err := json.DecodeObjects(r, func(keys []string, values map[string]any) error {
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(header)
				header = append(header, k)
			}
		}
		objects = append(objects, values)
		return nil
	})
	if err != nil {
		return nil, nil, formatError("json", err)
	}
	rows := make([][]any, len(objects))
	for i, obj := range objects {
		row := make([]any, len(header))
		for k, v := range obj {
			row[index[k]] = v
		}
		rows[i] = row
	}
	return header, rows, nil
}

// ToJSON writes the table as JSON with object keys in column order. An
// empty path writes a temp file. The written path is returned.
func (t *Table) ToJSON(path string, opts JSONOptions) (string, error) {
	ext := ".json"
	if opts.LineDelimited {
		ext = ".jsonl"
	}
	var rows int
	out, err := writeFile(path, ext, false, func(w io.Writer) error {
		var err error
		rows, err = t.encodeJSON(w, opts)
		return err
	})
	if err != nil {
		return "", err
	}
	wrote("json", out, rows)
	return out, nil
}

func (t *Table) encodeJSON(w io.Writer, opts JSONOptions) (int, error) {
	c, err := t.src.open()
	if err != nil {
		return 0, err
	}
	defer c.Close()

	enc, err := json.NewStreamingEncoder(w, !opts.LineDelimited)
	if err != nil {
		return 0, err
	}
	header := c.Header()
	n := 0
	for {
		row, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		if err := enc.EncodeOrdered(header, row); err != nil {
			return n, formatError("json", err)
		}
		n++
	}
	return n, enc.Close()
}

// MaterializeToFile writes the rows to a line-delimited JSON file and
// rebinds the table to read from it, so the original source is not read
// again and no rows are held between reads. An empty path writes a temp
// file. The file path is returned.
func (t *Table) MaterializeToFile(path string) (string, error) {
	header, err := t.Columns()
	if err != nil {
		return "", err
	}
	out, err := t.ToJSON(path, JSONOptions{LineDelimited: true})
	if err != nil {
		return "", err
	}
	t.src = project(&jsonSource{path: out}, header)
	return out, nil
}
