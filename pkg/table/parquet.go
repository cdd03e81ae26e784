package table

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

// ParquetOptions configures ToParquet
type ParquetOptions struct {
	// Compression is snappy (default), gzip, zstd, lz4, brotli or none
	Compression string
}

func parquetCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	}
	return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeCapability,
		"unsupported parquet compression %q", name)
}

// ToParquet writes the table as a Parquet file through Arrow, with column
// types inferred from every row. An empty path writes a temp file. The
// written path is returned.
func (t *Table) ToParquet(path string, opts ParquetOptions) (string, error) {
	codec, err := parquetCompression(opts.Compression)
	if err != nil {
		return "", err
	}
	mem := memory.DefaultAllocator
	rec, err := t.ToArrow(mem)
	if err != nil {
		return "", err
	}
	defer rec.Release()

	// the parquet writer closes its sink, so encode into memory first
	var buf bytes.Buffer
	props := parquet.NewWriterProperties(parquet.WithCompression(codec))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem))
	fw, err := pqarrow.NewFileWriter(rec.Schema(), &buf, props, arrowProps)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValue, "failed to create parquet writer")
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return "", errors.Wrap(err, errors.ErrorTypeValue, "failed to write parquet row group")
	}
	if err := fw.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValue, "failed to finish parquet file")
	}

	out, err := writeFile(path, ".parquet", false, func(w io.Writer) error {
		_, err := buf.WriteTo(w)
		return err
	})
	if err != nil {
		return "", err
	}
	wrote("parquet", out, int(rec.NumRows()))
	return out, nil
}

// FromParquet returns a table that reads a Parquet file
func FromParquet(path string) (*Table, error) {
	if err := checkLocal(path); err != nil {
		return nil, err
	}
	return &Table{src: sourceFunc(func() (cursor, error) {
		header, rows, err := readParquet(path)
		if err != nil {
			return nil, err
		}
		c, _ := (&memSource{header: header, rows: rows}).open()
		return counted("parquet", c), nil
	})}, nil
}

func readParquet(path string) ([]string, [][]any, error) {
	data, err := readAll(path)
	if err != nil {
		return nil, nil, err
	}
	pf, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, formatError("parquet", err)
	}
	defer pf.Close()

	mem := memory.DefaultAllocator
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 1024}, mem)
	if err != nil {
		return nil, nil, formatError("parquet", err)
	}
	tbl, err := fr.ReadTable(context.Background())
	if err != nil {
		return nil, nil, formatError("parquet", err)
	}
	defer tbl.Release()

	tr := array.NewTableReader(tbl, 1024)
	defer tr.Release()

	var rows [][]any
	for tr.Next() {
		rows = appendRecordRows(rows, tr.Record())
	}
	if err := tr.Err(); err != nil {
		return nil, nil, formatError("parquet", err)
	}
	return arrowHeader(tbl.Schema()), rows, nil
}
