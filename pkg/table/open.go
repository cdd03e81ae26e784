package table

import (
	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

// Open reads a table from a file or URL, choosing the codec from the
// extension after any compression suffix: .csv, .zip, .json, .jsonl,
// .ndjson, .avro, .parquet, .arrow, .html and .htm.
func Open(path string) (*Table, error) {
	switch formatExt(path) {
	case ".csv", ".tsv", ".zip":
		opts := CSVOptions{}
		if formatExt(path) == ".tsv" {
			opts.Delimiter = '\t'
		}
		return FromCSV(path, opts)
	case ".json", ".jsonl", ".ndjson":
		return FromJSON(path, JSONOptions{})
	case ".avro":
		return FromAvro(path)
	case ".parquet":
		return FromParquet(path)
	case ".arrow":
		return FromArrowFile(path)
	case ".html", ".htm":
		return FromHTML(path)
	}
	return nil, errors.New(errors.ErrorTypeCapability, "unsupported table format").
		WithDetail("path", path)
}

// Save writes the table to path, choosing the codec from the extension the
// same way Open does, and returns the written path.
func (t *Table) Save(path string) (string, error) {
	switch formatExt(path) {
	case ".csv":
		return t.ToCSV(path, CSVOptions{})
	case ".tsv":
		return t.ToCSV(path, CSVOptions{Delimiter: '\t'})
	case ".zip":
		return t.ToZipCSV(path, "", CSVOptions{})
	case ".json":
		return t.ToJSON(path, JSONOptions{})
	case ".jsonl", ".ndjson":
		return t.ToJSON(path, JSONOptions{LineDelimited: true})
	case ".avro":
		return t.ToAvro(path, AvroOptions{})
	case ".parquet":
		return t.ToParquet(path, ParquetOptions{})
	case ".arrow":
		return t.ToArrowFile(path)
	case ".html", ".htm":
		return t.ToHTML(path, HTMLOptions{})
	}
	return "", errors.New(errors.ErrorTypeCapability, "unsupported table format").
		WithDetail("path", path)
}
