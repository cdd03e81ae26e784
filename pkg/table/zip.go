package table

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

// zipEntry closes the entry reader and then the archive
type zipEntry struct {
	io.ReadCloser
	archive io.Closer
}

func (z *zipEntry) Close() error {
	err := z.ReadCloser.Close()
	if z.archive != nil {
		if cerr := z.archive.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// openZipCSV opens the first .csv entry of a zip archive
func openZipCSV(path string) (io.ReadCloser, error) {
	var (
		files   []*zip.File
		archive io.Closer
	)
	if isURL(path) {
		data, err := readAll(path)
		if err != nil {
			return nil, err
		}
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, formatError("zip", err)
		}
		files = zr.File
	} else {
		zr, err := zip.OpenReader(path)
		if err != nil {
			return nil, formatError("zip", err)
		}
		files = zr.File
		archive = zr
	}

	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f.Name), ".csv") {
			rc, err := f.Open()
			if err != nil {
				if archive != nil {
					archive.Close()
				}
				return nil, formatError("zip", err)
			}
			return &zipEntry{ReadCloser: rc, archive: archive}, nil
		}
	}
	if archive != nil {
		archive.Close()
	}
	return nil, errors.New(errors.ErrorTypeValue, "zip archive has no csv entry").WithDetail("path", path)
}

// ToZipCSV writes the table as a single CSV entry in a new zip archive.
// entryName defaults to the archive's base name with a .csv extension.
func (t *Table) ToZipCSV(archivePath, entryName string, opts CSVOptions) (string, error) {
	if entryName == "" {
		base := filepath.Base(archivePath)
		if archivePath == "" {
			base = "table.zip"
		}
		entryName = strings.TrimSuffix(base, filepath.Ext(base)) + ".csv"
	}
	var rows int
	out, err := writeFile(archivePath, ".zip", false, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		entry, err := zw.Create(entryName)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create zip entry")
		}
		if rows, err = t.encodeCSV(entry, opts, !opts.NoHeader); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish zip archive")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	wrote("zip", out, rows)
	return out, nil
}
