package table

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-table/pkg/compression"
	"github.com/ajitpratap0/nebula-table/pkg/config"
	"github.com/ajitpratap0/nebula-table/pkg/errors"
	"github.com/ajitpratap0/nebula-table/pkg/logger"
	"github.com/ajitpratap0/nebula-table/pkg/metrics"
)

// output is a file opened for writing, wrapped in the compression codec
// implied by its path. Close flushes the codec and then closes the file.
type output struct {
	path string
	file *os.File
	io.WriteCloser
}

func (o *output) Close() error {
	cerr := o.WriteCloser.Close()
	ferr := o.file.Close()
	if cerr != nil {
		return errors.Wrap(cerr, errors.ErrorTypeFile, "failed to flush compressed output").
			WithDetail("path", o.path)
	}
	if ferr != nil {
		return errors.Wrap(ferr, errors.ErrorTypeFile, "failed to close output").
			WithDetail("path", o.path)
	}
	return nil
}

// createOutput opens path for writing. An empty path creates a temp file
// named with ext under the configured temp dir; the chosen path is returned.
func createOutput(path, ext string, appendMode bool) (*output, error) {
	var (
		f   *os.File
		err error
	)
	switch {
	case path == "":
		f, err = os.CreateTemp(config.Current().TempDirectory(), "table-*"+ext)
		if f != nil {
			path = f.Name()
		}
	case appendMode:
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	default:
		f, err = os.Create(path) //nolint:gosec
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output").
			WithDetail("path", path)
	}

	w, err := compression.NewWriter(f, compression.FromPath(path), compression.Default)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeCapability, "failed to create compressor").
			WithDetail("path", path)
	}
	return &output{path: path, file: f, WriteCloser: w}, nil
}

// writeFile writes data produced by fn to path through createOutput and
// returns the final path
func writeFile(path, ext string, appendMode bool, fn func(io.Writer) error) (string, error) {
	out, err := createOutput(path, ext, appendMode)
	if err != nil {
		return "", err
	}
	if err := fn(out); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return out.path, nil
}

// input is an opened file or HTTP body with decompression applied
type input struct {
	io.Reader
	closers []io.Closer
}

func (in *input) Close() error {
	var first error
	for i := len(in.closers) - 1; i >= 0; i-- {
		if err := in.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// isURL reports whether path is an http or https URL
func isURL(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// openRaw opens a local file or issues a GET for a URL, without
// decompression
func openRaw(path string) (io.ReadCloser, error) {
	if !isURL(path) {
		f, err := os.Open(path) //nolint:gosec
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "file not found").
					WithDetail("path", path)
			}
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").
				WithDetail("path", path)
		}
		return f, nil
	}

	settings := config.Current()
	ctx, cancel := context.WithCancel(context.Background())
	if settings.HTTP.Timeout > 0 {
		cancel()
		ctx, cancel = context.WithTimeout(context.Background(), settings.HTTP.Timeout)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, errors.ErrorTypeRequest, "invalid URL").WithDetail("url", path)
	}
	if settings.HTTP.UserAgent != "" {
		req.Header.Set("User-Agent", settings.HTTP.UserAgent)
	}
	logger.WithContext(context.WithValue(ctx, logger.SourceKey, path)).Debug("fetching table")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, errors.ErrorTypeRequest, "failed to fetch").WithDetail("url", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, errors.Newf(errors.ErrorTypeRequest, "fetch returned %s", resp.Status).
			WithDetail("url", path).
			WithDetail("status", resp.StatusCode)
	}
	return &cancelBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// openInput opens path and applies the decompression implied by its
// extension
func openInput(path string) (*input, error) {
	raw, err := openRaw(path)
	if err != nil {
		return nil, err
	}
	dec, err := compression.NewReader(raw, compression.FromPath(pathOf(path)))
	if err != nil {
		raw.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeValue, "failed to open compressed input").
			WithDetail("path", path)
	}
	return &input{Reader: dec, closers: []io.Closer{raw, dec}}, nil
}

// readAll reads a whole decompressed input
func readAll(path string) ([]byte, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read input").
			WithDetail("path", path)
	}
	return data, nil
}

// pathOf strips the query from URLs so extensions can be inspected
func pathOf(path string) string {
	if !isURL(path) {
		return path
	}
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	return u.Path
}

// formatExt returns the lowercase extension of path ignoring compression
func formatExt(path string) string {
	return strings.ToLower(filepath.Ext(compression.TrimExtension(pathOf(path))))
}

// checkLocal verifies a local input exists and is not empty. URLs are
// only checked when opened.
func checkLocal(path string) error {
	if isURL(path) {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(err, errors.ErrorTypeNotFound, "file not found").WithDetail("path", path)
		}
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").WithDetail("path", path)
	}
	if info.IsDir() {
		return errors.New(errors.ErrorTypeValue, "path is a directory").WithDetail("path", path)
	}
	if info.Size() == 0 {
		return errors.New(errors.ErrorTypeValue, "file is empty").WithDetail("path", path)
	}
	return nil
}

// countingCursor reports rows read to metrics when closed
type countingCursor struct {
	cursor
	format string
	rows   int
}

func (c *countingCursor) Next() ([]any, error) {
	row, err := c.cursor.Next()
	if err == nil {
		c.rows++
	}
	return row, err
}

func (c *countingCursor) Close() error {
	metrics.RowsRead.WithLabelValues(c.format).Add(float64(c.rows))
	return c.cursor.Close()
}

func counted(format string, c cursor) cursor {
	return &countingCursor{cursor: c, format: format}
}

// wrote logs and counts an encoded table
func wrote(format, path string, rows int) {
	metrics.RowsWritten.WithLabelValues(format).Add(float64(rows))
	logger.Get().Debug("wrote table",
		zap.String("format", format),
		zap.String("path", path),
		zap.Int("rows", rows))
}

func formatError(format string, err error) error {
	return errors.Wrap(err, errors.ErrorTypeValue, fmt.Sprintf("malformed %s input", format))
}
