// Package json provides JSON serialization backed by goccy/go-json, with
// streaming helpers that keep object keys in column order.
package json

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"

	gojson "github.com/goccy/go-json"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// GetDecoder returns a decoder that keeps numbers as literals so callers can
// tell integers from floats.
func GetDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// number is satisfied by the literal type produced under UseNumber
type number interface {
	String() string
	Int64() (int64, error)
	Float64() (float64, error)
}

// Normalize converts decoded number literals to int64 when integral and
// float64 otherwise, recursing into maps and slices.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	case map[string]interface{}:
		for k, e := range t {
			t[k] = Normalize(e)
		}
		return t
	case []interface{}:
		for i, e := range t {
			t[i] = Normalize(e)
		}
		return t
	default:
		return v
	}
}

// DecodeValue decodes the next JSON value from dec and normalizes it
func DecodeValue(dec *gojson.Decoder) (interface{}, error) {
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return Normalize(v), nil
}

// DecodeObject reads the next JSON object from dec and returns its keys in
// document order alongside the decoded values.
func DecodeObject(dec *gojson.Decoder) ([]string, map[string]interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(gojson.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected JSON object, found %v", tok)
	}

	keys := make([]string, 0, 8)
	values := make(map[string]interface{}, 8)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected object key, found %v", tok)
		}
		v, err := DecodeValue(dec)
		if err != nil {
			return nil, nil, fmt.Errorf("decoding %q: %w", key, err)
		}
		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}

// DecodeObjects reads either a JSON array of objects or a stream of
// whitespace-separated objects (line-delimited JSON), calling fn for each
// object with its keys in document order.
func DecodeObjects(r io.Reader, fn func(keys []string, values map[string]interface{}) error) error {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}

	dec := GetDecoder(br)
	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return err
		}
		for dec.More() {
			keys, values, err := DecodeObject(dec)
			if err != nil {
				return err
			}
			if err := fn(keys, values); err != nil {
				return err
			}
		}
		_, err := dec.Token()
		return err
	}

	for {
		keys, values, err := DecodeObject(dec)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(keys, values); err != nil {
			return err
		}
	}
}

// peekNonSpace returns the first non-whitespace byte without consuming it
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// StreamingEncoder writes a sequence of objects either as a JSON array or as
// line-delimited JSON.
type StreamingEncoder struct {
	writer      io.Writer
	firstRecord bool
	isArray     bool
	buf         *bytes.Buffer
}

// NewStreamingEncoder creates a new streaming encoder
func NewStreamingEncoder(w io.Writer, isArray bool) (*StreamingEncoder, error) {
	se := &StreamingEncoder{
		writer:      w,
		firstRecord: true,
		isArray:     isArray,
		buf:         GetBuffer(),
	}
	if isArray {
		if _, err := w.Write([]byte{'['}); err != nil {
			return nil, err
		}
	}
	return se, nil
}

// EncodeOrdered writes one object whose keys appear in the given order
func (se *StreamingEncoder) EncodeOrdered(keys []string, values []interface{}) error {
	se.buf.Reset()
	if se.isArray && !se.firstRecord {
		se.buf.WriteByte(',')
	}
	se.firstRecord = false

	se.buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			se.buf.WriteByte(',')
		}
		kb, err := gojson.Marshal(k)
		if err != nil {
			return err
		}
		se.buf.Write(kb)
		se.buf.WriteByte(':')

		vb, err := gojson.Marshal(values[i])
		if err != nil {
			return fmt.Errorf("encoding %q: %w", k, err)
		}
		se.buf.Write(vb)
	}
	se.buf.WriteByte('}')
	if !se.isArray {
		se.buf.WriteByte('\n')
	}

	_, err := se.writer.Write(se.buf.Bytes())
	return err
}

// Close finalizes the encoding
func (se *StreamingEncoder) Close() error {
	defer PutBuffer(se.buf)
	if se.isArray {
		_, err := se.writer.Write([]byte{']'})
		return err
	}
	return nil
}

// FormatFloat renders f the way the encoder would
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
