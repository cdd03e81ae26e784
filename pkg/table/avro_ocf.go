package table

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/s2"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

const (
	avroBlockRecords = 256
	avroBlockBytes   = 1 << 20
)

var avroMagic = []byte{'O', 'b', 'j', 1}

// avroBlockWriter writes an Avro object container file. Records are
// serialized with a goavro codec and each block is compressed here, so
// deflate runs at the requested level.
type avroBlockWriter struct {
	w         io.Writer
	codec     *goavro.Codec
	codecName string
	level     int
	sync      [16]byte

	block []byte
	count int
	buf   bytes.Buffer
	fw    *flate.Writer
}

func newAvroBlockWriter(w io.Writer, codec *goavro.Codec, schema, name string, level int, meta map[string][]byte) (*avroBlockWriter, error) {
	bw := &avroBlockWriter{w: w, codec: codec, codecName: name, level: level}
	if _, err := rand.Read(bw.sync[:]); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create avro sync marker")
	}

	headerCodec, err := goavro.NewCodec(`{"type":"map","values":"bytes"}`)
	if err != nil {
		return nil, err
	}
	header := map[string]any{
		"avro.schema": []byte(schema),
		"avro.codec":  []byte(name),
	}
	for k, v := range meta {
		header[k] = v
	}
	buf, err := headerCodec.BinaryFromNative(append([]byte(nil), avroMagic...), header)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValue, "failed to encode avro header")
	}
	buf = append(buf, bw.sync[:]...)
	if _, err := w.Write(buf); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to write avro header")
	}
	return bw, nil
}

// Append serializes one record, flushing the block when it is full
func (bw *avroBlockWriter) Append(record any) error {
	var err error
	bw.block, err = bw.codec.BinaryFromNative(bw.block, record)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValue, "failed to encode avro record")
	}
	bw.count++
	if bw.count >= avroBlockRecords || len(bw.block) >= avroBlockBytes {
		return bw.Flush()
	}
	return nil
}

// Flush writes the pending records as one block
func (bw *avroBlockWriter) Flush() error {
	if bw.count == 0 {
		return nil
	}
	data, err := bw.compress(bw.block)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValue, "failed to compress avro block").
			WithDetail("codec", bw.codecName)
	}
	head := binary.AppendVarint(nil, int64(bw.count))
	head = binary.AppendVarint(head, int64(len(data)))
	for _, part := range [][]byte{head, data, bw.sync[:]} {
		if _, err := bw.w.Write(part); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write avro block")
		}
	}
	bw.block = bw.block[:0]
	bw.count = 0
	return nil
}

func (bw *avroBlockWriter) compress(raw []byte) ([]byte, error) {
	switch bw.codecName {
	case "deflate":
		bw.buf.Reset()
		if bw.fw == nil {
			fw, err := flate.NewWriter(&bw.buf, deflateLevel(bw.level))
			if err != nil {
				return nil, err
			}
			bw.fw = fw
		} else {
			bw.fw.Reset(&bw.buf)
		}
		if _, err := bw.fw.Write(raw); err != nil {
			return nil, err
		}
		if err := bw.fw.Close(); err != nil {
			return nil, err
		}
		return bw.buf.Bytes(), nil
	case "snappy":
		// snappy blocks carry a big-endian CRC32 of the uncompressed data
		out := s2.EncodeSnappy(nil, raw)
		return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(raw)), nil
	}
	return raw, nil
}

// deflateLevel maps 0 and -1 to the deflate default
func deflateLevel(level int) int {
	if level <= 0 {
		return flate.DefaultCompression
	}
	return level
}
