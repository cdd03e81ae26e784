package table

import (
	"bytes"
	"io"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
	"github.com/ajitpratap0/nebula-table/pkg/models"
)

func arrowType(ft models.FieldType) arrow.DataType {
	switch ft {
	case models.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case models.TypeInteger:
		return arrow.PrimitiveTypes.Int64
	case models.TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case models.TypeBytes:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

// arrowSchema converts an inferred schema. Every field is nullable.
func arrowSchema(s models.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = arrow.Field{Name: f.Name, Type: arrowType(f.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// buildRecord encodes rows into a single record batch typed by inference
func buildRecord(mem memory.Allocator, header []string, rows [][]any) (arrow.Record, error) {
	schema := inferSchema("Table", header, rows, len(rows))
	b := array.NewRecordBuilder(mem, arrowSchema(schema))
	defer b.Release()

	for n, row := range rows {
		for j, f := range schema.Fields {
			v, err := coerce(f.Type, row[j])
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeValue, "cannot encode arrow value").
					WithDetail("column", f.Name).
					WithDetail("row", n)
			}
			if err := appendArrowValue(b.Field(j), v); err != nil {
				return nil, err
			}
		}
	}
	return b.NewRecord(), nil
}

func appendArrowValue(builder array.Builder, v any) error {
	if v == nil {
		builder.AppendNull()
		return nil
	}
	switch b := builder.(type) {
	case *array.BooleanBuilder:
		b.Append(v.(bool))
	case *array.Int64Builder:
		b.Append(v.(int64))
	case *array.Float64Builder:
		b.Append(v.(float64))
	case *array.StringBuilder:
		b.Append(v.(string))
	case *array.BinaryBuilder:
		b.Append(v.([]byte))
	default:
		return errors.Newf(errors.ErrorTypeCapability, "unsupported arrow builder %T", builder)
	}
	return nil
}

// arrowValue reads one cell of an Arrow array as a plain Go value
func arrowValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		if v := a.Value(i); v <= math.MaxInt64 {
			return int64(v)
		}
		return a.ValueStr(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return bytes.Clone(a.Value(i))
	case *array.LargeBinary:
		return bytes.Clone(a.Value(i))
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit)
	}
	return arr.ValueStr(i)
}

// appendRecordRows converts a record batch into positional rows
func appendRecordRows(rows [][]any, rec arrow.Record) [][]any {
	cols := rec.Columns()
	for i := 0; i < int(rec.NumRows()); i++ {
		row := make([]any, len(cols))
		for j, col := range cols {
			row[j] = arrowValue(col, i)
		}
		rows = append(rows, row)
	}
	return rows
}

func arrowHeader(schema *arrow.Schema) []string {
	fields := schema.Fields()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}
	return header
}

// ToArrow evaluates the table into a single Arrow record batch with types
// inferred from every row. Nested values are JSON strings. The caller owns
// the record and must Release it.
func (t *Table) ToArrow(mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	header, rows, err := drain(t.src)
	if err != nil {
		return nil, err
	}
	return buildRecord(mem, header, rows)
}

// FromArrow copies a record batch into an in-memory table. The record may
// be released afterwards.
func FromArrow(rec arrow.Record) (*Table, error) {
	if rec == nil {
		return nil, errors.New(errors.ErrorTypeValue, "could not create table from nil record")
	}
	return FromRows(arrowHeader(rec.Schema()), appendRecordRows(nil, rec))
}

// ToArrowFile writes the table in the Arrow IPC file format. An empty path
// writes a temp file. The written path is returned.
func (t *Table) ToArrowFile(path string) (string, error) {
	mem := memory.DefaultAllocator
	rec, err := t.ToArrow(mem)
	if err != nil {
		return "", err
	}
	defer rec.Release()

	var buf bytes.Buffer
	fw, err := ipc.NewFileWriter(&buf, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValue, "failed to create arrow writer")
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return "", errors.Wrap(err, errors.ErrorTypeValue, "failed to write arrow record")
	}
	if err := fw.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValue, "failed to finish arrow file")
	}

	out, err := writeFile(path, ".arrow", false, func(w io.Writer) error {
		_, err := buf.WriteTo(w)
		return err
	})
	if err != nil {
		return "", err
	}
	wrote("arrow", out, int(rec.NumRows()))
	return out, nil
}

// FromArrowFile returns a table that reads an Arrow IPC file
func FromArrowFile(path string) (*Table, error) {
	if err := checkLocal(path); err != nil {
		return nil, err
	}
	return &Table{src: sourceFunc(func() (cursor, error) {
		data, err := readAll(path)
		if err != nil {
			return nil, err
		}
		r, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(memory.DefaultAllocator))
		if err != nil {
			return nil, formatError("arrow", err)
		}
		defer r.Close()

		var rows [][]any
		for i := 0; i < r.NumRecords(); i++ {
			rec, err := r.Record(i)
			if err != nil {
				return nil, formatError("arrow", err)
			}
			rows = appendRecordRows(rows, rec)
		}
		c, _ := (&memSource{header: arrowHeader(r.Schema()), rows: rows}).open()
		return counted("arrow", c), nil
	})}, nil
}
