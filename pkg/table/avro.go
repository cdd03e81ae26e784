package table

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/nebula-table/pkg/config"
	"github.com/ajitpratap0/nebula-table/pkg/errors"
	"github.com/ajitpratap0/nebula-table/pkg/json"
	"github.com/ajitpratap0/nebula-table/pkg/models"
)

// avroColumnsKey is the file metadata key holding the original header
const avroColumnsKey = "table.columns"

// AvroOptions configures ToAvro
type AvroOptions struct {
	// Schema is an Avro record schema in JSON. Empty infers one named
	// "Table" from the first SampleSize rows.
	Schema string
	// Codec is null, deflate or snappy. Empty uses the configured default.
	Codec string
	// CompressionLevel is the deflate level, 1 through 9, with 0 or -1 for
	// the deflate default. Codecs without levels ignore it.
	CompressionLevel int
	// SampleSize bounds schema inference. Zero uses the configured default.
	SampleSize int
}

var avroCodecs = map[string]bool{
	"null":    true,
	"deflate": true,
	"snappy":  true,
}

func (o AvroOptions) codec() (string, error) {
	name := o.Codec
	if name == "" {
		name = config.Current().Avro.Codec
	}
	if name == "bzip2" || name == "zstandard" || name == "xz" {
		return "", errors.Newf(errors.ErrorTypeCapability, "avro codec %s is not supported", name).
			WithDetail("supported", "null,deflate,snappy")
	}
	if !avroCodecs[name] {
		return "", errors.Newf(errors.ErrorTypeValue, "unknown avro codec %q", name)
	}
	return name, nil
}

// avroField is the part of a record field the encoder and decoder need
type avroField struct {
	name string
	// primitive is the Avro type of the value, or of the non-null union
	// branch
	primitive string
	union     bool
	nullable  bool
}

type avroRecordSchema struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Fields []struct {
		Name string `json:"name"`
		Type any    `json:"type"`
	} `json:"fields"`
}

// parseAvroFields reads the top-level fields of a record schema
func parseAvroFields(schema string) ([]avroField, error) {
	var rs avroRecordSchema
	if err := json.Unmarshal([]byte(schema), &rs); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValue, "invalid avro schema")
	}
	if rs.Type != "record" {
		return nil, errors.Newf(errors.ErrorTypeValue, "avro schema must be a record, got %q", rs.Type)
	}
	fields := make([]avroField, len(rs.Fields))
	for i, f := range rs.Fields {
		af := avroField{name: f.Name}
		switch typ := f.Type.(type) {
		case string:
			af.primitive = typ
		case []any:
			af.union = true
			for _, branch := range typ {
				name := avroTypeName(branch)
				if name == "null" {
					af.nullable = true
				} else if af.primitive == "" {
					af.primitive = name
				}
			}
		case map[string]any:
			af.primitive = avroTypeName(typ)
		}
		fields[i] = af
	}
	return fields, nil
}

// avroTypeName returns the name goavro uses for a union branch
func avroTypeName(t any) string {
	switch v := t.(type) {
	case string:
		return v
	case map[string]any:
		typ, _ := v["type"].(string)
		switch typ {
		case "record", "enum", "fixed":
			name, _ := v["name"].(string)
			if ns, ok := v["namespace"].(string); ok && ns != "" && !strings.Contains(name, ".") {
				return ns + "." + name
			}
			return name
		}
		return typ
	}
	return ""
}

// avroName rewrites a column name into a valid Avro field name
func avroName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// avroNames maps a header onto unique Avro field names
func avroNames(header []string) []string {
	names := make([]string, len(header))
	used := map[string]bool{}
	for i, h := range header {
		base := avroName(h)
		name := base
		for n := 1; used[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

var avroTypes = map[models.FieldType]string{
	models.TypeBoolean: "boolean",
	models.TypeInteger: "long",
	models.TypeFloat:   "double",
	models.TypeString:  "string",
	models.TypeBytes:   "bytes",
	models.TypeObject:  "string",
	models.TypeArray:   "string",
}

// avroSchemaFor renders an inferred schema as a record of nullable unions
func avroSchemaFor(s models.Schema, names []string) (string, error) {
	fields := make([]map[string]any, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = map[string]any{
			"name":    names[i],
			"type":    []any{"null", avroTypes[f.Type]},
			"default": nil,
		}
	}
	b, err := json.Marshal(map[string]any{
		"type":   "record",
		"name":   s.Name,
		"fields": fields,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// avroPrimitive coerces v to the Go type goavro expects for an Avro type.
// Complex types pass through.
func avroPrimitive(typ string, v any) (any, error) {
	switch typ {
	case "boolean":
		return ToBool(v)
	case "int":
		i, err := ToInt(v)
		if err != nil || i == nil {
			return i, err
		}
		n := i.(int64)
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, errors.Newf(errors.ErrorTypeValue, "value %d overflows avro int", n)
		}
		return int32(n), nil
	case "long":
		return ToInt(v)
	case "float":
		f, err := ToFloat(v)
		if err != nil || f == nil {
			return f, err
		}
		return float32(f.(float64)), nil
	case "double":
		return ToFloat(v)
	case "string":
		return ToString(v), nil
	case "bytes":
		if b, ok := v.([]byte); ok {
			return b, nil
		}
		return []byte(ToString(v)), nil
	}
	return v, nil
}

func encodeAvroValue(f avroField, v any) (any, error) {
	if v == nil {
		if f.nullable {
			return nil, nil
		}
		return nil, errors.New(errors.ErrorTypeValue, "nil value for non-nullable avro field").
			WithDetail("field", f.name)
	}
	out, err := avroPrimitive(f.primitive, v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValue, "cannot encode avro value").
			WithDetail("field", f.name)
	}
	if f.union {
		return goavro.Union(f.primitive, out), nil
	}
	return out, nil
}

// ToAvro writes the table as an Avro object container file. An empty path
// writes a temp file. The written path is returned.
func (t *Table) ToAvro(path string, opts AvroOptions) (string, error) {
	codecName, err := opts.codec()
	if err != nil {
		return "", err
	}
	if opts.CompressionLevel < -1 || opts.CompressionLevel > 9 {
		return "", errors.Newf(errors.ErrorTypeValue,
			"avro compression level %d out of range", opts.CompressionLevel)
	}

	header, rows, err := drain(t.src)
	if err != nil {
		return "", err
	}

	var names []string
	schema := opts.Schema
	if schema == "" {
		sample := opts.SampleSize
		if sample <= 0 {
			sample = config.Current().Avro.SampleSize
		}
		names = avroNames(header)
		schema, err = avroSchemaFor(inferSchema("Table", header, rows, sample), names)
		if err != nil {
			return "", err
		}
	}
	fields, err := parseAvroFields(schema)
	if err != nil {
		return "", err
	}
	if names == nil {
		names = avroNames(header)
	}
	// column index for each field, matched by name
	colFor := make([]int, len(fields))
	for i, f := range fields {
		colFor[i] = indexOf(names, f.name)
		if colFor[i] < 0 {
			colFor[i] = indexOf(header, f.name)
		}
	}

	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValue, "failed to create avro codec")
	}
	columns, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	meta := map[string][]byte{avroColumnsKey: columns}

	out, err := writeFile(path, ".avro", false, func(w io.Writer) error {
		ocf, err := newAvroBlockWriter(w, codec, schema, codecName, opts.CompressionLevel, meta)
		if err != nil {
			return err
		}

		for n, row := range rows {
			rec := make(map[string]any, len(fields))
			for i, f := range fields {
				var v any
				if colFor[i] >= 0 {
					v = row[colFor[i]]
				}
				ev, err := encodeAvroValue(f, v)
				if err != nil {
					return errors.Wrap(err, errors.ErrorTypeValue, "failed to encode row").WithDetail("row", n)
				}
				rec[f.name] = ev
			}
			if err := ocf.Append(rec); err != nil {
				return errors.Wrap(err, errors.ErrorTypeValue, "failed to write row").WithDetail("row", n)
			}
		}
		return ocf.Flush()
	})
	if err != nil {
		return "", err
	}
	wrote("avro", out, len(rows))
	return out, nil
}

// FromAvro returns a table that reads an Avro object container file.
// Original column names stored by ToAvro are restored.
func FromAvro(path string) (*Table, error) {
	if err := checkLocal(path); err != nil {
		return nil, err
	}
	return &Table{src: &avroSource{path: path}}, nil
}

type avroSource struct {
	path string
}

func (s *avroSource) open() (cursor, error) {
	in, err := openInput(s.path)
	if err != nil {
		return nil, err
	}
	ocf, err := goavro.NewOCFReader(in)
	if err != nil {
		in.Close()
		return nil, formatError("avro", err)
	}
	fields, err := parseAvroFields(ocf.Codec().Schema())
	if err != nil {
		in.Close()
		return nil, err
	}

	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.name
	}
	if raw, ok := ocf.MetaData()[avroColumnsKey]; ok {
		var columns []string
		if err := json.Unmarshal(raw, &columns); err == nil && len(columns) == len(fields) {
			header = columns
		}
	}
	return counted("avro", &avroCursor{in: in, ocf: ocf, fields: fields, header: header}), nil
}

type avroCursor struct {
	in     io.Closer
	ocf    *goavro.OCFReader
	fields []avroField
	header []string
}

func (c *avroCursor) Header() []string { return cloneStrings(c.header) }

func (c *avroCursor) Next() ([]any, error) {
	if !c.ocf.Scan() {
		if err := c.ocf.Err(); err != nil {
			return nil, formatError("avro", err)
		}
		return nil, io.EOF
	}
	datum, err := c.ocf.Read()
	if err != nil {
		return nil, formatError("avro", err)
	}
	rec, ok := datum.(map[string]any)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValue, "avro datum is %T, expected a record", datum)
	}
	row := make([]any, len(c.fields))
	for i, f := range c.fields {
		row[i] = decodeAvroValue(f, rec[f.name])
	}
	return row, nil
}

func (c *avroCursor) Close() error { return c.in.Close() }

func decodeAvroValue(f avroField, v any) any {
	if f.union {
		if m, ok := v.(map[string]any); ok && len(m) == 1 {
			for _, inner := range m {
				v = inner
			}
		}
	}
	switch x := v.(type) {
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
