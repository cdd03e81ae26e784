package table

import (
	"time"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
	"github.com/ajitpratap0/nebula-table/pkg/models"
)

// DefaultSampleSize is how many rows typed codecs inspect to infer a schema
const DefaultSampleSize = 100

// fieldTypeOf maps a Go value onto a logical type. nil reports "".
func fieldTypeOf(v any) models.FieldType {
	switch v.(type) {
	case nil:
		return ""
	case bool:
		return models.TypeBoolean
	case string, time.Time:
		return models.TypeString
	case []byte:
		return models.TypeBytes
	case float32, float64:
		return models.TypeFloat
	}
	if _, ok := toInt64(v); ok {
		return models.TypeInteger
	}
	if _, ok := toNumber(v); ok {
		return models.TypeFloat
	}
	if _, ok := asMap(v); ok {
		return models.TypeObject
	}
	if _, ok := asList(v); ok {
		return models.TypeArray
	}
	return models.TypeString
}

// inferSchema derives a schema from the first sample rows. Columns with no
// non-nil sampled value are strings. Every field is nullable.
func inferSchema(name string, header []string, rows [][]any, sample int) models.Schema {
	if sample <= 0 {
		sample = DefaultSampleSize
	}
	types := make([]models.FieldType, len(header))
	for i, row := range rows {
		if i >= sample {
			break
		}
		for j := range header {
			types[j] = models.Widen(types[j], fieldTypeOf(row[j]))
		}
	}
	s := models.Schema{Name: name, Fields: make([]models.Field, len(header))}
	for j, h := range header {
		ft := types[j]
		if ft == "" {
			ft = models.TypeString
		}
		s.Fields[j] = models.Field{Name: h, Type: ft, Nullable: true}
	}
	return s
}

// coerce converts v to the Go representation of ft used by the typed
// writers: bool, int64, float64, string or []byte. Nested types become JSON
// strings. nil passes through.
func coerce(ft models.FieldType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch ft {
	case models.TypeBoolean:
		return ToBool(v)
	case models.TypeInteger:
		return ToInt(v)
	case models.TypeFloat:
		return ToFloat(v)
	case models.TypeBytes:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
		return []byte(ToString(v)), nil
	case models.TypeString:
		return ToString(v), nil
	}
	if ft.IsNested() {
		return ToString(v), nil
	}
	return nil, errors.Newf(errors.ErrorTypeCapability, "unsupported field type %q", ft)
}
