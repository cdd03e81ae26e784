package table

import (
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

// Converter transforms a single cell value
type Converter func(any) (any, error)

// stringConverter lifts a string function into a Converter that leaves nil
// untouched
func stringConverter(fn func(string) string) Converter {
	return func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return fn(ToString(v)), nil
	}
}

// Built-in converters
var (
	Upper     = stringConverter(strings.ToUpper)
	Lower     = stringConverter(strings.ToLower)
	TrimSpace = stringConverter(strings.TrimSpace)
	Title     = stringConverter(func(s string) string {
		return cases.Title(language.Und).String(s)
	})
)

// ToStringConverter converts any value to its rendered string. nil stays nil.
func ToStringConverter(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return ToString(v), nil
}

// ToInt converts numbers, booleans and numeric strings to int64. Floats and
// float strings must be integral.
func ToInt(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Newf(errors.ErrorTypeValue, "cannot convert %q to int", x)
		}
		return integral(f)
	}
	if i, ok := toInt64(v); ok {
		return i, nil
	}
	if f, ok := toNumber(v); ok {
		return integral(f)
	}
	return nil, errors.Newf(errors.ErrorTypeValue, "cannot convert %T to int", v)
}

func integral(f float64) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, errors.Newf(errors.ErrorTypeValue, "cannot convert %v to int without truncation", f)
	}
	return int64(f), nil
}

// ToFloat converts numbers and numeric strings to float64
func ToFloat(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if x {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Newf(errors.ErrorTypeValue, "cannot convert %q to float", x)
		}
		return f, nil
	}
	if f, ok := toNumber(v); ok {
		return f, nil
	}
	return nil, errors.Newf(errors.ErrorTypeValue, "cannot convert %T to float", v)
}

// ToBool converts booleans, numbers and strconv.ParseBool strings to bool
func ToBool(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errors.Newf(errors.ErrorTypeValue, "cannot convert %q to bool", x)
		}
		return b, nil
	}
	if f, ok := toNumber(v); ok {
		return f != 0, nil
	}
	return nil, errors.Newf(errors.ErrorTypeValue, "cannot convert %T to bool", v)
}

var namedConverters = map[string]Converter{
	"upper":  Upper,
	"lower":  Lower,
	"title":  Title,
	"trim":   TrimSpace,
	"strip":  TrimSpace,
	"string": ToStringConverter,
	"str":    ToStringConverter,
	"int":    ToInt,
	"float":  ToFloat,
	"bool":   ToBool,
}

// ConverterByName resolves a built-in converter such as "upper" or "int"
func ConverterByName(name string) (Converter, error) {
	conv, ok := namedConverters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "unknown converter %q", name)
	}
	return conv, nil
}

// ConvertColumn applies conv to every value of a column
func (t *Table) ConvertColumn(column string, conv Converter) error {
	return t.ConvertColumns([]string{column}, conv)
}

// ConvertColumns applies conv to every value of the named columns. The
// table is evaluated first and only rebound when every cell converts, so
// a failure leaves it unchanged.
func (t *Table) ConvertColumns(columns []string, conv Converter) error {
	c, err := t.src.open()
	if err != nil {
		return err
	}
	defer c.Close()

	header := c.Header()
	idx, err := indexesOf(header, columns)
	if err != nil {
		return err
	}

	var rows [][]any
	for n := 0; ; n++ {
		row, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		for _, j := range idx {
			v, err := conv(row[j])
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeValue, "conversion failed").
					WithDetail("column", header[j]).
					WithDetail("row", n)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	t.src = &memSource{header: header, rows: rows}
	return nil
}

// ConvertTable applies conv to every value in every column
func (t *Table) ConvertTable(conv Converter) error {
	header, err := t.Columns()
	if err != nil {
		return err
	}
	return t.ConvertColumns(header, conv)
}

// ConvertColumnsToString renders every value as a string. nil stays nil.
func (t *Table) ConvertColumnsToString() error {
	return t.ConvertTable(ToStringConverter)
}
