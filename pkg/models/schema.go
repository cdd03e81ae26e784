// Package models provides the column schema shared by the typed table
// codecs (Avro, Arrow and Parquet).
package models

// FieldType is the logical type of a column
type FieldType string

const (
	TypeBoolean FieldType = "boolean"
	TypeInteger FieldType = "integer"
	TypeFloat   FieldType = "float"
	TypeString  FieldType = "string"
	TypeBytes   FieldType = "bytes"
	// TypeObject and TypeArray hold nested values. Typed codecs store them
	// as JSON strings.
	TypeObject FieldType = "object"
	TypeArray  FieldType = "array"
)

// Schema defines the structure of table rows.
type Schema struct {
	// Name identifies the schema (e.g., the Avro record name)
	Name string `json:"name"`

	// Fields defines the columns in header order
	Fields []Field `json:"fields"`
}

// Field represents a single column in the schema.
type Field struct {
	// Name is the column name
	Name string `json:"name"`

	// Type specifies the logical type
	Type FieldType `json:"type"`

	// Nullable is set when a sampled value was nil or the type is unknown
	Nullable bool `json:"nullable"`
}

// Widen returns the narrowest type that can hold values of both a and b.
// An empty type means no value has been seen yet.
func Widen(a, b FieldType) FieldType {
	switch {
	case a == "":
		return b
	case b == "" || a == b:
		return a
	case (a == TypeInteger && b == TypeFloat) || (a == TypeFloat && b == TypeInteger):
		return TypeFloat
	}
	return TypeString
}

// IsNested reports whether values of t are stored as JSON strings by the
// typed codecs
func (t FieldType) IsNested() bool {
	return t == TypeObject || t == TypeArray
}
