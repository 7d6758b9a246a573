package domain

import (
	"fmt"
	"strings"
)

// Kind tags a logical type node.
type Kind string

// Logical type kinds. Kinds without parameters are represented by
// PrimitiveType; the others have dedicated node types.
const (
	KindBoolean      Kind = "boolean"
	KindByte         Kind = "byte"
	KindShort        Kind = "short"
	KindInteger      Kind = "integer"
	KindLong         Kind = "long"
	KindFloat        Kind = "float"
	KindDouble       Kind = "double"
	KindDate         Kind = "date"
	KindTime         Kind = "time"
	KindTimestamp    Kind = "timestamp"
	KindTimestampTZ  Kind = "timestamp_tz"
	KindString       Kind = "string"
	KindUUID         Kind = "uuid"
	KindBinary       Kind = "binary"
	KindIntervalYear Kind = "interval_year"
	KindIntervalDay  Kind = "interval_day"
	KindNull         Kind = "null"

	KindDecimal   Kind = "decimal"
	KindFixed     Kind = "fixed"
	KindVarChar   Kind = "varchar"
	KindFixedChar Kind = "char"
	KindStruct    Kind = "struct"
	KindList      Kind = "list"
	KindMap       Kind = "map"
)

var primitiveKinds = map[Kind]bool{
	KindBoolean: true, KindByte: true, KindShort: true, KindInteger: true,
	KindLong: true, KindFloat: true, KindDouble: true, KindDate: true,
	KindTime: true, KindTimestamp: true, KindTimestampTZ: true, KindString: true,
	KindUUID: true, KindBinary: true, KindIntervalYear: true, KindIntervalDay: true,
	KindNull: true,
}

// IsPrimitive reports whether k is a parameterless kind.
func (k Kind) IsPrimitive() bool { return primitiveKinds[k] }

// Type is a node of the logical type model. Nodes are immutable once built.
type Type interface {
	Kind() Kind
	Equals(other Type) bool
	String() string
}

// PrimitiveType is a parameterless scalar type.
type PrimitiveType struct {
	kind Kind
}

// Primitive returns the primitive type of the given kind. It panics on
// parameterised or composite kinds, which have their own constructors.
func Primitive(kind Kind) PrimitiveType {
	if !kind.IsPrimitive() {
		panic(fmt.Sprintf("domain: %q is not a primitive kind", kind))
	}
	return PrimitiveType{kind: kind}
}

func (p PrimitiveType) Kind() Kind        { return p.kind }
func (p PrimitiveType) String() string    { return string(p.kind) }
func (p PrimitiveType) Equals(o Type) bool { return o != nil && o.Kind() == p.kind && isPrimitiveNode(o) }

func isPrimitiveNode(t Type) bool {
	_, ok := t.(PrimitiveType)
	return ok
}

// DecimalType is a fixed-point number.
type DecimalType struct {
	precision int
	scale     int
}

// Decimal returns a decimal type with the given precision and scale.
func Decimal(precision, scale int) DecimalType {
	return DecimalType{precision: precision, scale: scale}
}

func (d DecimalType) Kind() Kind      { return KindDecimal }
func (d DecimalType) Precision() int  { return d.precision }
func (d DecimalType) Scale() int      { return d.scale }
func (d DecimalType) String() string  { return fmt.Sprintf("decimal(%d,%d)", d.precision, d.scale) }
func (d DecimalType) Equals(o Type) bool {
	other, ok := o.(DecimalType)
	return ok && other == d
}

// FixedType is a fixed-length byte array.
type FixedType struct {
	length int
}

// Fixed returns a fixed-length binary type.
func Fixed(length int) FixedType { return FixedType{length: length} }

func (f FixedType) Kind() Kind     { return KindFixed }
func (f FixedType) Length() int    { return f.length }
func (f FixedType) String() string { return fmt.Sprintf("fixed(%d)", f.length) }
func (f FixedType) Equals(o Type) bool {
	other, ok := o.(FixedType)
	return ok && other == f
}

// CharType is a length-bounded character string. Varying selects VARCHAR
// semantics, otherwise the string is fixed-width CHAR.
type CharType struct {
	length  int
	varying bool
}

// VarChar returns a variable-length character type.
func VarChar(length int) CharType { return CharType{length: length, varying: true} }

// FixedChar returns a fixed-width character type.
func FixedChar(length int) CharType { return CharType{length: length} }

func (c CharType) Kind() Kind {
	if c.varying {
		return KindVarChar
	}
	return KindFixedChar
}
func (c CharType) Length() int    { return c.length }
func (c CharType) String() string { return fmt.Sprintf("%s(%d)", c.Kind(), c.length) }
func (c CharType) Equals(o Type) bool {
	other, ok := o.(CharType)
	return ok && other == c
}

// StructField is one named member of a struct type.
type StructField struct {
	Name     string
	Type     Type
	Nullable bool
	Comment  string
}

// Field returns a struct field without a comment.
func Field(name string, t Type, nullable bool) StructField {
	return StructField{Name: name, Type: t, Nullable: nullable}
}

func (f StructField) equals(o StructField) bool {
	return f.Name == o.Name && f.Nullable == o.Nullable && f.Comment == o.Comment &&
		f.Type != nil && f.Type.Equals(o.Type)
}

func (f StructField) String() string {
	s := f.Name + ": " + f.Type.String()
	if !f.Nullable {
		s += " not null"
	}
	return s
}

// StructType is an ordered sequence of fields. Field order is significant.
type StructType struct {
	fields []StructField
}

// Struct returns a struct type over a copy of fields.
func Struct(fields ...StructField) *StructType {
	return &StructType{fields: append([]StructField(nil), fields...)}
}

func (s *StructType) Kind() Kind { return KindStruct }

// Fields returns a copy of the struct's fields in declaration order.
func (s *StructType) Fields() []StructField {
	return append([]StructField(nil), s.fields...)
}

// NumFields returns the number of fields.
func (s *StructType) NumFields() int { return len(s.fields) }

// Field returns the i-th field.
func (s *StructType) Field(i int) StructField { return s.fields[i] }

func (s *StructType) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.String()
	}
	return "struct<" + strings.Join(parts, ", ") + ">"
}

func (s *StructType) Equals(o Type) bool {
	other, ok := o.(*StructType)
	if !ok || len(other.fields) != len(s.fields) {
		return false
	}
	for i := range s.fields {
		if !s.fields[i].equals(other.fields[i]) {
			return false
		}
	}
	return true
}

// ListType is a homogeneous sequence.
type ListType struct {
	element         Type
	elementNullable bool
}

// List returns a list type.
func List(element Type, elementNullable bool) *ListType {
	return &ListType{element: element, elementNullable: elementNullable}
}

func (l *ListType) Kind() Kind            { return KindList }
func (l *ListType) Element() Type         { return l.element }
func (l *ListType) ElementNullable() bool { return l.elementNullable }

func (l *ListType) String() string {
	s := "list<" + l.element.String()
	if !l.elementNullable {
		s += " not null"
	}
	return s + ">"
}

func (l *ListType) Equals(o Type) bool {
	other, ok := o.(*ListType)
	return ok && other.elementNullable == l.elementNullable && l.element.Equals(other.element)
}

// MapType maps non-null keys to values.
type MapType struct {
	key           Type
	value         Type
	valueNullable bool
}

// Map returns a map type. Keys are never nullable.
func Map(key, value Type, valueNullable bool) *MapType {
	return &MapType{key: key, value: value, valueNullable: valueNullable}
}

func (m *MapType) Kind() Kind          { return KindMap }
func (m *MapType) Key() Type           { return m.key }
func (m *MapType) Value() Type         { return m.value }
func (m *MapType) ValueNullable() bool { return m.valueNullable }

func (m *MapType) String() string {
	s := "map<" + m.key.String() + ", " + m.value.String()
	if !m.valueNullable {
		s += " not null"
	}
	return s + ">"
}

func (m *MapType) Equals(o Type) bool {
	other, ok := o.(*MapType)
	return ok && other.valueNullable == m.valueNullable &&
		m.key.Equals(other.key) && m.value.Equals(other.value)
}
