// Package typebridge converts between the gateway's logical type model and
// Iceberg's physical type model.
//
// Conversion is a pure structural recursion. Physical field ids are assigned
// in Iceberg order: the fields of a struct receive consecutive ids before any
// of their children, and list element or map key/value ids are reserved
// before descending. The same logical tree therefore always yields the same
// ids, starting at 1.
package typebridge

import (
	"strings"

	"github.com/apache/iceberg-go"

	"icegate/internal/domain"
)

// primitives pairs every logical primitive with its Iceberg counterpart.
var primitives = []struct {
	kind     domain.Kind
	physical iceberg.Type
}{
	{domain.KindBoolean, iceberg.PrimitiveTypes.Bool},
	{domain.KindInteger, iceberg.PrimitiveTypes.Int32},
	{domain.KindLong, iceberg.PrimitiveTypes.Int64},
	{domain.KindFloat, iceberg.PrimitiveTypes.Float32},
	{domain.KindDouble, iceberg.PrimitiveTypes.Float64},
	{domain.KindDate, iceberg.PrimitiveTypes.Date},
	{domain.KindTime, iceberg.PrimitiveTypes.Time},
	{domain.KindTimestamp, iceberg.PrimitiveTypes.Timestamp},
	{domain.KindTimestampTZ, iceberg.PrimitiveTypes.TimestampTz},
	{domain.KindString, iceberg.PrimitiveTypes.String},
	{domain.KindUUID, iceberg.PrimitiveTypes.UUID},
	{domain.KindBinary, iceberg.PrimitiveTypes.Binary},
}

// MaxDecimalPrecision is the widest decimal Iceberg can store.
const MaxDecimalPrecision = 38

// ToPhysical converts a logical type into an Iceberg type.
func ToPhysical(t domain.Type) (iceberg.Type, error) {
	var c toPhysical
	return c.visit(t, nil)
}

// ToLogical converts an Iceberg type into a logical type.
func ToLogical(t iceberg.Type) (domain.Type, error) {
	return toLogical(t, nil)
}

// ToSchema converts a logical struct into an Iceberg schema with the given id.
func ToSchema(schemaID int, s *domain.StructType) (*iceberg.Schema, error) {
	t, err := ToPhysical(s)
	if err != nil {
		return nil, err
	}
	return iceberg.NewSchema(schemaID, t.(*iceberg.StructType).FieldList...), nil
}

// FromSchema converts an Iceberg schema into a logical struct.
func FromSchema(schema *iceberg.Schema) (*domain.StructType, error) {
	t, err := ToLogical(&iceberg.StructType{FieldList: schema.Fields()})
	if err != nil {
		return nil, err
	}
	return t.(*domain.StructType), nil
}

type toPhysical struct {
	lastID int
}

func (c *toPhysical) nextID() int {
	c.lastID++
	return c.lastID
}

func (c *toPhysical) visit(t domain.Type, path []string) (iceberg.Type, error) {
	switch v := t.(type) {
	case *domain.StructType:
		structPath := child(path, "struct")
		ids := make([]int, v.NumFields())
		for i := range ids {
			ids[i] = c.nextID()
		}
		fields := make([]iceberg.NestedField, v.NumFields())
		for i, f := range v.Fields() {
			ft, err := c.visit(f.Type, child(structPath, f.Name))
			if err != nil {
				return nil, err
			}
			fields[i] = iceberg.NestedField{
				ID:       ids[i],
				Name:     f.Name,
				Type:     ft,
				Required: !f.Nullable,
				Doc:      f.Comment,
			}
		}
		return &iceberg.StructType{FieldList: fields}, nil

	case *domain.ListType:
		elementID := c.nextID()
		elem, err := c.visit(v.Element(), child(path, "list", "element"))
		if err != nil {
			return nil, err
		}
		return &iceberg.ListType{
			ElementID:       elementID,
			Element:         elem,
			ElementRequired: !v.ElementNullable(),
		}, nil

	case *domain.MapType:
		keyID, valueID := c.nextID(), c.nextID()
		key, err := c.visit(v.Key(), child(path, "map", "key"))
		if err != nil {
			return nil, err
		}
		value, err := c.visit(v.Value(), child(path, "map", "value"))
		if err != nil {
			return nil, err
		}
		return &iceberg.MapType{
			KeyID:         keyID,
			KeyType:       key,
			ValueID:       valueID,
			ValueType:     value,
			ValueRequired: !v.ValueNullable(),
		}, nil

	case domain.DecimalType:
		if v.Precision() < 1 || v.Precision() > MaxDecimalPrecision || v.Scale() < 0 || v.Scale() > v.Precision() {
			return nil, unsupported(path, v.String())
		}
		return iceberg.DecimalTypeOf(v.Precision(), v.Scale()), nil

	case domain.FixedType:
		if v.Length() <= 0 {
			return nil, unsupported(path, v.String())
		}
		return iceberg.FixedTypeOf(v.Length()), nil

	case domain.PrimitiveType:
		for _, p := range primitives {
			if p.kind == v.Kind() {
				return p.physical, nil
			}
		}
		return nil, unsupported(path, v.String())

	case nil:
		return nil, unsupported(path, "<nil>")

	default:
		return nil, unsupported(path, t.String())
	}
}

func toLogical(t iceberg.Type, path []string) (domain.Type, error) {
	switch v := t.(type) {
	case *iceberg.StructType:
		structPath := child(path, "struct")
		fields := make([]domain.StructField, len(v.FieldList))
		for i, f := range v.FieldList {
			ft, err := toLogical(f.Type, child(structPath, f.Name))
			if err != nil {
				return nil, err
			}
			fields[i] = domain.StructField{
				Name:     f.Name,
				Type:     ft,
				Nullable: !f.Required,
				Comment:  f.Doc,
			}
		}
		return domain.Struct(fields...), nil

	case *iceberg.ListType:
		elem, err := toLogical(v.Element, child(path, "list", "element"))
		if err != nil {
			return nil, err
		}
		return domain.List(elem, !v.ElementRequired), nil

	case *iceberg.MapType:
		key, err := toLogical(v.KeyType, child(path, "map", "key"))
		if err != nil {
			return nil, err
		}
		value, err := toLogical(v.ValueType, child(path, "map", "value"))
		if err != nil {
			return nil, err
		}
		return domain.Map(key, value, !v.ValueRequired), nil

	case iceberg.DecimalType:
		return domain.Decimal(v.Precision(), v.Scale()), nil

	case iceberg.FixedType:
		return domain.Fixed(v.Len()), nil

	case nil:
		return nil, unsupported(path, "<nil>")
	}

	for _, p := range primitives {
		if p.physical.Equals(t) {
			return domain.Primitive(p.kind), nil
		}
	}
	return nil, unsupported(path, t.String())
}

// child returns a new path; callers keep sharing their own prefix.
func child(path []string, segments ...string) []string {
	out := make([]string, 0, len(path)+len(segments))
	out = append(out, path...)
	return append(out, segments...)
}

func unsupported(path []string, typ string) error {
	return &domain.UnsupportedTypeError{Path: strings.Join(path, "."), Type: typ}
}
