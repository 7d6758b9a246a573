package typebridge

import "github.com/apache/iceberg-go"

// Physical types are rendered in the Iceberg REST schema shape: primitives as
// their Iceberg names, nested types as objects carrying field ids.

// SchemaJSON is the JSON form of an Iceberg schema.
type SchemaJSON struct {
	Type     string      `json:"type"`
	SchemaID int         `json:"schema-id"`
	Fields   []FieldJSON `json:"fields"`
}

type structJSON struct {
	Type   string      `json:"type"`
	Fields []FieldJSON `json:"fields"`
}

// FieldJSON is the JSON form of an Iceberg nested field.
type FieldJSON struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Type     any    `json:"type"`
	Doc      string `json:"doc,omitempty"`
}

type listJSON struct {
	Type            string `json:"type"`
	ElementID       int    `json:"element-id"`
	Element         any    `json:"element"`
	ElementRequired bool   `json:"element-required"`
}

type mapJSON struct {
	Type          string `json:"type"`
	KeyID         int    `json:"key-id"`
	Key           any    `json:"key"`
	ValueID       int    `json:"value-id"`
	Value         any    `json:"value"`
	ValueRequired bool   `json:"value-required"`
}

// EncodeSchema renders s in the Iceberg REST schema shape.
func EncodeSchema(s *iceberg.Schema) SchemaJSON {
	return SchemaJSON{Type: "struct", SchemaID: s.ID, Fields: encodeFields(s.Fields())}
}

func encodeFields(fields []iceberg.NestedField) []FieldJSON {
	out := make([]FieldJSON, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldJSON{
			ID:       f.ID,
			Name:     f.Name,
			Required: f.Required,
			Type:     EncodeType(f.Type),
			Doc:      f.Doc,
		})
	}
	return out
}

// EncodeType renders t as a JSON-ready value: a string for primitives, an
// object for nested types.
func EncodeType(t iceberg.Type) any {
	switch v := t.(type) {
	case *iceberg.StructType:
		return structJSON{Type: "struct", Fields: encodeFields(v.FieldList)}
	case *iceberg.ListType:
		return listJSON{
			Type:            "list",
			ElementID:       v.ElementID,
			Element:         EncodeType(v.Element),
			ElementRequired: v.ElementRequired,
		}
	case *iceberg.MapType:
		return mapJSON{
			Type:          "map",
			KeyID:         v.KeyID,
			Key:           EncodeType(v.KeyType),
			ValueID:       v.ValueID,
			Value:         EncodeType(v.ValueType),
			ValueRequired: v.ValueRequired,
		}
	default:
		return t.String()
	}
}
