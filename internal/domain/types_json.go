package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// JSON encoding of logical types: parameterless and parameterised scalars are
// strings ("integer", "decimal(10,2)", "fixed(16)", "varchar(32)"); composite
// types are objects tagged by "type".

type jsonField struct {
	Name     string          `json:"name"`
	Type     json.RawMessage `json:"type"`
	Nullable bool            `json:"nullable"`
	Comment  string          `json:"comment,omitempty"`
}

type jsonComposite struct {
	Type            string          `json:"type"`
	Fields          []jsonField     `json:"fields,omitempty"`
	ElementType     json.RawMessage `json:"elementType,omitempty"`
	ElementNullable *bool           `json:"elementNullable,omitempty"`
	KeyType         json.RawMessage `json:"keyType,omitempty"`
	ValueType       json.RawMessage `json:"valueType,omitempty"`
	ValueNullable   *bool           `json:"valueNullable,omitempty"`
}

var parameterised = regexp.MustCompile(`^(decimal|fixed|varchar|char)\((\d+)(?:,\s*(\d+))?\)$`)

// MarshalType encodes a logical type as JSON.
func MarshalType(t Type) ([]byte, error) {
	switch v := t.(type) {
	case PrimitiveType, DecimalType, FixedType, CharType:
		return json.Marshal(v.String())
	case *StructType:
		out := jsonComposite{Type: string(KindStruct), Fields: make([]jsonField, 0, len(v.fields))}
		for _, f := range v.fields {
			raw, err := MarshalType(f.Type)
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, jsonField{Name: f.Name, Type: raw, Nullable: f.Nullable, Comment: f.Comment})
		}
		return json.Marshal(out)
	case *ListType:
		elem, err := MarshalType(v.element)
		if err != nil {
			return nil, err
		}
		nullable := v.elementNullable
		return json.Marshal(jsonComposite{Type: string(KindList), ElementType: elem, ElementNullable: &nullable})
	case *MapType:
		key, err := MarshalType(v.key)
		if err != nil {
			return nil, err
		}
		value, err := MarshalType(v.value)
		if err != nil {
			return nil, err
		}
		nullable := v.valueNullable
		return json.Marshal(jsonComposite{Type: string(KindMap), KeyType: key, ValueType: value, ValueNullable: &nullable})
	case nil:
		return nil, ErrValidation("cannot encode nil type")
	default:
		return nil, ErrValidation("cannot encode type %T", t)
	}
}

// UnmarshalType decodes a logical type from its JSON encoding.
func UnmarshalType(data []byte) (Type, error) {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return parseScalar(name)
	}

	var c jsonComposite
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, ErrValidation("invalid type json: %v", err)
	}
	switch Kind(c.Type) {
	case KindStruct:
		fields := make([]StructField, 0, len(c.Fields))
		for _, f := range c.Fields {
			if f.Name == "" {
				return nil, ErrValidation("struct field without name")
			}
			ft, err := UnmarshalType(f.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			fields = append(fields, StructField{Name: f.Name, Type: ft, Nullable: f.Nullable, Comment: f.Comment})
		}
		return Struct(fields...), nil
	case KindList:
		if len(c.ElementType) == 0 {
			return nil, ErrValidation("list type requires elementType")
		}
		elem, err := UnmarshalType(c.ElementType)
		if err != nil {
			return nil, fmt.Errorf("list element: %w", err)
		}
		return List(elem, derefBool(c.ElementNullable, true)), nil
	case KindMap:
		if len(c.KeyType) == 0 || len(c.ValueType) == 0 {
			return nil, ErrValidation("map type requires keyType and valueType")
		}
		key, err := UnmarshalType(c.KeyType)
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		value, err := UnmarshalType(c.ValueType)
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		return Map(key, value, derefBool(c.ValueNullable, true)), nil
	default:
		return nil, ErrValidation("unknown composite type %q", c.Type)
	}
}

func parseScalar(name string) (Type, error) {
	if Kind(name).IsPrimitive() {
		return Primitive(Kind(name)), nil
	}
	m := parameterised.FindStringSubmatch(name)
	if m == nil {
		return nil, ErrValidation("unknown type %q", name)
	}
	first, _ := strconv.Atoi(m[2])
	switch Kind(m[1]) {
	case KindDecimal:
		if m[3] == "" {
			return nil, ErrValidation("decimal type %q requires precision and scale", name)
		}
		scale, _ := strconv.Atoi(m[3])
		return Decimal(first, scale), nil
	case KindFixed:
		return Fixed(first), nil
	case KindVarChar:
		return VarChar(first), nil
	default:
		return FixedChar(first), nil
	}
}

func derefBool(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
