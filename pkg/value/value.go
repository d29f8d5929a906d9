package value

import (
	"encoding/json"
	"strconv"
)

// Type identifies which variant of a Value is set.
type Type string

const (
	TypeInt    Type = "int"
	TypeString Type = "unicode"
	TypeBool   Type = "bool"
)

// Valid reports whether t is one of the known value types.
func (t Type) Valid() bool {
	switch t {
	case TypeInt, TypeString, TypeBool:
		return true
	}
	return false
}

// Column names of the authoritative field for each type.
const (
	FieldInteger = "integer_value"
	FieldString  = "string_value"
	FieldBoolean = "boolean_value"
)

// FieldName returns the storage field that holds values of type t.
// Unknown types map to the string field.
func FieldName(t Type) string {
	switch t {
	case TypeInt:
		return FieldInteger
	case TypeBool:
		return FieldBoolean
	default:
		return FieldString
	}
}

// Value is a tagged union of {int64, string, bool}.
// The zero Value is a null string.
type Value struct {
	typ  Type
	i    int64
	s    string
	b    bool
	null bool
}

func Int(v int64) Value { return Value{typ: TypeInt, i: v} }

func String(v string) Value { return Value{typ: TypeString, s: v} }

func Bool(v bool) Value { return Value{typ: TypeBool, b: v} }

// Null returns a string-typed value without content.
func Null() Value { return Value{typ: TypeString, null: true} }

// NullOf returns a value of type t without content.
func NullOf(t Type) Value {
	if !t.Valid() {
		t = TypeString
	}
	return Value{typ: t, null: true}
}

// Type returns the variant tag.
func (v Value) Type() Type {
	if v.typ == "" {
		return TypeString
	}
	return v.typ
}

// IsNull reports whether the value has no content.
func (v Value) IsNull() bool {
	return v.null || v.typ == ""
}

// Interface returns the authoritative value as int64, string or bool,
// or nil for a null value.
func (v Value) Interface() any {
	if v.IsNull() {
		return nil
	}
	switch v.typ {
	case TypeInt:
		return v.i
	case TypeBool:
		return v.b
	default:
		return v.s
	}
}

func (v Value) AsInt() (int64, bool) {
	if v.typ != TypeInt || v.null {
		return 0, false
	}
	return v.i, true
}

func (v Value) AsString() (string, bool) {
	if v.Type() != TypeString || v.IsNull() {
		return "", false
	}
	return v.s, true
}

func (v Value) AsBool() (bool, bool) {
	if v.typ != TypeBool || v.null {
		return false, false
	}
	return v.b, true
}

// String implements fmt.Stringer. Null values render as "<null>".
func (v Value) String() string {
	if v.IsNull() {
		return "<null>"
	}
	switch v.typ {
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// Columns splits the value into its storage representation.
// Only the pointer matching the returned type may be non-nil.
func (v Value) Columns() (t Type, i *int64, s *string, b *bool) {
	t = v.Type()
	if v.IsNull() {
		return t, nil, nil, nil
	}
	switch t {
	case TypeInt:
		n := v.i
		return t, &n, nil, nil
	case TypeBool:
		f := v.b
		return t, nil, nil, &f
	default:
		str := v.s
		return t, nil, &str, nil
	}
}

// FromColumns rebuilds a value from its storage representation.
// Only the column selected by t is read; an unknown t is treated as TypeString.
func FromColumns(t Type, i *int64, s *string, b *bool) Value {
	switch t {
	case TypeInt:
		if i == nil {
			return NullOf(TypeInt)
		}
		return Int(*i)
	case TypeBool:
		if b == nil {
			return NullOf(TypeBool)
		}
		return Bool(*b)
	default:
		if s == nil {
			return Null()
		}
		return String(*s)
	}
}

// MarshalJSON encodes the authoritative value, or null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes any JSON scalar using the BuildInput rules.
// JSON numbers that are whole and fit into int64 become integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := unmarshalNumber(data, &raw); err != nil {
		return err
	}
	*v = From(raw)
	return nil
}
