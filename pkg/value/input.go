package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Input is a value tagged with its type and the storage field it belongs to.
type Input struct {
	Type  Type   `json:"type"`
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// BuildInput converts a loosely typed value into a tagged Input.
// Inputs that are not an integer, string or bool are coerced to the string
// variant instead of being rejected.
func BuildInput(raw any) Input {
	v := From(raw)
	return Input{
		Type:  v.Type(),
		Field: FieldName(v.Type()),
		Value: v,
	}
}

// From converts raw into a Value using the BuildInput rules.
func From(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case *Value:
		if x == nil {
			return Null()
		}
		return *x
	case bool:
		return Bool(x)
	case *bool:
		if x == nil {
			return Null()
		}
		return Bool(*x)
	case string:
		return String(x)
	case *string:
		if x == nil {
			return Null()
		}
		return String(*x)
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case *int64:
		if x == nil {
			return Null()
		}
		return Int(*x)
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return Int(int64(x))
	case uint16:
		return Int(int64(x))
	case uint32:
		return Int(int64(x))
	case uint64:
		return fromUint(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return Int(n)
		}
		return String(x.String())
	case map[string]any, []any:
		if data, err := json.Marshal(x); err == nil {
			return String(string(data))
		}
		return String(fmt.Sprint(x))
	default:
		return String(fmt.Sprint(x))
	}
}

func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return String(strconv.FormatUint(u, 10))
	}
	return Int(int64(u))
}

func unmarshalNumber(data []byte, dst *any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dst)
}
