package value_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/value"
)

type customID struct{ n int }

func (c customID) String() string { return "custom" }

func TestBuildInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       any
		wantType  value.Type
		wantField string
		want      any
	}{
		{"int", 42, value.TypeInt, value.FieldInteger, int64(42)},
		{"int8", int8(-3), value.TypeInt, value.FieldInteger, int64(-3)},
		{"uint32", uint32(7), value.TypeInt, value.FieldInteger, int64(7)},
		{"uint64 overflow", uint64(math.MaxUint64), value.TypeString, value.FieldString, "18446744073709551615"},
		{"string", "x", value.TypeString, value.FieldString, "x"},
		{"empty string", "", value.TypeString, value.FieldString, ""},
		{"bool", true, value.TypeBool, value.FieldBoolean, true},
		{"nil", nil, value.TypeString, value.FieldString, nil},
		{"float coerced", 1.5, value.TypeString, value.FieldString, "1.5"},
		{"json integer", json.Number("12"), value.TypeInt, value.FieldInteger, int64(12)},
		{"json float", json.Number("12.5"), value.TypeString, value.FieldString, "12.5"},
		{"stringer coerced", customID{n: 1}, value.TypeString, value.FieldString, "custom"},
		{"object coerced to json", map[string]any{"a": "b"}, value.TypeString, value.FieldString, `{"a":"b"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := value.BuildInput(tt.raw)
			assert.Equal(t, tt.wantType, in.Type)
			assert.Equal(t, tt.wantField, in.Field)
			assert.Equal(t, tt.want, in.Value.Interface())
		})
	}
}

func TestValueAccessors(t *testing.T) {
	t.Parallel()

	n, ok := value.Int(5).AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)

	_, ok = value.Int(5).AsString()
	assert.False(t, ok)

	s, ok := value.String("on").AsString()
	assert.True(t, ok)
	assert.Equal(t, "on", s)

	b, ok := value.Bool(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	var zero value.Value
	assert.True(t, zero.IsNull())
	assert.Equal(t, value.TypeString, zero.Type())
	assert.Nil(t, zero.Interface())
	assert.Equal(t, "<null>", zero.String())
}

func TestColumnsRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("int", func(t *testing.T) {
		t.Parallel()
		typ, i, s, b := value.Int(42).Columns()
		require.NotNil(t, i)
		assert.Nil(t, s)
		assert.Nil(t, b)
		assert.Equal(t, value.Int(42), value.FromColumns(typ, i, s, b))
	})

	t.Run("null string", func(t *testing.T) {
		t.Parallel()
		typ, i, s, b := value.Null().Columns()
		assert.Equal(t, value.TypeString, typ)
		assert.Nil(t, i)
		assert.Nil(t, s)
		assert.Nil(t, b)
		assert.True(t, value.FromColumns(typ, i, s, b).IsNull())
	})

	t.Run("only the typed column is authoritative", func(t *testing.T) {
		t.Parallel()
		n := int64(9)
		str := "ignored"
		v := value.FromColumns(value.TypeInt, &n, &str, nil)
		assert.Equal(t, int64(9), v.Interface())
	})

	t.Run("unknown type reads string column", func(t *testing.T) {
		t.Parallel()
		str := "legacy"
		v := value.FromColumns(value.Type("float"), nil, &str, nil)
		assert.Equal(t, value.TypeString, v.Type())
		assert.Equal(t, "legacy", v.Interface())
	})
}

func TestValueJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(struct {
		A value.Value `json:"a"`
		B value.Value `json:"b"`
	}{A: value.Int(3), B: value.Null()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":3,"b":null}`, string(data))

	var got struct {
		N value.Value `json:"n"`
		F value.Value `json:"f"`
		S value.Value `json:"s"`
		B value.Value `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"n":7,"f":2.5,"s":"x","b":false}`), &got))
	assert.Equal(t, value.Int(7), got.N)
	assert.Equal(t, value.String("2.5"), got.F)
	assert.Equal(t, value.String("x"), got.S)
	assert.Equal(t, value.Bool(false), got.B)
}

func TestFieldName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, value.FieldInteger, value.FieldName(value.TypeInt))
	assert.Equal(t, value.FieldBoolean, value.FieldName(value.TypeBool))
	assert.Equal(t, value.FieldString, value.FieldName(value.TypeString))
	assert.Equal(t, value.FieldString, value.FieldName(value.Type("other")))
}
