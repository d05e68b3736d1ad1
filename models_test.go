package asqlite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAnyConversions(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null()},
		{"bool true", true, Integer(1)},
		{"bool false", false, Integer(0)},
		{"int", 42, Integer(42)},
		{"int8", int8(-7), Integer(-7)},
		{"int64", int64(1 << 40), Integer(1 << 40)},
		{"uint16", uint16(9), Integer(9)},
		{"uint64 in range", uint64(5), Integer(5)},
		{"float32", float32(1.5), Real(1.5)},
		{"float64", 2.25, Real(2.25)},
		{"string", "hello", Text("hello")},
		{"bytes", []byte{1, 2}, Blob([]byte{1, 2})},
		{"value passthrough", Real(3.5), Real(3.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAnyRejectsUnsupported(t *testing.T) {
	_, err := FromAny(struct{}{})
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrUnsupportedValue, e.Code)

	_, err = FromAny(uint64(1) << 63)
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrUnsupportedValue, e.Code)
}

func TestNewRowPropagatesConversionErrors(t *testing.T) {
	row, err := NewRow(1, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, Row{Integer(1), Text("a"), Null()}, row)

	_, err = NewRow(1, make(chan int))
	assert.Error(t, err)
}

func TestValueFromDriverUsesDeclaredType(t *testing.T) {
	assert.Equal(t, Integer(7), valueFromDriver(int64(7), "INTEGER"))
	assert.Equal(t, Real(1.5), valueFromDriver(1.5, "REAL"))
	assert.Equal(t, Null(), valueFromDriver(nil, "TEXT"))

	// []byte splits on declared-type affinity
	assert.Equal(t, Text("abc"), valueFromDriver([]byte("abc"), "TEXT"))
	assert.Equal(t, Text("abc"), valueFromDriver([]byte("abc"), "varchar(10)"))
	assert.Equal(t, Text("abc"), valueFromDriver([]byte("abc"), "CLOB"))
	assert.Equal(t, KindBlob, valueFromDriver([]byte("abc"), "BLOB").Kind())
	assert.Equal(t, KindBlob, valueFromDriver([]byte("abc"), "").Kind())
}

func TestValueFromDriverCopiesBlobs(t *testing.T) {
	buf := []byte{1, 2, 3}
	v := valueFromDriver(buf, "")
	buf[0] = 99
	assert.Equal(t, []byte{1, 2, 3}, v.Blob())
}

func TestValueAccessors(t *testing.T) {
	assert.Equal(t, KindNull, Value{}.Kind(), "zero Value is null")
	assert.Equal(t, int64(3), Integer(3).Int64())
	assert.Equal(t, 2.5, Real(2.5).Float64())
	assert.Equal(t, "x", Text("x").Text())
	assert.Equal(t, []byte{9}, Blob([]byte{9}).Blob())
	assert.Nil(t, Null().Any())
	assert.Equal(t, "text(\"x\")", Text("x").String())
}

func TestErrEnginePreservesNativeCode(t *testing.T) {
	err := errEngine(errors.New("plain failure"))
	assert.Equal(t, ErrEngine, err.Code)
	assert.Equal(t, 1, err.EngineCode) // SQLITE_ERROR fallback
	assert.Equal(t, "plain failure", err.Message)
}
