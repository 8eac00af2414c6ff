package xplpro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_IntRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 42, -2147483648, 2147483647} {
		got, err := parseInt(encodeInt(v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestCodec_FloatRoundTrip(t *testing.T) {
	const precision = 4

	for _, v := range []float64{0, 1.5, -1.5, 3.1416, -9999.0625, 0.0001} {
		got, err := parseFloat(encodeFloat(v, precision))
		require.NoError(t, err)
		assert.InDelta(t, v, got, 0.5e-4, "value %v must round-trip within precision", v)
	}
}

func TestCodec_StringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "B738", "hello,world", "with spaces and , commas"} {
		length, raw := encodeString(s)
		got, err := parseString(length, raw)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestCodec_ParseIntRejectsGarbage(t *testing.T) {
	for _, field := range []string{"", "abc", "1.5", "4x", " 4"} {
		_, err := parseInt(field)
		require.ErrorIs(t, err, ErrDecodeField, "field %q", field)
	}
}

func TestCodec_ParseFloatRejectsGarbage(t *testing.T) {
	for _, field := range []string{"", "abc", "1..5", "--1"} {
		_, err := parseFloat(field)
		require.ErrorIs(t, err, ErrDecodeField, "field %q", field)
	}
}

func TestCodec_ParseStringLengthMismatch(t *testing.T) {
	_, err := parseString("5", "toolong")
	assert.ErrorIs(t, err, ErrDecodeField)

	_, err = parseString("-1", "")
	assert.ErrorIs(t, err, ErrDecodeField)

	_, err = parseString("x", "abc")
	assert.ErrorIs(t, err, ErrDecodeField)
}

func TestDecodeScalarUpdate(t *testing.T) {
	v, err := decodeScalarUpdate("42,7", KindInt)
	require.NoError(t, err)
	assert.Equal(t, Value{Handle: 42, Kind: KindInt, Int: 7}, v)

	v, err = decodeScalarUpdate("42,1.5000", KindFloat)
	require.NoError(t, err)
	assert.Equal(t, 42, v.Handle)
	assert.Equal(t, KindFloat, v.Kind)
	assert.InDelta(t, 1.5, v.Float, 1e-9)
}

func TestDecodeScalarUpdate_Malformed(t *testing.T) {
	tests := []string{
		"42",          // missing value
		"42,7,9",      // extra field
		"x,7",         // bad handle
		"42,notanint", // bad value
		"",
	}
	for _, payload := range tests {
		_, err := decodeScalarUpdate(payload, KindInt)
		assert.ErrorIs(t, err, ErrDecodeField, "payload %q", payload)
	}
}

func TestDecodeArrayUpdate(t *testing.T) {
	v, err := decodeArrayUpdate("42,3,7", KindIntArray)
	require.NoError(t, err)
	assert.Equal(t, Value{Handle: 42, Kind: KindIntArray, Element: 3, Int: 7}, v)

	v, err = decodeArrayUpdate("42,0,-2.2500", KindFloatArray)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Element)
	assert.InDelta(t, -2.25, v.Float, 1e-9)

	_, err = decodeArrayUpdate("42,-1,7", KindIntArray)
	assert.ErrorIs(t, err, ErrDecodeField, "negative element must be rejected")
}

func TestDecodeStringUpdate(t *testing.T) {
	v, err := decodeStringUpdate("42,11,hello,world")
	require.NoError(t, err)
	assert.Equal(t, 42, v.Handle)
	assert.Equal(t, KindString, v.Kind)
	assert.Equal(t, "hello,world", v.Str)

	// Declared length must match the available bytes exactly.
	_, err = decodeStringUpdate("42,99,short")
	assert.ErrorIs(t, err, ErrDecodeField)

	_, err = decodeStringUpdate("42,5")
	assert.ErrorIs(t, err, ErrDecodeField)
}

func TestValueKind_String(t *testing.T) {
	assert.Equal(t, "int", KindInt.String())
	assert.Equal(t, "double", KindDouble.String())
	assert.Equal(t, "string", KindString.String())
	assert.Equal(t, "unknown", ValueKind(200).String())
}
