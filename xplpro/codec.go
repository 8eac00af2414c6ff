package xplpro

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies the shape of a decoded dataref value.
type ValueKind uint8

const (
	// KindInt is a single 32-bit signed integer.
	KindInt ValueKind = iota
	// KindFloat is a single 32-bit floating point value.
	KindFloat
	// KindDouble is a single 64-bit floating point value. The wire shape is
	// identical to KindFloat; the kind is reported for handles the application
	// subscribed with a forced TypeDouble.
	KindDouble
	// KindIntArray is one element of an integer array dataref.
	KindIntArray
	// KindFloatArray is one element of a float array dataref.
	KindFloatArray
	// KindString is a length-prefixed string dataref.
	KindString
)

// String returns the string representation of the kind.
func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindIntArray:
		return "int-array"
	case KindFloatArray:
		return "float-array"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is one decoded dataref update delivered to the application's OnValue
// callback. The engine does not retain it past the callback invocation.
//
// Element is meaningful for the array kinds only. Int carries KindInt and
// KindIntArray payloads, Float carries KindFloat, KindDouble and
// KindFloatArray payloads, and Str carries KindString payloads.
type Value struct {
	Handle  int
	Kind    ValueKind
	Element int
	Int     int64
	Float   float64
	Str     string
}

// --- Field encoding ---

// encodeInt renders a signed integer wire field.
func encodeInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// encodeFloat renders a floating point wire field with the given number of
// decimal digits of precision.
func encodeFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}

// encodeString renders a length-prefixed string as two wire fields.
func encodeString(s string) (length, raw string) {
	return strconv.Itoa(len(s)), s
}

// --- Field decoding ---
//
// Decoding is strict: a field that fails to parse, or a string whose declared
// length does not match the available bytes, yields an error and the whole
// frame is dropped. No partial values ever reach the application.

func parseInt(field string) (int64, error) {
	v, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: integer %q", ErrDecodeField, field)
	}

	return v, nil
}

func parseFloat(field string) (float64, error) {
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: float %q", ErrDecodeField, field)
	}

	return v, nil
}

// parseString consumes a length field and the raw remainder of the frame
// payload. The remainder may contain field separators; the declared length
// must match it exactly.
func parseString(length, raw string) (string, error) {
	n, err := parseInt(length)
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) != len(raw) {
		return "", fmt.Errorf("%w: string length %d does not match %d available bytes",
			ErrDecodeField, n, len(raw))
	}

	return raw, nil
}

// fields splits a frame payload into exactly n separator-delimited fields.
// It returns an error if the payload has fewer or more fields than expected.
func fields(payload string, n int) ([]string, error) {
	parts := strings.Split(payload, string(rune(fieldSep)))
	if len(parts) != n {
		return nil, fmt.Errorf("%w: want %d fields, got %d", ErrDecodeField, n, len(parts))
	}

	return parts, nil
}

// fieldsTail splits a frame payload into n-1 leading fields plus the raw,
// unsplit remainder as field n. Used for string payloads, which may contain
// separator bytes.
func fieldsTail(payload string, n int) ([]string, error) {
	parts := strings.SplitN(payload, string(rune(fieldSep)), n)
	if len(parts) != n {
		return nil, fmt.Errorf("%w: want at least %d fields, got %d", ErrDecodeField, n, len(parts))
	}

	return parts, nil
}

// --- Update frame decoding ---

// decodeScalarUpdate decodes a "handle, value" update frame.
func decodeScalarUpdate(payload string, kind ValueKind) (Value, error) {
	parts, err := fields(payload, 2)
	if err != nil {
		return Value{}, err
	}

	handle, err := parseInt(parts[0])
	if err != nil {
		return Value{}, err
	}

	v := Value{Handle: int(handle), Kind: kind}
	switch kind {
	case KindInt:
		v.Int, err = parseInt(parts[1])
	default:
		v.Float, err = parseFloat(parts[1])
	}
	if err != nil {
		return Value{}, err
	}

	return v, nil
}

// decodeArrayUpdate decodes a "handle, element, value" update frame.
func decodeArrayUpdate(payload string, kind ValueKind) (Value, error) {
	parts, err := fields(payload, 3)
	if err != nil {
		return Value{}, err
	}

	handle, err := parseInt(parts[0])
	if err != nil {
		return Value{}, err
	}
	element, err := parseInt(parts[1])
	if err != nil {
		return Value{}, err
	}
	if element < 0 {
		return Value{}, fmt.Errorf("%w: negative array element %d", ErrDecodeField, element)
	}

	v := Value{Handle: int(handle), Kind: kind, Element: int(element)}
	switch kind {
	case KindIntArray:
		v.Int, err = parseInt(parts[2])
	default:
		v.Float, err = parseFloat(parts[2])
	}
	if err != nil {
		return Value{}, err
	}

	return v, nil
}

// decodeStringUpdate decodes a "handle, length, bytes" update frame.
func decodeStringUpdate(payload string) (Value, error) {
	parts, err := fieldsTail(payload, 3)
	if err != nil {
		return Value{}, err
	}

	handle, err := parseInt(parts[0])
	if err != nil {
		return Value{}, err
	}
	str, err := parseString(parts[1], parts[2])
	if err != nil {
		return Value{}, err
	}

	return Value{Handle: int(handle), Kind: KindString, Str: str}, nil
}
