package codec

import (
	"bytes"
	"unicode/utf8"
)

// Bytes passes byte strings through unchanged. Decoded slices borrow the
// storage engine's memory.
type Bytes struct{}

func (Bytes) Encode(v []byte) ([]byte, error)    { return v, nil }
func (Bytes) Decode(data []byte) ([]byte, error) { return data, nil }
func (Bytes) String() string                     { return "Bytes" }

// OwnedBytes is like Bytes, but decoding copies the data.
type OwnedBytes struct{}

func (OwnedBytes) Encode(v []byte) ([]byte, error) { return v, nil }
func (OwnedBytes) Decode(data []byte) ([]byte, error) {
	return bytes.Clone(data), nil
}
func (OwnedBytes) String() string { return "OwnedBytes" }

// Str stores UTF-8 strings. Decoding rejects invalid UTF-8.
type Str struct{}

func (Str) Encode(v string) ([]byte, error) { return []byte(v), nil }
func (Str) Decode(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrInvalidUTF8
	}
	return string(data), nil
}
func (Str) String() string { return "Str" }

// Unit stores an empty value. Decoding anything but an empty byte string fails.
type Unit struct{}

func (Unit) Encode(struct{}) ([]byte, error) { return []byte{}, nil }
func (Unit) Decode(data []byte) (struct{}, error) {
	if len(data) != 0 {
		return struct{}{}, lengthErr(0, len(data))
	}
	return struct{}{}, nil
}
func (Unit) Width() int     { return 0 }
func (Unit) String() string { return "Unit" }

// Ignore decodes any byte string into nothing without looking at it. Used to
// walk entries whose content is irrelevant, like when deleting a range.
type Ignore struct{}

func (Ignore) Encode(struct{}) ([]byte, error) { return []byte{}, nil }
func (Ignore) Decode([]byte) (struct{}, error) { return struct{}{}, nil }
func (Ignore) String() string                  { return "Ignore" }

// Bool stores a single 0 or 1 byte.
type Bool struct{}

func (Bool) Encode(v bool) ([]byte, error) {
	if v {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (Bool) Decode(data []byte) (bool, error) {
	if len(data) != 1 {
		return false, lengthErr(1, len(data))
	}
	switch data[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errInvalidBool(data[0])
	}
}
func (Bool) Width() int     { return 1 }
func (Bool) String() string { return "Bool" }
