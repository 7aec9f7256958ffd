/*
Package codec maps typed values to and from the byte strings stored in tables.

An Encoder turns a value into bytes, a Decoder turns bytes back into a value.
Keys are compared byte-lexicographically by the storage engine, so a key codec
must produce encodings whose byte order matches the intended order of the
values if range queries are to make sense. The big-endian integer codecs, the
float codecs and Str all have this property; the little-endian ones don't.

Decoders may return values that alias the input slice (Bytes does). Such
values are only valid as long as the entry they were decoded from, that is,
until the cursor moves or the transaction mutates.
*/
package codec

import (
	"errors"
	"fmt"
)

// Encoder converts a typed value into its byte representation. The returned
// slice may alias memory owned by v.
type Encoder[T any] interface {
	Encode(v T) ([]byte, error)
}

// Decoder converts bytes into a typed value. The result may alias data.
type Decoder[T any] interface {
	Decode(data []byte) (T, error)
}

// Codec is both an Encoder and a Decoder for T.
type Codec[T any] interface {
	Encoder[T]
	Decoder[T]
}

// Widther is implemented by codecs whose encodings always have the same length.
type Widther interface {
	Width() int
}

var (
	ErrInvalidLength = errors.New("invalid length")
	ErrInvalidUTF8   = errors.New("invalid UTF-8")
	ErrChecksum      = errors.New("checksum mismatch")
)

func lengthErr(want, got int) error {
	return fmt.Errorf("%w: wanted %d bytes, got %d", ErrInvalidLength, want, got)
}

// Name returns a short human-readable name of a codec for error messages.
func Name(c any) string {
	if s, ok := c.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", c)
}

func errInvalidBool(b byte) error {
	return fmt.Errorf("invalid bool byte 0x%02x", b)
}
