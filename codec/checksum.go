package codec

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

const checksumLen = 8

// Checksummed appends an xxhash64 of the inner encoding and verifies it on
// decode, turning silent corruption into ErrChecksum.
//
// The trailer breaks ordering unless the inner encoding is fixed-width, so
// prefer it for values rather than keys.
type Checksummed[T any] struct {
	Inner Codec[T]
}

func (c Checksummed[T]) Encode(v T) ([]byte, error) {
	data, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data)+checksumLen)
	n := copy(out, data)
	binary.BigEndian.PutUint64(out[n:], xxhash.Sum64(data))
	return out, nil
}

func (c Checksummed[T]) Decode(data []byte) (T, error) {
	if len(data) < checksumLen {
		var zero T
		return zero, lengthErr(checksumLen, len(data))
	}
	n := len(data) - checksumLen
	payload := data[:n]
	if binary.BigEndian.Uint64(data[n:]) != xxhash.Sum64(payload) {
		var zero T
		return zero, ErrChecksum
	}
	return c.Inner.Decode(payload)
}

func (c Checksummed[T]) String() string {
	return "Checksummed[" + Name(c.Inner) + "]"
}
