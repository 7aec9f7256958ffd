package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// Order selects the byte order of the fixed-width numeric codecs.
type Order uint8

const (
	// BigEndian encodings sort in numeric order. Signed values get their sign
	// bit flipped so that negative numbers sort before positive ones.
	BigEndian Order = iota

	// LittleEndian encodings are plain two's complement little-endian bytes.
	// They do not sort in numeric order and are unsuitable for range queries.
	LittleEndian
)

func (o Order) String() string {
	if o == LittleEndian {
		return "LE"
	}
	return "BE"
}

type unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

type signed interface {
	~int8 | ~int16 | ~int32 | ~int64
}

type float interface {
	~float32 | ~float64
}

// Uint encodes unsigned integers as fixed-width byte strings.
type Uint[T unsigned] struct {
	Order Order
}

// Int encodes signed integers as fixed-width byte strings.
type Int[T signed] struct {
	Order Order
}

// Float encodes floating-point numbers so that big-endian encodings sort in
// numeric order (NaNs sort after +Inf, or before -Inf when negative).
type Float[T float] struct {
	Order Order
}

var (
	U8  = Uint[uint8]{}
	U16 = Uint[uint16]{}
	U32 = Uint[uint32]{}
	U64 = Uint[uint64]{}
	I8  = Int[int8]{}
	I16 = Int[int16]{}
	I32 = Int[int32]{}
	I64 = Int[int64]{}
	F32 = Float[float32]{}
	F64 = Float[float64]{}

	U16LE = Uint[uint16]{Order: LittleEndian}
	U32LE = Uint[uint32]{Order: LittleEndian}
	U64LE = Uint[uint64]{Order: LittleEndian}
	I16LE = Int[int16]{Order: LittleEndian}
	I32LE = Int[int32]{Order: LittleEndian}
	I64LE = Int[int64]{Order: LittleEndian}
)

func (c Uint[T]) Width() int {
	var v T
	return int(unsafe.Sizeof(v))
}

func (c Uint[T]) Encode(v T) ([]byte, error) {
	return putFixed(make([]byte, c.Width()), uint64(v), c.Order), nil
}

func (c Uint[T]) Decode(data []byte) (T, error) {
	n := c.Width()
	if len(data) != n {
		return 0, lengthErr(n, len(data))
	}
	return T(getFixed(data, c.Order)), nil
}

func (c Uint[T]) String() string {
	return fmt.Sprintf("U%d%s", c.Width()*8, orderSuffix(c.Order))
}

func (c Int[T]) Width() int {
	var v T
	return int(unsafe.Sizeof(v))
}

func (c Int[T]) signBit() uint64 {
	return 1 << (c.Width()*8 - 1)
}

func (c Int[T]) Encode(v T) ([]byte, error) {
	u := uint64(v) & widthMask(c.Width())
	if c.Order == BigEndian {
		u ^= c.signBit()
	}
	return putFixed(make([]byte, c.Width()), u, c.Order), nil
}

func (c Int[T]) Decode(data []byte) (T, error) {
	n := c.Width()
	if len(data) != n {
		return 0, lengthErr(n, len(data))
	}
	u := getFixed(data, c.Order)
	if c.Order == BigEndian {
		u ^= c.signBit()
	}
	// sign-extend from the encoded width
	shift := 64 - n*8
	return T(int64(u<<shift) >> shift), nil
}

func (c Int[T]) String() string {
	return fmt.Sprintf("I%d%s", c.Width()*8, orderSuffix(c.Order))
}

func (c Float[T]) Width() int {
	var v T
	return int(unsafe.Sizeof(v))
}

func (c Float[T]) Encode(v T) ([]byte, error) {
	var u uint64
	if c.Width() == 4 {
		u = uint64(math.Float32bits(float32(v)))
	} else {
		u = math.Float64bits(float64(v))
	}
	if c.Order == BigEndian {
		sign := uint64(1) << (c.Width()*8 - 1)
		if u&sign != 0 {
			u = ^u & widthMask(c.Width())
		} else {
			u |= sign
		}
	}
	return putFixed(make([]byte, c.Width()), u, c.Order), nil
}

func (c Float[T]) Decode(data []byte) (T, error) {
	n := c.Width()
	if len(data) != n {
		return 0, lengthErr(n, len(data))
	}
	u := getFixed(data, c.Order)
	if c.Order == BigEndian {
		sign := uint64(1) << (n*8 - 1)
		if u&sign != 0 {
			u &^= sign
		} else {
			u = ^u & widthMask(n)
		}
	}
	if n == 4 {
		return T(math.Float32frombits(uint32(u))), nil
	}
	return T(math.Float64frombits(u)), nil
}

func (c Float[T]) String() string {
	return fmt.Sprintf("F%d%s", c.Width()*8, orderSuffix(c.Order))
}

func widthMask(n int) uint64 {
	if n >= 8 {
		return math.MaxUint64
	}
	return 1<<(n*8) - 1
}

func putFixed(buf []byte, v uint64, o Order) []byte {
	switch len(buf) {
	case 1:
		buf[0] = byte(v)
	case 2:
		byteOrder(o).PutUint16(buf, uint16(v))
	case 4:
		byteOrder(o).PutUint32(buf, uint32(v))
	case 8:
		byteOrder(o).PutUint64(buf, v)
	default:
		panic(fmt.Errorf("unsupported width %d", len(buf)))
	}
	return buf
}

func getFixed(data []byte, o Order) uint64 {
	switch len(data) {
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(byteOrder(o).Uint16(data))
	case 4:
		return uint64(byteOrder(o).Uint32(data))
	case 8:
		return byteOrder(o).Uint64(data)
	default:
		panic(fmt.Errorf("unsupported width %d", len(data)))
	}
}

func byteOrder(o Order) binary.ByteOrder {
	if o == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func orderSuffix(o Order) string {
	if o == LittleEndian {
		return "LE"
	}
	return ""
}
