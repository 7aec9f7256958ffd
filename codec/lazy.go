package codec

// Lazy holds undecoded bytes and decodes them on demand. It borrows the
// entry's memory just like Bytes does.
type Lazy[T any] struct {
	data []byte
	dec  Decoder[T]
}

// Raw returns the undecoded bytes.
func (l Lazy[T]) Raw() []byte {
	return l.data
}

func (l Lazy[T]) Decode() (T, error) {
	return l.dec.Decode(l.data)
}

// LazyDecode defers decoding until Lazy.Decode is called, so that iterating
// over large values the caller may skip costs nothing.
type LazyDecode[T any] struct {
	Inner Decoder[T]
}

func (c LazyDecode[T]) Decode(data []byte) (Lazy[T], error) {
	return Lazy[T]{data: data, dec: c.Inner}, nil
}

// Encode writes the raw bytes back unchanged.
func (c LazyDecode[T]) Encode(l Lazy[T]) ([]byte, error) {
	return l.data, nil
}

func (c LazyDecode[T]) String() string {
	return "LazyDecode[" + Name(c.Inner) + "]"
}
