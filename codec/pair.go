package codec

import "fmt"

// Pair is a two-part composite value.
type Pair[A, B any] struct {
	First  A
	Second B
}

// PairOf concatenates two encodings. The first codec must be fixed-width so
// that the split point is known when decoding; prefix queries over a PairOf
// key can then use a Pair with just the First part encoded via the first
// codec.
type PairOf[A, B any] struct {
	First  Codec[A]
	Second Codec[B]
}

func (c PairOf[A, B]) firstWidth() (int, error) {
	w, ok := c.First.(Widther)
	if !ok {
		return 0, fmt.Errorf("pair: first codec %s is not fixed-width", Name(c.First))
	}
	return w.Width(), nil
}

func (c PairOf[A, B]) Encode(v Pair[A, B]) ([]byte, error) {
	n, err := c.firstWidth()
	if err != nil {
		return nil, err
	}
	a, err := c.First.Encode(v.First)
	if err != nil {
		return nil, err
	}
	if len(a) != n {
		return nil, lengthErr(n, len(a))
	}
	b, err := c.Second.Encode(v.Second)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...), nil
}

func (c PairOf[A, B]) Decode(data []byte) (Pair[A, B], error) {
	var v Pair[A, B]
	n, err := c.firstWidth()
	if err != nil {
		return v, err
	}
	if len(data) < n {
		return v, lengthErr(n, len(data))
	}
	v.First, err = c.First.Decode(data[:n])
	if err != nil {
		return v, err
	}
	v.Second, err = c.Second.Decode(data[n:])
	return v, err
}

func (c PairOf[A, B]) String() string {
	return "PairOf[" + Name(c.First) + ", " + Name(c.Second) + "]"
}
