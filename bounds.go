package tkv

import (
	"bytes"

	"github.com/andreyvit/tkv/codec"
)

type BoundKind uint8

const (
	Unbounded BoundKind = iota
	Included
	Excluded
)

func (k BoundKind) String() string {
	switch k {
	case Included:
		return "Included"
	case Excluded:
		return "Excluded"
	default:
		return "Unbounded"
	}
}

// Bound is one end of a Range.
type Bound[K any] struct {
	Kind  BoundKind
	Value K
}

func Incl[K any](v K) Bound[K] { return Bound[K]{Included, v} }
func Excl[K any](v K) Bound[K] { return Bound[K]{Excluded, v} }
func NoBound[K any]() Bound[K] { return Bound[K]{} }

// Range is an interval of typed keys. The constructors use mnemonics:
// O means open, I means inclusive, E means exclusive; the first letter is for
// the lower bound, the second for the upper bound.
type Range[K any] struct {
	Start Bound[K]
	End   Bound[K]
}

func RangeOO[K any]() Range[K]         { return Range[K]{} }
func RangeIO[K any](lo K) Range[K]     { return Range[K]{Start: Incl(lo)} }
func RangeEO[K any](lo K) Range[K]     { return Range[K]{Start: Excl(lo)} }
func RangeOI[K any](hi K) Range[K]     { return Range[K]{End: Incl(hi)} }
func RangeOE[K any](hi K) Range[K]     { return Range[K]{End: Excl(hi)} }
func RangeII[K any](lo, hi K) Range[K] { return Range[K]{Incl(lo), Incl(hi)} }
func RangeIE[K any](lo, hi K) Range[K] { return Range[K]{Incl(lo), Excl(hi)} }
func RangeEI[K any](lo, hi K) Range[K] { return Range[K]{Excl(lo), Incl(hi)} }
func RangeEE[K any](lo, hi K) Range[K] { return Range[K]{Excl(lo), Excl(hi)} }

// rawBound is an encoded bound. It owns its bytes.
type rawBound struct {
	kind BoundKind
	key  []byte
}

// rawInterval is an encoded range, optionally restricted to keys with the
// given prefix.
type rawInterval struct {
	start     rawBound
	end       rawBound
	prefix    []byte
	hasPrefix bool
}

var fullInterval = rawInterval{}

func encodeBound[K any](kc codec.Encoder[K], b Bound[K]) (rawBound, error) {
	if b.Kind == Unbounded {
		return rawBound{}, nil
	}
	data, err := encode(kc, b.Value)
	if err != nil {
		return rawBound{}, err
	}
	return rawBound{b.Kind, bytes.Clone(data)}, nil
}

func encodeRange[K any](kc codec.Encoder[K], r Range[K]) (rawInterval, error) {
	start, err := encodeBound(kc, r.Start)
	if err != nil {
		return rawInterval{}, err
	}
	end, err := encodeBound(kc, r.End)
	if err != nil {
		return rawInterval{}, err
	}
	return rawInterval{start: start, end: end}, nil
}

// prefixInterval covers exactly the keys starting with prefix:
// [prefix, successor) or [prefix, ∞) when prefix has no successor.
func prefixInterval(prefix []byte) rawInterval {
	prefix = bytes.Clone(prefix)
	ival := rawInterval{
		start:     rawBound{Included, prefix},
		prefix:    prefix,
		hasPrefix: true,
	}
	if succ := prefixSuccessor(prefix); succ != nil {
		ival.end = rawBound{Excluded, succ}
	}
	return ival
}

func encodePrefix[K any](kc codec.Encoder[K], prefix K) (rawInterval, error) {
	data, err := encode(kc, prefix)
	if err != nil {
		return rawInterval{}, err
	}
	return prefixInterval(data), nil
}

// aboveStart reports whether k satisfies the lower bound.
func (ival *rawInterval) aboveStart(k []byte) bool {
	switch ival.start.kind {
	case Included:
		return bytes.Compare(k, ival.start.key) >= 0
	case Excluded:
		return bytes.Compare(k, ival.start.key) > 0
	default:
		return true
	}
}

// belowEnd reports whether k satisfies the upper bound.
func (ival *rawInterval) belowEnd(k []byte) bool {
	switch ival.end.kind {
	case Included:
		return bytes.Compare(k, ival.end.key) <= 0
	case Excluded:
		return bytes.Compare(k, ival.end.key) < 0
	default:
		return true
	}
}

func (ival *rawInterval) contains(k []byte) bool {
	if ival.hasPrefix && !bytes.HasPrefix(k, ival.prefix) {
		return false
	}
	return ival.aboveStart(k) && ival.belowEnd(k)
}
