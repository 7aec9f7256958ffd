package tkv

import (
	"bytes"
	"iter"

	"github.com/andreyvit/tkv/codec"
)

type iterState uint8

const (
	iterUnstarted iterState = iota
	iterPositioned
	iterExhausted
)

// rawIter walks the entries of an interval, forward or backward. Termination
// is decided by comparing every visited key against the interval, never by a
// count, so deleting the current entry does not disturb the walk.
type rawIter struct {
	c     *Cursor
	ival  rawInterval
	rev   bool
	state iterState
}

func (it *rawIter) advance() (Entry, bool, error) {
	var e Entry
	var ok bool
	var err error
	switch it.state {
	case iterExhausted:
		return Entry{}, false, nil
	case iterUnstarted:
		if it.rev {
			e, ok, err = it.seekEnd()
		} else {
			e, ok, err = it.seekStart()
		}
	default:
		if it.rev {
			e, ok, err = it.c.MoveToPrev()
		} else {
			e, ok, err = it.c.MoveToNext()
		}
	}
	if err != nil || !ok || !it.ival.contains(e.key) {
		it.state = iterExhausted
		return Entry{}, false, err
	}
	it.state = iterPositioned
	return e, true, nil
}

func (it *rawIter) seekStart() (Entry, bool, error) {
	start := it.ival.start
	if start.kind == Unbounded {
		return it.c.MoveToFirst()
	}
	e, ok, err := it.c.MoveToKeyAtOrAfter(start.key)
	if err == nil && ok && start.kind == Excluded && bytes.Equal(e.key, start.key) {
		return it.c.MoveToNext()
	}
	return e, ok, err
}

// seekEnd finds the last entry within the upper bound: seek to the bound,
// then step back once unless it landed exactly on an included bound.
func (it *rawIter) seekEnd() (Entry, bool, error) {
	end := it.ival.end
	if end.kind == Unbounded {
		return it.c.MoveToLast()
	}
	e, ok, err := it.c.MoveToKeyAtOrAfter(end.key)
	if err != nil {
		return Entry{}, false, err
	}
	if !ok {
		return it.c.MoveToLast()
	}
	if end.kind == Included && bytes.Equal(e.key, end.key) {
		return e, true, nil
	}
	return it.c.MoveToPrev()
}

// Iter is a lazy sequence of decoded entries. Call Next until it returns
// false, then check Err. Iterators must be closed; Next closes the iterator
// once it is exhausted, and the All, Keys and Values adapters close it on
// every exit path.
//
// Values decoded with borrowing codecs (like codec.Bytes) are only valid
// until the next call to Next.
type Iter[K, V any] struct {
	raw   rawIter
	kc    codec.Decoder[K]
	vc    codec.Decoder[V]
	entry Entry
	key   K
	value V
	err   error
}

// KV is a decoded entry.
type KV[K, V any] struct {
	Key   K
	Value V
}

func newIter[K, V any](txh Txish, tbl Table, kc codec.Decoder[K], vc codec.Decoder[V], ival rawInterval, rev bool) (*Iter[K, V], error) {
	c, err := OpenCursor(txh, tbl)
	if err != nil {
		return nil, err
	}
	return &Iter[K, V]{
		raw: rawIter{c: c, ival: ival, rev: rev},
		kc:  kc,
		vc:  vc,
	}, nil
}

// Next advances to the next entry. It returns false when the iterator is
// exhausted or has failed; iteration cannot be resumed after a failure.
func (it *Iter[K, V]) Next() bool {
	if it.err != nil || it.raw.c.closed {
		return false
	}
	e, ok, err := it.raw.advance()
	if err != nil {
		it.err = err
		return false
	}
	if !ok {
		it.Close()
		return false
	}
	it.entry = e
	it.key, err = decode(it.kc, e.key)
	if err == nil {
		it.value, err = decode(it.vc, e.value)
	}
	if err != nil {
		it.err = it.raw.c.tx.decodeFailed(err)
		it.raw.state = iterExhausted
		return false
	}
	return true
}

// Key returns the key of the current entry.
func (it *Iter[K, V]) Key() K {
	return it.key
}

// Value returns the value of the current entry.
func (it *Iter[K, V]) Value() V {
	return it.value
}

// Entry returns the raw bytes of the current entry.
func (it *Iter[K, V]) Entry() Entry {
	return it.entry
}

// Err returns the error that stopped the iteration, if any.
func (it *Iter[K, V]) Err() error {
	return it.err
}

// Close releases the cursor. It's fine to call Close multiple times.
func (it *Iter[K, V]) Close() {
	it.raw.c.Close()
}

// All returns a single-use sequence of the remaining entries. Check Err after
// the loop.
func (it *Iter[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		defer it.Close()
		for it.Next() {
			if !yield(it.key, it.value) {
				return
			}
		}
	}
}

// Keys is like All, but yields only keys.
func (it *Iter[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		defer it.Close()
		for it.Next() {
			if !yield(it.key) {
				return
			}
		}
	}
}

// Values is like All, but yields only values.
func (it *Iter[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		defer it.Close()
		for it.Next() {
			if !yield(it.value) {
				return
			}
		}
	}
}

// Collect reads all remaining entries and closes the iterator.
func (it *Iter[K, V]) Collect() ([]KV[K, V], error) {
	defer it.Close()
	var result []KV[K, V]
	for it.Next() {
		result = append(result, KV[K, V]{it.key, it.value})
	}
	return result, it.err
}

// RwIter is an iterator of a write transaction that can replace or delete the
// current entry. Replacing or deleting invalidates the current key and value
// if they were decoded with a borrowing codec.
type RwIter[K, V any] struct {
	Iter[K, V]
	c  *RwCursor
	ve codec.Encoder[V]
}

func newRwIter[K, V any](tx *RwTx, tbl Table, kc codec.Decoder[K], vc codec.Codec[V], ival rawInterval, rev bool) (*RwIter[K, V], error) {
	c, err := OpenRwCursor(tx, tbl)
	if err != nil {
		return nil, err
	}
	return &RwIter[K, V]{
		Iter: Iter[K, V]{
			raw: rawIter{c: &c.Cursor, ival: ival, rev: rev},
			kc:  kc,
			vc:  vc,
		},
		c:  c,
		ve: vc,
	}, nil
}

// PutCurrent replaces the value of the current entry. Returns false if the
// iterator is not positioned at an entry.
func (it *RwIter[K, V]) PutCurrent(value V) (bool, error) {
	if it.c.closed {
		return false, nil
	}
	data, err := encode(it.ve, value)
	if err != nil {
		return false, err
	}
	return it.c.ReplaceCurrent(data)
}

// PutCurrentRaw replaces the value of the current entry with raw bytes.
func (it *RwIter[K, V]) PutCurrentRaw(data []byte) (bool, error) {
	if it.c.closed {
		return false, nil
	}
	return it.c.ReplaceCurrent(data)
}

// PutCurrentReserved replaces the value of the current entry with size bytes
// written by write in place. See PutReserved.
func (it *RwIter[K, V]) PutCurrentReserved(size int, write func(w *ReservedSpace) error) (bool, error) {
	if it.c.closed {
		return false, nil
	}
	return it.c.ReplaceCurrentReserved(size, write)
}

// DelCurrent deletes the current entry; the next call to Next continues with
// the entry that followed it. Returns false if the iterator is not positioned
// at an entry, including after it has been exhausted or closed.
func (it *RwIter[K, V]) DelCurrent() (bool, error) {
	if it.c.closed {
		return false, nil
	}
	return it.c.DeleteCurrent()
}
