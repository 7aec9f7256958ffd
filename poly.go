package tkv

import (
	"bytes"
	"log/slog"

	"github.com/andreyvit/tkv/codec"
)

func encode[T any](c codec.Encoder[T], v T) ([]byte, error) {
	data, err := c.Encode(v)
	if err != nil {
		return nil, &EncodingError{Codec: codec.Name(c), Err: err}
	}
	return data, nil
}

func decode[T any](c codec.Decoder[T], data []byte) (T, error) {
	v, err := c.Decode(data)
	if err != nil {
		return v, &DecodingError{Codec: codec.Name(c), Data: bytes.Clone(data), Err: err}
	}
	return v, nil
}

func decodeEntry[K, V any](tx *Tx, kc codec.Decoder[K], vc codec.Decoder[V], k, v []byte) (K, V, error) {
	key, err := decode(kc, k)
	if err != nil {
		var zero V
		return key, zero, tx.decodeFailed(err)
	}
	value, err := decode(vc, v)
	if err != nil {
		return key, value, tx.decodeFailed(err)
	}
	return key, value, nil
}

// Get returns the value stored under key.
func Get[K, V any](txh Txish, tbl Table, kc codec.Encoder[K], vc codec.Decoder[V], key K) (V, bool, error) {
	var zero V
	tx := txh.DBTx()
	st, err := tx.table(tbl)
	if err != nil {
		return zero, false, err
	}
	k, err := encode(kc, key)
	if err != nil {
		return zero, false, err
	}
	data := st.Get(k)
	if tx.verbose() {
		tx.logOp("tkv: GET", tbl, hexAttr("key", k), hexAttr("val", data))
	}
	if data == nil {
		return zero, false, nil
	}
	v, err := decode(vc, data)
	if err != nil {
		return zero, false, tx.decodeFailed(err)
	}
	return v, true, nil
}

// GetOrDefault is like Get, but returns def when the key is absent.
func GetOrDefault[K, V any](txh Txish, tbl Table, kc codec.Encoder[K], vc codec.Decoder[V], key K, def V) (V, error) {
	v, found, err := Get(txh, tbl, kc, vc, key)
	if err != nil || !found {
		return def, err
	}
	return v, nil
}

type neighbor uint8

const (
	lowerThan neighbor = iota
	lowerThanOrEqual
	greaterThan
	greaterThanOrEqual
)

func (n neighbor) String() string {
	return [...]string{"LT", "LE", "GT", "GE"}[n]
}

// getNeighbor seeks to key and then adjusts by at most one step.
func getNeighbor[K, V any](txh Txish, tbl Table, kc codec.Codec[K], vc codec.Decoder[V], key K, n neighbor) (K, V, bool, error) {
	var zk K
	var zv V
	tx := txh.DBTx()
	k, err := encode(kc, key)
	if err != nil {
		return zk, zv, false, err
	}
	c, err := OpenCursor(tx, tbl)
	if err != nil {
		return zk, zv, false, err
	}
	defer c.Close()

	e, ok, err := c.MoveToKeyAtOrAfter(k)
	if err != nil {
		return zk, zv, false, err
	}
	exact := ok && bytes.Equal(e.key, k)
	switch n {
	case lowerThan:
		if ok {
			e, ok, err = c.MoveToPrev()
		} else {
			e, ok, err = c.MoveToLast()
		}
	case lowerThanOrEqual:
		if !ok {
			e, ok, err = c.MoveToLast()
		} else if !exact {
			e, ok, err = c.MoveToPrev()
		}
	case greaterThan:
		if exact {
			e, ok, err = c.MoveToNext()
		}
	case greaterThanOrEqual:
	}
	if tx.verbose() {
		tx.logOp("tkv: GET."+n.String(), tbl, hexAttr("key", k), hexAttr("found", e.key))
	}
	if err != nil || !ok {
		return zk, zv, false, err
	}
	rk, rv, err := decodeEntry[K, V](tx, kc, vc, e.key, e.value)
	if err != nil {
		return zk, zv, false, err
	}
	return rk, rv, true, nil
}

// GetLowerThan returns the entry with the greatest key below key.
func GetLowerThan[K, V any](txh Txish, tbl Table, kc codec.Codec[K], vc codec.Decoder[V], key K) (K, V, bool, error) {
	return getNeighbor(txh, tbl, kc, vc, key, lowerThan)
}

// GetLowerThanOrEqualTo returns the entry with the greatest key not above key.
func GetLowerThanOrEqualTo[K, V any](txh Txish, tbl Table, kc codec.Codec[K], vc codec.Decoder[V], key K) (K, V, bool, error) {
	return getNeighbor(txh, tbl, kc, vc, key, lowerThanOrEqual)
}

// GetGreaterThan returns the entry with the smallest key above key.
func GetGreaterThan[K, V any](txh Txish, tbl Table, kc codec.Codec[K], vc codec.Decoder[V], key K) (K, V, bool, error) {
	return getNeighbor(txh, tbl, kc, vc, key, greaterThan)
}

// GetGreaterThanOrEqualTo returns the entry with the smallest key not below key.
func GetGreaterThanOrEqualTo[K, V any](txh Txish, tbl Table, kc codec.Codec[K], vc codec.Decoder[V], key K) (K, V, bool, error) {
	return getNeighbor(txh, tbl, kc, vc, key, greaterThanOrEqual)
}

func firstOrLast[K, V any](txh Txish, tbl Table, kc codec.Decoder[K], vc codec.Decoder[V], last bool) (K, V, bool, error) {
	var zk K
	var zv V
	tx := txh.DBTx()
	c, err := OpenCursor(tx, tbl)
	if err != nil {
		return zk, zv, false, err
	}
	defer c.Close()

	var e Entry
	var ok bool
	if last {
		e, ok, err = c.MoveToLast()
	} else {
		e, ok, err = c.MoveToFirst()
	}
	if err != nil || !ok {
		return zk, zv, false, err
	}
	k, v, err := decodeEntry(tx, kc, vc, e.key, e.value)
	if err != nil {
		return zk, zv, false, err
	}
	return k, v, true, nil
}

// First returns the entry with the smallest key.
func First[K, V any](txh Txish, tbl Table, kc codec.Decoder[K], vc codec.Decoder[V]) (K, V, bool, error) {
	return firstOrLast(txh, tbl, kc, vc, false)
}

// Last returns the entry with the greatest key.
func Last[K, V any](txh Txish, tbl Table, kc codec.Decoder[K], vc codec.Decoder[V]) (K, V, bool, error) {
	return firstOrLast(txh, tbl, kc, vc, true)
}

// Len returns the number of entries in the table. The in-memory backend
// keeps a count; on Bolt this walks the table's pages, or every entry once the
// transaction has uncommitted changes.
func Len(txh Txish, tbl Table) (int, error) {
	st, err := txh.DBTx().table(tbl)
	if err != nil {
		return 0, err
	}
	return st.KeyCount(), nil
}

// IsEmpty reports whether the table has no entries.
func IsEmpty(txh Txish, tbl Table) (bool, error) {
	_, _, found, err := First[struct{}, struct{}](txh, tbl, codec.Ignore{}, codec.Ignore{})
	return !found, err
}

// Put stores value under key, overwriting any previous value.
func Put[K, V any](tx *RwTx, tbl Table, kc codec.Encoder[K], vc codec.Encoder[V], key K, value V) error {
	st, err := tx.writableTable(tbl)
	if err != nil {
		return err
	}
	k, err := encode(kc, key)
	if err != nil {
		return err
	}
	v, err := encode(vc, value)
	if err != nil {
		return err
	}
	if tx.verbose() {
		tx.logOp("tkv: PUT", tbl, hexAttr("key", k), hexAttr("val", v))
	}
	err = st.Put(k, v)
	if err != nil {
		return engineErr("put", tbl, err)
	}
	tx.mutated()
	tx.env.metrics.puts.Inc()
	return nil
}

// PutReserved stores size bytes under key, letting write produce them
// directly in storage memory. Fails with ErrReservedIncomplete unless write
// fills the space exactly; on failure the previous value is kept.
func PutReserved[K any](tx *RwTx, tbl Table, kc codec.Encoder[K], key K, size int, write func(w *ReservedSpace) error) error {
	st, err := tx.writableTable(tbl)
	if err != nil {
		return err
	}
	k, err := encode(kc, key)
	if err != nil {
		return err
	}
	if size < 0 {
		return tableErrf(tbl, bytes.Clone(k), ErrReservedSize, "reserved put of %d bytes", size)
	}
	prev := st.Get(k)
	if prev != nil {
		prev = bytes.Clone(prev)
	}
	buf, err := st.Reserve(k, size)
	if err != nil {
		return engineErr("reserve", tbl, err)
	}
	tx.mutated()
	err = fillReserved(buf, write)
	if err != nil {
		var rerr error
		if prev != nil {
			rerr = st.Put(k, prev)
		} else {
			_, rerr = st.Delete(k)
		}
		if rerr != nil {
			return engineErr("put", tbl, rerr)
		}
		return tableErrf(tbl, bytes.Clone(k), err, "reserved put")
	}
	if tx.verbose() {
		tx.logOp("tkv: PUT", tbl, hexAttr("key", k), slog.Int("reserved", size))
	}
	tx.env.metrics.puts.Inc()
	return nil
}

// Append stores an entry whose key must be greater than every key in the
// table. Fails with ErrKeyOrder otherwise, leaving the table unchanged.
func Append[K, V any](tx *RwTx, tbl Table, kc codec.Encoder[K], vc codec.Encoder[V], key K, value V) error {
	st, err := tx.writableTable(tbl)
	if err != nil {
		return err
	}
	k, err := encode(kc, key)
	if err != nil {
		return err
	}
	v, err := encode(vc, value)
	if err != nil {
		return err
	}
	if tx.verbose() {
		tx.logOp("tkv: APPEND", tbl, hexAttr("key", k), hexAttr("val", v))
	}
	err = st.Append(k, v)
	if err == errStorageKeyOrder {
		return tableErrf(tbl, bytes.Clone(k), ErrKeyOrder, "append")
	} else if err != nil {
		return engineErr("append", tbl, err)
	}
	tx.mutated()
	tx.env.metrics.puts.Inc()
	return nil
}

// Delete removes key. Returns false if it was not there.
func Delete[K any](tx *RwTx, tbl Table, kc codec.Encoder[K], key K) (bool, error) {
	st, err := tx.writableTable(tbl)
	if err != nil {
		return false, err
	}
	k, err := encode(kc, key)
	if err != nil {
		return false, err
	}
	found, err := st.Delete(k)
	if tx.verbose() {
		if found {
			tx.logOp("tkv: DEL", tbl, hexAttr("key", k))
		} else {
			tx.logOp("tkv: DEL.NOOP", tbl, hexAttr("key", k))
		}
	}
	if err != nil {
		return false, engineErr("delete", tbl, err)
	}
	if found {
		tx.mutated()
		tx.env.metrics.deletes.Inc()
	}
	return found, nil
}

// DeleteRange removes every entry within r and returns their number.
func DeleteRange[K any](tx *RwTx, tbl Table, kc codec.Encoder[K], r Range[K]) (int, error) {
	ival, err := encodeRange(kc, r)
	if err != nil {
		return 0, err
	}
	it, err := newRwIter[struct{}, struct{}](tx, tbl, codec.Ignore{}, codec.Ignore{}, ival, false)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var n int
	for it.Next() {
		if _, err := it.DelCurrent(); err != nil {
			return n, err
		}
		n++
	}
	if tx.verbose() {
		tx.logOp("tkv: DEL_RANGE", tbl, slog.Int("count", n))
	}
	return n, it.Err()
}

// Clear removes all entries of the table in one storage operation.
func Clear(tx *RwTx, tbl Table) error {
	if _, err := tx.writableTable(tbl); err != nil {
		return err
	}
	if tx.verbose() {
		tx.logOp("tkv: CLEAR", tbl)
	}
	err := tx.stx.ClearTable(tbl.name)
	if err != nil {
		return engineErr("clear", tbl, err)
	}
	tx.mutated()
	tx.env.metrics.clears.Inc()
	return nil
}

// Scan iterates over all entries in key order.
func Scan[K, V any](txh Txish, tbl Table, kc codec.Decoder[K], vc codec.Decoder[V]) (*Iter[K, V], error) {
	return newIter(txh, tbl, kc, vc, fullInterval, false)
}

// RevScan iterates over all entries in reverse key order.
func RevScan[K, V any](txh Txish, tbl Table, kc codec.Decoder[K], vc codec.Decoder[V]) (*Iter[K, V], error) {
	return newIter(txh, tbl, kc, vc, fullInterval, true)
}

// ScanRange iterates over the entries within r in key order.
func ScanRange[K, V any](txh Txish, tbl Table, kc codec.Codec[K], vc codec.Decoder[V], r Range[K]) (*Iter[K, V], error) {
	ival, err := encodeRange(kc, r)
	if err != nil {
		return nil, err
	}
	return newIter[K, V](txh, tbl, kc, vc, ival, false)
}

// RevScanRange iterates over the entries within r in reverse key order.
func RevScanRange[K, V any](txh Txish, tbl Table, kc codec.Codec[K], vc codec.Decoder[V], r Range[K]) (*Iter[K, V], error) {
	ival, err := encodeRange(kc, r)
	if err != nil {
		return nil, err
	}
	return newIter[K, V](txh, tbl, kc, vc, ival, true)
}

// ScanPrefix iterates in key order over the entries whose encoded key starts
// with the encoding of prefix.
func ScanPrefix[K, V any](txh Txish, tbl Table, kc codec.Codec[K], vc codec.Decoder[V], prefix K) (*Iter[K, V], error) {
	ival, err := encodePrefix(kc, prefix)
	if err != nil {
		return nil, err
	}
	return newIter[K, V](txh, tbl, kc, vc, ival, false)
}

// RevScanPrefix is ScanPrefix in reverse key order.
func RevScanPrefix[K, V any](txh Txish, tbl Table, kc codec.Codec[K], vc codec.Decoder[V], prefix K) (*Iter[K, V], error) {
	ival, err := encodePrefix(kc, prefix)
	if err != nil {
		return nil, err
	}
	return newIter[K, V](txh, tbl, kc, vc, ival, true)
}

// ScanMut is Scan with an iterator that can modify the current entry.
func ScanMut[K, V any](tx *RwTx, tbl Table, kc codec.Decoder[K], vc codec.Codec[V]) (*RwIter[K, V], error) {
	return newRwIter(tx, tbl, kc, vc, fullInterval, false)
}

// RevScanMut is RevScan with an iterator that can modify the current entry.
func RevScanMut[K, V any](tx *RwTx, tbl Table, kc codec.Decoder[K], vc codec.Codec[V]) (*RwIter[K, V], error) {
	return newRwIter(tx, tbl, kc, vc, fullInterval, true)
}

// ScanRangeMut is ScanRange with an iterator that can modify the current entry.
func ScanRangeMut[K, V any](tx *RwTx, tbl Table, kc codec.Codec[K], vc codec.Codec[V], r Range[K]) (*RwIter[K, V], error) {
	ival, err := encodeRange(kc, r)
	if err != nil {
		return nil, err
	}
	return newRwIter[K, V](tx, tbl, kc, vc, ival, false)
}

// RevScanRangeMut is RevScanRange with an iterator that can modify the
// current entry.
func RevScanRangeMut[K, V any](tx *RwTx, tbl Table, kc codec.Codec[K], vc codec.Codec[V], r Range[K]) (*RwIter[K, V], error) {
	ival, err := encodeRange(kc, r)
	if err != nil {
		return nil, err
	}
	return newRwIter[K, V](tx, tbl, kc, vc, ival, true)
}

// ScanPrefixMut is ScanPrefix with an iterator that can modify the current
// entry.
func ScanPrefixMut[K, V any](tx *RwTx, tbl Table, kc codec.Codec[K], vc codec.Codec[V], prefix K) (*RwIter[K, V], error) {
	ival, err := encodePrefix(kc, prefix)
	if err != nil {
		return nil, err
	}
	return newRwIter[K, V](tx, tbl, kc, vc, ival, false)
}

// RevScanPrefixMut is RevScanPrefix with an iterator that can modify the
// current entry.
func RevScanPrefixMut[K, V any](tx *RwTx, tbl Table, kc codec.Codec[K], vc codec.Codec[V], prefix K) (*RwIter[K, V], error) {
	ival, err := encodePrefix(kc, prefix)
	if err != nil {
		return nil, err
	}
	return newRwIter[K, V](tx, tbl, kc, vc, ival, true)
}
