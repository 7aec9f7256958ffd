package tkv

import "github.com/andreyvit/tkv/codec"

// Database is a table with the key and value codecs fixed. It is a small
// value type; copy it freely.
type Database[K, V any] struct {
	tbl Table
	kc  codec.Codec[K]
	vc  codec.Codec[V]
}

// Uniform binds codecs to a table.
func Uniform[K, V any](tbl Table, kc codec.Codec[K], vc codec.Codec[V]) Database[K, V] {
	return Database[K, V]{tbl, kc, vc}
}

// Remap returns a handle to the same table using different codecs. The bytes
// already stored must be compatible with them.
func Remap[K2, V2, K, V any](db Database[K, V], kc codec.Codec[K2], vc codec.Codec[V2]) Database[K2, V2] {
	return Database[K2, V2]{db.tbl, kc, vc}
}

// Table returns the underlying untyped table.
func (db Database[K, V]) Table() Table {
	return db.tbl
}

func (db Database[K, V]) Get(txh Txish, key K) (V, bool, error) {
	return Get[K, V](txh, db.tbl, db.kc, db.vc, key)
}

func (db Database[K, V]) GetOrDefault(txh Txish, key K, def V) (V, error) {
	return GetOrDefault[K, V](txh, db.tbl, db.kc, db.vc, key, def)
}

func (db Database[K, V]) GetLowerThan(txh Txish, key K) (K, V, bool, error) {
	return GetLowerThan[K, V](txh, db.tbl, db.kc, db.vc, key)
}

func (db Database[K, V]) GetLowerThanOrEqualTo(txh Txish, key K) (K, V, bool, error) {
	return GetLowerThanOrEqualTo[K, V](txh, db.tbl, db.kc, db.vc, key)
}

func (db Database[K, V]) GetGreaterThan(txh Txish, key K) (K, V, bool, error) {
	return GetGreaterThan[K, V](txh, db.tbl, db.kc, db.vc, key)
}

func (db Database[K, V]) GetGreaterThanOrEqualTo(txh Txish, key K) (K, V, bool, error) {
	return GetGreaterThanOrEqualTo[K, V](txh, db.tbl, db.kc, db.vc, key)
}

func (db Database[K, V]) First(txh Txish) (K, V, bool, error) {
	return First[K, V](txh, db.tbl, db.kc, db.vc)
}

func (db Database[K, V]) Last(txh Txish) (K, V, bool, error) {
	return Last[K, V](txh, db.tbl, db.kc, db.vc)
}

// Len returns the number of entries. It is O(1) on the in-memory backend. Bolt
// keeps no entry count, so there it walks the table's pages, or every entry
// once the transaction has uncommitted changes.
func (db Database[K, V]) Len(txh Txish) (int, error) {
	return Len(txh, db.tbl)
}

func (db Database[K, V]) IsEmpty(txh Txish) (bool, error) {
	return IsEmpty(txh, db.tbl)
}

func (db Database[K, V]) Put(tx *RwTx, key K, value V) error {
	return Put[K, V](tx, db.tbl, db.kc, db.vc, key, value)
}

func (db Database[K, V]) PutReserved(tx *RwTx, key K, size int, write func(w *ReservedSpace) error) error {
	return PutReserved[K](tx, db.tbl, db.kc, key, size, write)
}

func (db Database[K, V]) Append(tx *RwTx, key K, value V) error {
	return Append[K, V](tx, db.tbl, db.kc, db.vc, key, value)
}

func (db Database[K, V]) Delete(tx *RwTx, key K) (bool, error) {
	return Delete[K](tx, db.tbl, db.kc, key)
}

func (db Database[K, V]) DeleteRange(tx *RwTx, r Range[K]) (int, error) {
	return DeleteRange[K](tx, db.tbl, db.kc, r)
}

func (db Database[K, V]) Clear(tx *RwTx) error {
	return Clear(tx, db.tbl)
}

func (db Database[K, V]) Scan(txh Txish) (*Iter[K, V], error) {
	return Scan[K, V](txh, db.tbl, db.kc, db.vc)
}

func (db Database[K, V]) RevScan(txh Txish) (*Iter[K, V], error) {
	return RevScan[K, V](txh, db.tbl, db.kc, db.vc)
}

func (db Database[K, V]) ScanRange(txh Txish, r Range[K]) (*Iter[K, V], error) {
	return ScanRange[K, V](txh, db.tbl, db.kc, db.vc, r)
}

func (db Database[K, V]) RevScanRange(txh Txish, r Range[K]) (*Iter[K, V], error) {
	return RevScanRange[K, V](txh, db.tbl, db.kc, db.vc, r)
}

func (db Database[K, V]) ScanPrefix(txh Txish, prefix K) (*Iter[K, V], error) {
	return ScanPrefix[K, V](txh, db.tbl, db.kc, db.vc, prefix)
}

func (db Database[K, V]) RevScanPrefix(txh Txish, prefix K) (*Iter[K, V], error) {
	return RevScanPrefix[K, V](txh, db.tbl, db.kc, db.vc, prefix)
}

func (db Database[K, V]) ScanMut(tx *RwTx) (*RwIter[K, V], error) {
	return ScanMut[K, V](tx, db.tbl, db.kc, db.vc)
}

func (db Database[K, V]) RevScanMut(tx *RwTx) (*RwIter[K, V], error) {
	return RevScanMut[K, V](tx, db.tbl, db.kc, db.vc)
}

func (db Database[K, V]) ScanRangeMut(tx *RwTx, r Range[K]) (*RwIter[K, V], error) {
	return ScanRangeMut[K, V](tx, db.tbl, db.kc, db.vc, r)
}

func (db Database[K, V]) RevScanRangeMut(tx *RwTx, r Range[K]) (*RwIter[K, V], error) {
	return RevScanRangeMut[K, V](tx, db.tbl, db.kc, db.vc, r)
}

func (db Database[K, V]) ScanPrefixMut(tx *RwTx, prefix K) (*RwIter[K, V], error) {
	return ScanPrefixMut[K, V](tx, db.tbl, db.kc, db.vc, prefix)
}

func (db Database[K, V]) RevScanPrefixMut(tx *RwTx, prefix K) (*RwIter[K, V], error) {
	return RevScanPrefixMut[K, V](tx, db.tbl, db.kc, db.vc, prefix)
}
