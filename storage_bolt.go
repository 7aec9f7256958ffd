package tkv

import (
	"bytes"
	"unsafe"

	"go.etcd.io/bbolt"
)

// appendFillPercent packs pages completely when keys only ever grow, which
// is the point of Append. Bolt reads FillPercent when splitting nodes at
// commit, so it only stays raised for buckets that saw nothing but appends
// in the transaction.
const appendFillPercent = 1.0

type boltStorage struct {
	bdb *bbolt.DB
}

func newBoltStorage(bdb *bbolt.DB) storage {
	return &boltStorage{bdb: bdb}
}

func (s *boltStorage) BeginTx(writable bool) (storageTx, error) {
	btx, err := s.bdb.Begin(writable)
	if err != nil {
		return nil, err
	}
	return &boltStorageTx{btx: btx}, nil
}

func (s *boltStorage) Close() error {
	return s.bdb.Close()
}

type boltStorageTx struct {
	btx *bbolt.Tx

	// mods is bumped on every mutation, so that cursors know to re-seek.
	mods uint64
	// layout is bumped whenever buckets are created, dropped or recreated.
	layout uint64
	// overwritten holds the tables that got non-append writes.
	overwritten map[string]bool
}

func (tx *boltStorageTx) Writable() bool { return tx.btx.Writable() }

func (tx *boltStorageTx) Table(name string) storageTable {
	b := tx.btx.Bucket(unsafeBytesFromString(name))
	if b == nil {
		return nil
	}
	return &boltTable{tx: tx, name: []byte(name), b: b, layout: tx.layout}
}

func (tx *boltStorageTx) CreateTable(name string) (storageTable, error) {
	b, err := tx.btx.CreateBucketIfNotExists([]byte(name))
	if err != nil {
		return nil, err
	}
	tx.layout++
	return &boltTable{tx: tx, name: []byte(name), b: b, layout: tx.layout}, nil
}

func (tx *boltStorageTx) DropTable(name string) error {
	err := tx.btx.DeleteBucket(unsafeBytesFromString(name))
	if err == bbolt.ErrBucketNotFound {
		return errStorageNotFound
	} else if err != nil {
		return err
	}
	tx.layout++
	tx.mods++
	return nil
}

func (tx *boltStorageTx) ClearTable(name string) error {
	err := tx.DropTable(name)
	if err != nil {
		return err
	}
	_, err = tx.btx.CreateBucket([]byte(name))
	return err
}

func (tx *boltStorageTx) Commit() error { return tx.btx.Commit() }

func (tx *boltStorageTx) Rollback() error {
	err := tx.btx.Rollback()
	if err == bbolt.ErrTxClosed {
		return nil
	}
	return err
}

type boltTable struct {
	tx     *boltStorageTx
	name   []byte
	b      *bbolt.Bucket
	layout uint64
}

// bucket returns the current bucket, re-opening it if the table has been
// cleared since. Returns nil if the table has been dropped.
func (t *boltTable) bucket() *bbolt.Bucket {
	if t.layout != t.tx.layout {
		t.b = t.tx.btx.Bucket(t.name)
		t.layout = t.tx.layout
	}
	return t.b
}

func (t *boltTable) Get(key []byte) []byte {
	b := t.bucket()
	if b == nil {
		return nil
	}
	return b.Get(key)
}

// Bolt keeps references to the key and value until commit, so both are copied.
func (t *boltTable) Put(key, value []byte) error {
	if len(key) == 0 {
		return errStorageNoKey
	}
	b := t.bucket()
	if b == nil {
		return errStorageNotFound
	}
	t.overwriting(b)
	err := b.Put(bytes.Clone(key), cloneNonNil(value))
	if err != nil {
		return err
	}
	t.tx.mods++
	return nil
}

// overwriting restores the default fill percent of a bucket that is no
// longer append-only.
func (t *boltTable) overwriting(b *bbolt.Bucket) {
	if t.tx.overwritten == nil {
		t.tx.overwritten = make(map[string]bool)
	}
	t.tx.overwritten[string(t.name)] = true
	b.FillPercent = bbolt.DefaultFillPercent
}

func (t *boltTable) Append(key, value []byte) error {
	if len(key) == 0 {
		return errStorageNoKey
	}
	b := t.bucket()
	if b == nil {
		return errStorageNotFound
	}
	if last, _ := b.Cursor().Last(); last != nil && bytes.Compare(key, last) <= 0 {
		return errStorageKeyOrder
	}
	if !t.tx.overwritten[string(t.name)] {
		b.FillPercent = appendFillPercent
	}
	err := b.Put(bytes.Clone(key), cloneNonNil(value))
	if err != nil {
		return err
	}
	t.tx.mods++
	return nil
}

func (t *boltTable) Reserve(key []byte, size int) ([]byte, error) {
	if len(key) == 0 {
		return nil, errStorageNoKey
	}
	b := t.bucket()
	if b == nil {
		return nil, errStorageNotFound
	}
	t.overwriting(b)
	buf := make([]byte, size)
	err := b.Put(bytes.Clone(key), buf)
	if err != nil {
		return nil, err
	}
	t.tx.mods++
	return buf, nil
}

func (t *boltTable) Delete(key []byte) (bool, error) {
	b := t.bucket()
	if b == nil {
		return false, errStorageNotFound
	}
	if b.Get(key) == nil {
		return false, nil
	}
	err := b.Delete(key)
	if err != nil {
		return false, err
	}
	t.tx.mods++
	return true, nil
}

func (t *boltTable) Cursor() storageCursor {
	return &boltCursor{t: t}
}

// dirty reports whether the transaction has modified anything. Bolt's page
// statistics only reflect committed pages.
func (t *boltTable) dirty() bool {
	return t.tx.mods != 0 || t.tx.layout != 0
}

// KeyCount walks the bucket's pages, or its entries once the transaction is
// dirty: Bolt keeps no entry count.
func (t *boltTable) KeyCount() int {
	b := t.bucket()
	if b == nil {
		return 0
	}
	if !t.dirty() {
		return b.Stats().KeyN
	}
	var n int
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

func (t *boltTable) Stats() tableStats {
	b := t.bucket()
	if b == nil {
		return tableStats{}
	}
	s := b.Stats()
	ts := tableStats{
		KeyN:        s.KeyN,
		Depth:       s.Depth,
		LeafInuse:   int64(s.LeafInuse + s.InlineBucketInuse),
		LeafAlloc:   int64(s.LeafAlloc + s.InlineBucketInuse),
		BranchAlloc: int64(s.BranchAlloc),
	}
	if t.dirty() {
		ts.KeyN = t.KeyCount()
	}
	return ts
}

// boltCursor wraps a Bolt cursor. Bolt cursors don't survive modifications
// of their bucket, so the cursor remembers the last returned key and
// re-seeks to it after any mutation in the transaction.
type boltCursor struct {
	t    *boltTable
	c    *bbolt.Cursor
	mods uint64
	key  []byte
	pos  cursorPos
}

// sync re-creates the Bolt cursor if the transaction has been modified since
// the last movement. Returns true if the cursor needs re-positioning.
func (c *boltCursor) sync() bool {
	if c.c != nil && c.mods == c.t.tx.mods {
		return false
	}
	c.mods = c.t.tx.mods
	if b := c.t.bucket(); b != nil {
		c.c = b.Cursor()
	} else {
		c.c = nil
	}
	return true
}

func (c *boltCursor) set(k, v []byte, miss cursorPos) ([]byte, []byte) {
	if k == nil {
		c.pos = miss
		c.key = c.key[:0]
		return nil, nil
	}
	c.pos = posAt
	c.key = append(c.key[:0], k...)
	return k, v
}

func (c *boltCursor) First() ([]byte, []byte) {
	if c.sync(); c.c == nil {
		return c.set(nil, nil, posAfterEnd)
	}
	k, v := c.c.First()
	return c.set(k, v, posAfterEnd)
}

func (c *boltCursor) Last() ([]byte, []byte) {
	if c.sync(); c.c == nil {
		return c.set(nil, nil, posBeforeStart)
	}
	k, v := c.c.Last()
	return c.set(k, v, posBeforeStart)
}

func (c *boltCursor) Seek(seek []byte) ([]byte, []byte) {
	if c.sync(); c.c == nil {
		return c.set(nil, nil, posAfterEnd)
	}
	k, v := c.c.Seek(seek)
	return c.set(k, v, posAfterEnd)
}

func (c *boltCursor) Next() ([]byte, []byte) {
	switch c.pos {
	case posUnset, posBeforeStart:
		return c.First()
	case posAfterEnd:
		return nil, nil
	}
	resync := c.sync()
	if c.c == nil {
		return c.set(nil, nil, posAfterEnd)
	}
	var k, v []byte
	if resync {
		k, v = c.c.Seek(c.key)
		if k != nil && bytes.Equal(k, c.key) {
			k, v = c.c.Next()
		}
	} else {
		k, v = c.c.Next()
	}
	return c.set(k, v, posAfterEnd)
}

func (c *boltCursor) Prev() ([]byte, []byte) {
	switch c.pos {
	case posUnset, posAfterEnd:
		return c.Last()
	case posBeforeStart:
		return nil, nil
	}
	resync := c.sync()
	if c.c == nil {
		return c.set(nil, nil, posBeforeStart)
	}
	var k, v []byte
	if resync {
		k, _ = c.c.Seek(c.key)
		if k == nil {
			k, v = c.c.Last()
		} else {
			k, v = c.c.Prev()
		}
	} else {
		k, v = c.c.Prev()
	}
	return c.set(k, v, posBeforeStart)
}

func (c *boltCursor) Put(value []byte) error {
	if c.pos != posAt {
		return errStorageNotFound
	}
	return c.t.Put(c.key, value)
}

func (c *boltCursor) Reserve(size int) ([]byte, error) {
	if c.pos != posAt {
		return nil, errStorageNotFound
	}
	return c.t.Reserve(c.key, size)
}

func (c *boltCursor) Delete() error {
	if c.pos != posAt {
		return errStorageNotFound
	}
	_, err := c.t.Delete(c.key)
	return err
}

func cloneNonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return bytes.Clone(b)
}

func unsafeBytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
