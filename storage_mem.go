package tkv

import (
	"bytes"
	"errors"
	"sync"

	"github.com/google/btree"
)

const memDegree = 16

var errMemNotWritable = errors.New("tx not writable")

type memStorage struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tables map[string]*btree.BTree
	closed bool
	writer bool
}

// newMemStorage returns a transient in-memory storage. Transactions work on
// copy-on-write clones of the committed trees, so readers never block and
// see a consistent snapshot.
func newMemStorage() storage {
	s := &memStorage{tables: make(map[string]*btree.BTree)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrEnvClosed
	}
	if writable {
		for s.writer && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			return nil, ErrEnvClosed
		}
		s.writer = true
	}

	// btree.Clone is lazy and mutates the source, so it must happen under mu.
	snap := make(map[string]*btree.BTree, len(s.tables))
	for name, tree := range s.tables {
		snap[name] = tree.Clone()
	}
	return &memTx{base: s, writable: writable, tables: snap}, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tables = nil
	s.cond.Broadcast()
	return nil
}

type memTx struct {
	base     *memStorage
	writable bool
	tables   map[string]*btree.BTree
	closed   bool
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) closeLocked() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.writable {
		tx.base.writer = false
		tx.base.cond.Broadcast()
	}
}

func (tx *memTx) Table(name string) storageTable {
	if tx.tables[name] == nil {
		return nil
	}
	return &memTable{tx: tx, name: name}
}

func (tx *memTx) CreateTable(name string) (storageTable, error) {
	if !tx.writable {
		return nil, errMemNotWritable
	}
	if tx.tables[name] == nil {
		tx.tables[name] = btree.New(memDegree)
	}
	return &memTable{tx: tx, name: name}, nil
}

func (tx *memTx) DropTable(name string) error {
	if !tx.writable {
		return errMemNotWritable
	}
	if tx.tables[name] == nil {
		return errStorageNotFound
	}
	delete(tx.tables, name)
	return nil
}

func (tx *memTx) ClearTable(name string) error {
	if !tx.writable {
		return errMemNotWritable
	}
	if tx.tables[name] == nil {
		return errStorageNotFound
	}
	tx.tables[name] = btree.New(memDegree)
	return nil
}

func (tx *memTx) Commit() error {
	if tx.closed {
		return nil
	}
	if !tx.writable {
		return errMemNotWritable
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	defer tx.closeLocked()
	if tx.base.closed {
		return ErrEnvClosed
	}
	tx.base.tables = tx.tables
	return nil
}

func (tx *memTx) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.closeLocked()
	return nil
}

type memItem struct {
	key   []byte
	value []byte
}

func (a memItem) Less(b btree.Item) bool {
	return bytes.Compare(a.key, b.(memItem).key) < 0
}

type memTable struct {
	tx   *memTx
	name string
}

func (t *memTable) tree() *btree.BTree {
	return t.tx.tables[t.name]
}

func (t *memTable) Get(key []byte) []byte {
	tree := t.tree()
	if tree == nil {
		return nil
	}
	if it := tree.Get(memItem{key: key}); it != nil {
		return it.(memItem).value
	}
	return nil
}

func (t *memTable) put(key, value []byte) error {
	if !t.tx.writable {
		return errMemNotWritable
	}
	if len(key) == 0 {
		return errStorageNoKey
	}
	tree := t.tree()
	if tree == nil {
		return errStorageNotFound
	}
	tree.ReplaceOrInsert(memItem{key: bytes.Clone(key), value: value})
	return nil
}

func (t *memTable) Put(key, value []byte) error {
	return t.put(key, cloneNonNil(value))
}

func (t *memTable) Append(key, value []byte) error {
	if len(key) == 0 {
		return errStorageNoKey
	}
	if tree := t.tree(); tree != nil {
		if last := tree.Max(); last != nil && bytes.Compare(key, last.(memItem).key) <= 0 {
			return errStorageKeyOrder
		}
	}
	return t.Put(key, value)
}

func (t *memTable) Reserve(key []byte, size int) ([]byte, error) {
	buf := make([]byte, size)
	err := t.put(key, buf)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *memTable) Delete(key []byte) (bool, error) {
	if !t.tx.writable {
		return false, errMemNotWritable
	}
	tree := t.tree()
	if tree == nil {
		return false, errStorageNotFound
	}
	return tree.Delete(memItem{key: key}) != nil, nil
}

func (t *memTable) Cursor() storageCursor {
	return &memCursor{t: t}
}

func (t *memTable) KeyCount() int {
	if tree := t.tree(); tree != nil {
		return tree.Len()
	}
	return 0
}

func (t *memTable) Stats() tableStats {
	tree := t.tree()
	if tree == nil {
		return tableStats{}
	}
	var inuse int64
	tree.Ascend(func(it btree.Item) bool {
		m := it.(memItem)
		inuse += int64(len(m.key) + len(m.value))
		return true
	})
	return tableStats{
		KeyN:      tree.Len(),
		LeafInuse: inuse,
		LeafAlloc: inuse,
	}
}

// memCursor remembers its current key and looks up neighbours in the tree on
// every move, which keeps it valid across arbitrary mutations.
type memCursor struct {
	t   *memTable
	key []byte
	pos cursorPos
}

func (c *memCursor) set(it btree.Item, miss cursorPos) ([]byte, []byte) {
	if it == nil {
		c.pos = miss
		c.key = c.key[:0]
		return nil, nil
	}
	m := it.(memItem)
	c.pos = posAt
	c.key = append(c.key[:0], m.key...)
	return m.key, m.value
}

func (c *memCursor) First() ([]byte, []byte) {
	var it btree.Item
	if tree := c.t.tree(); tree != nil {
		it = tree.Min()
	}
	return c.set(it, posAfterEnd)
}

func (c *memCursor) Last() ([]byte, []byte) {
	var it btree.Item
	if tree := c.t.tree(); tree != nil {
		it = tree.Max()
	}
	return c.set(it, posBeforeStart)
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	var found btree.Item
	if tree := c.t.tree(); tree != nil {
		tree.AscendGreaterOrEqual(memItem{key: seek}, func(it btree.Item) bool {
			found = it
			return false
		})
	}
	return c.set(found, posAfterEnd)
}

func (c *memCursor) Next() ([]byte, []byte) {
	switch c.pos {
	case posUnset, posBeforeStart:
		return c.First()
	case posAfterEnd:
		return nil, nil
	}
	var found btree.Item
	if tree := c.t.tree(); tree != nil {
		tree.AscendGreaterOrEqual(memItem{key: c.key}, func(it btree.Item) bool {
			if bytes.Equal(it.(memItem).key, c.key) {
				return true
			}
			found = it
			return false
		})
	}
	return c.set(found, posAfterEnd)
}

func (c *memCursor) Prev() ([]byte, []byte) {
	switch c.pos {
	case posUnset, posAfterEnd:
		return c.Last()
	case posBeforeStart:
		return nil, nil
	}
	var found btree.Item
	if tree := c.t.tree(); tree != nil {
		tree.DescendLessOrEqual(memItem{key: c.key}, func(it btree.Item) bool {
			if bytes.Equal(it.(memItem).key, c.key) {
				return true
			}
			found = it
			return false
		})
	}
	return c.set(found, posBeforeStart)
}

func (c *memCursor) Put(value []byte) error {
	if c.pos != posAt {
		return errStorageNotFound
	}
	return c.t.Put(c.key, value)
}

func (c *memCursor) Reserve(size int) ([]byte, error) {
	if c.pos != posAt {
		return nil, errStorageNotFound
	}
	return c.t.Reserve(c.key, size)
}

func (c *memCursor) Delete() error {
	if c.pos != posAt {
		return errStorageNotFound
	}
	_, err := c.t.Delete(c.key)
	return err
}
