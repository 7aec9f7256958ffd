package tkv

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
)

const (
	// checkViews makes Entry accessors panic when the entry is no longer
	// valid.
	checkViews = true

	debugLogCursor = false
)

// Cursor is a positionable handle over the entries of one table within one
// transaction. Entries are ordered by their key bytes.
//
// A cursor must be closed, and must not be used after its transaction ends.
type Cursor struct {
	tx  *Tx
	tbl Table
	sc  storageCursor

	// gen is bumped on every movement, invalidating older entries.
	gen     uint64
	started bool
	key     []byte
	value   []byte
	closed  bool
}

// RwCursor is a cursor that can replace or delete the entry it is positioned
// at. Only one RwCursor can be open per table per transaction.
//
// Mutating through the cursor invalidates every Entry obtained earlier from
// the transaction, including the current one; the caller must not retain
// values decoded from borrowed bytes across such calls.
type RwCursor struct {
	Cursor
}

// Entry is a raw entry the cursor is positioned at. Its bytes point into
// storage memory and are only valid until the cursor moves, the transaction
// is mutated, or the transaction ends. With checkViews enabled, Key and Value
// panic when used past that point.
type Entry struct {
	c     *Cursor
	gen   uint64
	txGen uint64
	key   []byte
	value []byte
}

func (e Entry) Key() []byte {
	e.check()
	return e.key
}

func (e Entry) Value() []byte {
	e.check()
	return e.value
}

// Valid reports whether the entry's bytes can still be accessed.
func (e Entry) Valid() bool {
	return e.c != nil && e.gen == e.c.gen && e.txGen == e.c.tx.gen && !e.c.tx.done
}

func (e Entry) check() {
	if !checkViews {
		return
	}
	if e.c == nil {
		panic("tkv: access to an empty entry")
	}
	if !e.Valid() {
		panic(fmt.Errorf("tkv: entry %s of table %s used after its cursor moved or the transaction changed", hexstr(e.key), e.c.tbl.name))
	}
}

// OpenCursor opens a read-only cursor. The cursor starts unpositioned.
func OpenCursor(txh Txish, tbl Table) (*Cursor, error) {
	tx := txh.DBTx()
	st, err := tx.table(tbl)
	if err != nil {
		return nil, err
	}
	tx.env.metrics.cursors.Inc()
	return &Cursor{tx: tx, tbl: tbl, sc: st.Cursor()}, nil
}

// OpenRwCursor opens a mutable cursor. Opening a second mutable cursor over
// the same table before closing the first one panics.
func OpenRwCursor(tx *RwTx, tbl Table) (*RwCursor, error) {
	st, err := tx.writableTable(tbl)
	if err != nil {
		return nil, err
	}
	if tx.writers[tbl.id] != nil {
		panic(fmt.Errorf("tkv: a mutable cursor is already open on table %s", tbl.name))
	}
	c := &RwCursor{Cursor{tx: &tx.Tx, tbl: tbl, sc: st.Cursor()}}
	if tx.writers == nil {
		tx.writers = make(map[uint32]*Cursor)
	}
	tx.writers[tbl.id] = &c.Cursor
	tx.env.metrics.cursors.Inc()
	return c, nil
}

func (c *Cursor) Table() Table {
	return c.tbl
}

// Close releases the cursor. Calling Close multiple times is fine.
func (c *Cursor) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.key, c.value = nil, nil
	if w := c.tx.writers[c.tbl.id]; w == c {
		delete(c.tx.writers, c.tbl.id)
	}
}

func (c *Cursor) ready() error {
	if c.closed {
		panic("tkv: cursor used after Close")
	}
	if c.tx.done {
		return ErrTxDone
	}
	return nil
}

func (c *Cursor) land(op string, k, v []byte) (Entry, bool, error) {
	c.gen++
	c.started = true
	if debugLogCursor {
		c.tx.env.logger.LogAttrs(context.Background(), slog.LevelDebug, op, slog.String("table", c.tbl.name), hexAttr("key", k), hexAttr("val", v))
	}
	if k == nil {
		c.key, c.value = nil, nil
		return Entry{}, false, nil
	}
	c.key, c.value = k, v
	return Entry{c: c, gen: c.gen, txGen: c.tx.gen, key: k, value: v}, true, nil
}

// MoveToFirst positions the cursor at the first entry. Returns false if the
// table is empty.
func (c *Cursor) MoveToFirst() (Entry, bool, error) {
	if err := c.ready(); err != nil {
		return Entry{}, false, err
	}
	k, v := c.sc.First()
	return c.land("FIRST", k, v)
}

// MoveToLast positions the cursor at the last entry. Returns false if the
// table is empty.
func (c *Cursor) MoveToLast() (Entry, bool, error) {
	if err := c.ready(); err != nil {
		return Entry{}, false, err
	}
	k, v := c.sc.Last()
	return c.land("LAST", k, v)
}

// MoveToKeyAtOrAfter positions the cursor at the first entry whose key is
// greater than or equal to key. Returns false if there is no such entry.
func (c *Cursor) MoveToKeyAtOrAfter(key []byte) (Entry, bool, error) {
	if err := c.ready(); err != nil {
		return Entry{}, false, err
	}
	k, v := c.sc.Seek(key)
	return c.land("SEEK", k, v)
}

// MoveToNext moves to the entry following the current position. Returns
// false once the cursor runs past the last entry. Fails with ErrUnpositioned
// if the cursor has never been positioned.
func (c *Cursor) MoveToNext() (Entry, bool, error) {
	if err := c.ready(); err != nil {
		return Entry{}, false, err
	}
	if !c.started {
		return Entry{}, false, ErrUnpositioned
	}
	k, v := c.sc.Next()
	return c.land("NEXT", k, v)
}

// MoveToPrev moves to the entry preceding the current position. Returns
// false once the cursor runs past the first entry. Fails with
// ErrUnpositioned if the cursor has never been positioned.
func (c *Cursor) MoveToPrev() (Entry, bool, error) {
	if err := c.ready(); err != nil {
		return Entry{}, false, err
	}
	if !c.started {
		return Entry{}, false, ErrUnpositioned
	}
	k, v := c.sc.Prev()
	return c.land("PREV", k, v)
}

// Current returns the entry the cursor is positioned at.
func (c *Cursor) Current() (Entry, bool) {
	if c.key == nil {
		return Entry{}, false
	}
	return Entry{c: c, gen: c.gen, txGen: c.tx.gen, key: c.key, value: c.value}, true
}

// ReplaceCurrent overwrites the value of the current entry without moving
// the cursor. Returns false if the cursor is not positioned at an entry.
func (c *RwCursor) ReplaceCurrent(value []byte) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	if c.key == nil {
		return false, nil
	}
	if c.tx.verbose() {
		c.tx.logOp("tkv: PUT_CURRENT", c.tbl, hexAttr("key", c.key), hexAttr("val", value))
	}
	err := c.sc.Put(value)
	if err != nil {
		return false, engineErr("put", c.tbl, err)
	}
	c.mutated(value)
	c.tx.env.metrics.puts.Inc()
	return true, nil
}

// ReplaceCurrentReserved replaces the value of the current entry with size
// bytes produced by write directly in storage memory. See PutReserved.
func (c *RwCursor) ReplaceCurrentReserved(size int, write func(w *ReservedSpace) error) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	if c.key == nil {
		return false, nil
	}
	if size < 0 {
		return false, tableErrf(c.tbl, bytes.Clone(c.key), ErrReservedSize, "reserved put of %d bytes", size)
	}
	prev := cloneNonNil(c.value)
	buf, err := c.sc.Reserve(size)
	if err != nil {
		return false, engineErr("reserve", c.tbl, err)
	}
	c.tx.mutated()
	err = fillReserved(buf, write)
	if err != nil {
		if rerr := c.sc.Put(prev); rerr != nil {
			return false, engineErr("put", c.tbl, rerr)
		}
		c.mutated(prev)
		return false, tableErrf(c.tbl, bytes.Clone(c.key), err, "reserved put")
	}
	c.mutated(buf)
	c.tx.env.metrics.puts.Inc()
	if c.tx.verbose() {
		c.tx.logOp("tkv: PUT_CURRENT", c.tbl, hexAttr("key", c.key), slog.Int("reserved", size))
	}
	return true, nil
}

// DeleteCurrent removes the current entry. The cursor stays where the entry
// was: the next movement goes to the neighbour of the deleted entry. Returns
// false if the cursor is not positioned at an entry.
func (c *RwCursor) DeleteCurrent() (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	if c.key == nil {
		return false, nil
	}
	if c.tx.verbose() {
		c.tx.logOp("tkv: DEL_CURRENT", c.tbl, hexAttr("key", c.key))
	}
	err := c.sc.Delete()
	if err != nil {
		return false, engineErr("delete", c.tbl, err)
	}
	c.tx.mutated()
	c.key, c.value = nil, nil
	c.tx.env.metrics.deletes.Inc()
	return true, nil
}

// mutated records a change of the current entry's value made through the
// cursor.
func (c *RwCursor) mutated(value []byte) {
	c.tx.mutated()
	c.value = value
}
