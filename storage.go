package tkv

import "errors"

var (
	errStorageNotFound = errors.New("table not found")
	errStorageKeyOrder = errors.New("key out of order")
	errStorageNoKey    = errors.New("key required")
)

// storage represents a transactional ordered key-value engine (Bolt, in-memory).
type storage interface {
	// BeginTx starts a new transaction. Only one writable transaction can be
	// open at a time; BeginTx(true) blocks until the current writer finishes.
	BeginTx(writable bool) (storageTx, error)
	// Close closes the storage.
	Close() error
}

// storageTx represents a storage transaction.
type storageTx interface {
	// Writable returns true if this is a writable transaction.
	Writable() bool

	// Table returns a named table, or nil if it doesn't exist.
	Table(name string) storageTable

	// CreateTable creates a table if it doesn't exist.
	CreateTable(name string) (storageTable, error)

	// DropTable deletes a table with all its contents. Returns
	// errStorageNotFound if the table doesn't exist.
	DropTable(name string) error

	// ClearTable removes all entries from a table in a single operation.
	ClearTable(name string) error

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction. It should be safe to call multiple times.
	Rollback() error
}

// storageTable represents a sorted key-value collection.
type storageTable interface {
	// Get retrieves a value by key. Returns nil if not found.
	Get(key []byte) []byte

	// Put stores a key-value pair, overwriting any existing value. Empty keys
	// are rejected with errStorageNoKey by Put, Append and Reserve.
	Put(key, value []byte) error

	// Append stores a key-value pair whose key must sort after all existing
	// keys. Returns errStorageKeyOrder otherwise.
	Append(key, value []byte) error

	// Reserve stores a key with a zeroed value of the given size and returns
	// the value buffer, which stays writable until the transaction ends.
	Reserve(key []byte, size int) ([]byte, error)

	// Delete removes a key. Returns false if the key did not exist.
	Delete(key []byte) (bool, error)

	// Cursor returns a cursor for iteration.
	Cursor() storageCursor

	// KeyCount returns the number of keys in the table.
	KeyCount() int

	// Stats returns storage-specific table statistics.
	// Backends that don't track allocation sizes may return zero values except KeyN.
	Stats() tableStats
}

type tableStats struct {
	KeyN        int
	Depth       int
	LeafInuse   int64
	LeafAlloc   int64
	BranchAlloc int64
}

func (s tableStats) TotalAlloc() int64 { return s.BranchAlloc + s.LeafAlloc }

// storageCursor iterates over a sorted table.
//
// A cursor that ran past the last entry (via Next or Seek) moves to the last
// entry on Prev, and a cursor that ran before the first entry moves to the
// first entry on Next. Any mutation of the table, including through the
// cursor itself, leaves the cursor at the position of the last key it
// returned, so Next and Prev move relative to that key even if it has been
// deleted.
type storageCursor interface {
	// First moves to the first key-value pair.
	First() (key, value []byte)

	// Last moves to the last key-value pair.
	Last() (key, value []byte)

	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)

	// Next moves to the next key-value pair.
	Next() (key, value []byte)

	// Prev moves to the previous key-value pair.
	Prev() (key, value []byte)

	// Put replaces the value of the current key-value pair.
	Put(value []byte) error

	// Reserve replaces the value of the current key-value pair with a zeroed
	// buffer of the given size and returns it.
	Reserve(size int) ([]byte, error)

	// Delete deletes the current key-value pair.
	Delete() error
}

type cursorPos int

const (
	posUnset cursorPos = iota
	posAt
	posAfterEnd
	posBeforeStart
)
