package tkv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.etcd.io/bbolt"
)

// Txish is implemented by *Tx and *RwTx, and can be implemented by
// application types wrapping a transaction.
type Txish interface {
	DBTx() *Tx
}

// Tx is a read-only transaction, or the read-only view of a write
// transaction. A Tx must not be used from multiple goroutines at once.
type Tx struct {
	env      *Env
	stx      storageTx
	writable bool
	managed  bool
	done     bool

	// gen is bumped on every mutation, invalidating entries borrowed from
	// cursors.
	gen uint64

	tables  map[uint32]storageTable
	writers map[uint32]*Cursor

	startTime time.Time
	stack     []byte
}

// RwTx is a write transaction. At most one is open per environment.
type RwTx struct {
	Tx
}

func (env *Env) begin(tx *Tx, writable bool) error {
	if env.closed.Load() {
		return ErrEnvClosed
	}
	stx, err := env.store.BeginTx(writable)
	if err == bbolt.ErrDatabaseReadOnly {
		return ErrTxReadOnly
	} else if err == bbolt.ErrDatabaseNotOpen || err == ErrEnvClosed {
		return ErrEnvClosed
	} else if err != nil {
		return &EngineError{Op: "begin", Err: err}
	}
	*tx = Tx{
		env:       env,
		stx:       stx,
		writable:  writable,
		tables:    make(map[uint32]storageTable),
		startTime: time.Now(),
	}
	if writable {
		env.WriterCount.Add(1)
		env.metrics.writeTxns.Inc()
	} else {
		env.ReaderCount.Add(1)
		env.metrics.readTxns.Inc()
	}
	if trackTxns {
		tx.stack = debug.Stack()
		env.addTx(tx)
	}
	return nil
}

// BeginRead starts a read-only transaction over a consistent snapshot.
// The caller must Close it.
func (env *Env) BeginRead() (*Tx, error) {
	tx := new(Tx)
	if err := env.begin(tx, false); err != nil {
		return nil, err
	}
	return tx, nil
}

// BeginWrite starts a write transaction, waiting for the current writer to
// finish. The caller must Commit or Close it.
func (env *Env) BeginWrite() (*RwTx, error) {
	tx := new(RwTx)
	if err := env.begin(&tx.Tx, true); err != nil {
		return nil, err
	}
	return tx, nil
}

// Read runs f in a read-only transaction.
func (env *Env) Read(f func(tx *Tx) error) error {
	tx, err := env.BeginRead()
	if err != nil {
		return err
	}
	tx.managed = true
	defer tx.finish(false)
	return f(tx)
}

// Write runs f in a write transaction, committing if f returns nil and
// rolling back if it fails or panics.
func (env *Env) Write(f func(tx *RwTx) error) error {
	tx, err := env.BeginWrite()
	if err != nil {
		return err
	}
	tx.managed = true
	err = safelyCall(f, tx)
	if err != nil {
		tx.finish(false)
		return err
	}
	return tx.finish(true)
}

func safelyCall(fn func(*RwTx) error, tx *RwTx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

// DBTx implements Txish
func (tx *Tx) DBTx() *Tx {
	return tx
}

func (tx *Tx) Env() *Env {
	return tx.env
}

func (tx *Tx) IsWritable() bool {
	return tx.writable
}

// Close rolls the transaction back unless it has already been committed.
// Calling Close multiple times is fine.
func (tx *Tx) Close() {
	if tx.managed || tx.done {
		return
	}
	tx.finish(false)
}

// Commit commits the transaction.
func (tx *RwTx) Commit() error {
	if tx.managed {
		panic("tkv: Commit called on a transaction managed by Env.Write")
	}
	return tx.finish(true)
}

func (tx *Tx) finish(commit bool) error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	tx.writers = nil

	var err error
	if commit {
		err = tx.stx.Commit()
		if err != nil {
			_ = tx.stx.Rollback()
			tx.env.metrics.rollbacks.Inc()
			tx.env.logger.LogAttrs(context.Background(), slog.LevelWarn, "tkv: commit failed", slog.String("err", err.Error()))
			err = &EngineError{Op: "commit", Err: err}
		} else {
			tx.env.metrics.commits.Inc()
		}
	} else {
		err = tx.stx.Rollback()
		tx.env.metrics.rollbacks.Inc()
		if err != nil {
			tx.env.logger.LogAttrs(context.Background(), slog.LevelWarn, "tkv: rollback failed", slog.String("err", err.Error()))
			err = &EngineError{Op: "rollback", Err: err}
		}
	}

	if tx.writable {
		tx.env.WriterCount.Add(-1)
	} else {
		tx.env.ReaderCount.Add(-1)
	}
	if trackTxns {
		tx.env.removeTx(tx)
	}
	return err
}

func (tx *Tx) mutated() {
	tx.gen++
}

// check panics if tbl does not belong to the transaction's environment.
func (tx *Tx) check(tbl Table) {
	if tbl.env == 0 {
		panic("tkv: uninitialized table handle")
	}
	if tbl.env != tx.env.ident {
		panic(fmt.Errorf("tkv: table %q of environment %d used with a transaction of environment %d", tbl.name, tbl.env, tx.env.ident))
	}
}

func (tx *Tx) table(tbl Table) (storageTable, error) {
	tx.check(tbl)
	if tx.done {
		return nil, ErrTxDone
	}
	if st := tx.tables[tbl.id]; st != nil {
		return st, nil
	}
	st := tx.stx.Table(tbl.name)
	if st == nil {
		return nil, &EngineError{Op: "open", Table: tbl.name, Err: ErrTableNotFound}
	}
	tx.tables[tbl.id] = st
	return st, nil
}

func (tx *RwTx) writableTable(tbl Table) (storageTable, error) {
	st, err := tx.table(tbl)
	if err != nil {
		return nil, err
	}
	if !tx.writable {
		return nil, ErrTxReadOnly
	}
	return st, nil
}

func (tx *Tx) verbose() bool {
	return tx.env.verbose
}

func (tx *Tx) logOp(msg string, tbl Table, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("table", tbl.name))
	tx.env.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}

func (tx *Tx) decodeFailed(err error) error {
	var de *DecodingError
	if errors.As(err, &de) {
		tx.env.metrics.decodeErr.Inc()
	}
	return err
}
