package tkv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.etcd.io/bbolt"
)

const trackTxns = true

const (
	defaultTimeout  = 10 * time.Second
	defaultFileMode = 0666
)

var (
	lastEnvIdent atomic.Uint64

	// openedEnvs maps absolute paths to open environments, so that a file
	// isn't opened twice by the same process.
	openedEnvs = xsync.NewMapOf[string, *Env]()
)

// Env is an open storage environment: a set of named tables sharing one
// transaction space.
type Env struct {
	ident   uint64
	path    string
	store   storage
	logger  *slog.Logger
	verbose bool

	tableIDs    *xsync.MapOf[string, uint32]
	lastTableID atomic.Uint32

	metrics *envMetrics

	ReaderCount atomic.Int64
	WriterCount atomic.Int64
	closed      atomic.Bool

	txns     []*Tx
	txnsLock sync.Mutex
}

type Options struct {
	// Logger receives diagnostics; defaults to slog.Default().
	Logger *slog.Logger
	// Verbose logs every operation at debug level.
	Verbose bool
	// IsTesting trades durability for speed.
	IsTesting bool
	// MmapSize is the initial memory map size of the Bolt file.
	MmapSize int
	// Timeout bounds waiting for the file lock held by another process.
	Timeout time.Duration
	// ReadOnly opens the file in read-only mode; write transactions fail
	// with ErrTxReadOnly.
	ReadOnly bool
	// FileMode is used when the file is created.
	FileMode os.FileMode
}

func newEnv(path string, opt Options) *Env {
	env := &Env{
		ident:    lastEnvIdent.Add(1),
		path:     path,
		logger:   opt.Logger,
		verbose:  opt.Verbose,
		tableIDs: xsync.NewMapOf[string, uint32](),
	}
	if env.logger == nil {
		env.logger = slog.Default()
	}
	env.metrics = newEnvMetrics(env)
	return env
}

// Open opens or creates a Bolt-backed environment at path.
func Open(path string, opt Options) (*Env, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("tkv: %w", err)
	}

	env := newEnv(abs, opt)
	if _, loaded := openedEnvs.LoadOrStore(abs, env); loaded {
		return nil, fmt.Errorf("%w: %s", ErrEnvAlreadyOpen, abs)
	}

	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opt.Timeout
	if bopt.Timeout == 0 {
		bopt.Timeout = defaultTimeout
	}
	bopt.ReadOnly = opt.ReadOnly
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}
	mode := opt.FileMode
	if mode == 0 {
		mode = defaultFileMode
	}

	bdb, err := bbolt.Open(abs, mode, &bopt)
	if err != nil {
		openedEnvs.Delete(abs)
		return nil, fmt.Errorf("tkv: %w", err)
	}
	env.store = newBoltStorage(bdb)
	env.logger.LogAttrs(context.Background(), slog.LevelDebug, "tkv: opened", slog.String("path", abs), slog.Uint64("env", env.ident))
	return env, nil
}

// OpenMemory creates a transient in-memory environment.
func OpenMemory(opt Options) *Env {
	env := newEnv("", opt)
	env.store = newMemStorage()
	return env
}

// Ident returns the process-unique identity of the environment.
func (env *Env) Ident() uint64 {
	return env.ident
}

func (env *Env) Path() string {
	return env.path
}

// Close closes the environment. Transactions still open at this point are
// logged; with the Bolt backend Close waits for them to finish.
func (env *Env) Close() error {
	if !env.closed.CompareAndSwap(false, true) {
		return nil
	}
	if n := env.ReaderCount.Load() + env.WriterCount.Load(); n > 0 {
		env.logger.LogAttrs(context.Background(), slog.LevelWarn, "tkv: closing with open transactions", slog.Int64("count", n), slog.String("txns", env.DescribeOpenTxns()))
	}
	err := env.store.Close()
	if env.path != "" {
		openedEnvs.Delete(env.path)
	}
	if err != nil {
		return fmt.Errorf("tkv: closing: %w", err)
	}
	env.logger.LogAttrs(context.Background(), slog.LevelDebug, "tkv: closed", slog.String("path", env.path), slog.Uint64("env", env.ident))
	return nil
}

func (env *Env) tableID(name string) uint32 {
	id, _ := env.tableIDs.LoadOrCompute(name, func() uint32 {
		return env.lastTableID.Add(1)
	})
	return id
}

func (env *Env) handle(name string) Table {
	return Table{env: env.ident, id: env.tableID(name), name: name}
}

func (env *Env) checkTx(tx *Tx) {
	if tx.env != env {
		panic(fmt.Errorf("tkv: transaction of environment %d used with environment %d", tx.env.ident, env.ident))
	}
}

// CreateTable creates the named table if it does not exist yet and returns
// its handle.
func (env *Env) CreateTable(tx *RwTx, name string) (Table, error) {
	env.checkTx(&tx.Tx)
	if tx.done {
		return Table{}, ErrTxDone
	}
	_, err := tx.stx.CreateTable(name)
	if err != nil {
		return Table{}, &EngineError{Op: "create", Table: name, Err: err}
	}
	tbl := env.handle(name)
	delete(tx.tables, tbl.id)
	tx.mutated()
	return tbl, nil
}

// OpenTable returns the handle of an existing table. The boolean is false if
// the table does not exist.
func (env *Env) OpenTable(txh Txish, name string) (Table, bool, error) {
	tx := txh.DBTx()
	env.checkTx(tx)
	if tx.done {
		return Table{}, false, ErrTxDone
	}
	if tx.stx.Table(name) == nil {
		return Table{}, false, nil
	}
	return env.handle(name), true, nil
}

// DropTable deletes the named table with all its contents. Returns false if
// the table did not exist.
func (env *Env) DropTable(tx *RwTx, name string) (bool, error) {
	env.checkTx(&tx.Tx)
	if tx.done {
		return false, ErrTxDone
	}
	err := tx.stx.DropTable(name)
	if err == errStorageNotFound {
		return false, nil
	} else if err != nil {
		return false, &EngineError{Op: "drop", Table: name, Err: err}
	}
	if id, ok := env.tableIDs.Load(name); ok {
		delete(tx.tables, id)
	}
	tx.mutated()
	if env.verbose {
		env.logger.LogAttrs(context.Background(), slog.LevelDebug, "tkv: DROP", slog.String("table", name))
	}
	return true, nil
}

func (env *Env) addTx(tx *Tx) {
	env.txnsLock.Lock()
	defer env.txnsLock.Unlock()
	env.txns = append(env.txns, tx)
}

func (env *Env) removeTx(tx *Tx) {
	env.txnsLock.Lock()
	defer env.txnsLock.Unlock()

	found := slices.Index(env.txns, tx)
	if found < 0 {
		panic("tx not found in list")
	}

	n := len(env.txns)
	env.txns[found] = env.txns[n-1]
	env.txns[n-1] = nil
	env.txns = env.txns[:n-1]
}

func (env *Env) DescribeOpenTxns() string {
	if !trackTxns {
		return "OPEN TX TRACKING DISABLED"
	}

	env.txnsLock.Lock()
	txns := slices.Clone(env.txns)
	env.txnsLock.Unlock()

	if len(txns) == 0 {
		return "NO OPEN TRANSACTIONS"
	}

	slices.SortFunc(txns, func(a, b *Tx) int {
		return a.startTime.Compare(b.startTime)
	})

	now := time.Now()

	var buf strings.Builder
	fmt.Fprintf(&buf, "%d OPEN TRANSACTIONS:\n", len(txns))
	for _, tx := range txns {
		kind := "read"
		if tx.writable {
			kind = "write"
		}
		ms := now.Sub(tx.startTime).Milliseconds()
		if ms < 100 {
			fmt.Fprintf(&buf, "\n---\n%s, open for %d ms\n", kind, ms)
		} else {
			fmt.Fprintf(&buf, "\n---\n%s, open for %d ms:\n%s", kind, ms, tx.stack)
		}
	}
	return buf.String()
}
