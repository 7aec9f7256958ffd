package tkv

import (
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/andreyvit/tkv/codec"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

func TestEnv_OpenTwiceFails(t *testing.T) {
	env := setup(t)
	_, err := Open(env.Path(), Options{IsTesting: true})
	if !errors.Is(err, ErrEnvAlreadyOpen) {
		t.Fatalf("second Open = %v, wanted ErrEnvAlreadyOpen", err)
	}
}

func TestEnv_ReopenKeepsData(t *testing.T) {
	dbFile := must(os.CreateTemp("", "tkv_test_*.db"))
	dbFile.Close()
	path := dbFile.Name()
	t.Cleanup(func() { os.Remove(path) })

	env := must(Open(path, Options{IsTesting: true}))
	ensure(env.Write(func(tx *RwTx) error {
		tbl, err := env.CreateTable(tx, "t")
		if err != nil {
			return err
		}
		return Put[uint64, string](tx, tbl, codec.U64, codec.Str{}, 42, "forty two")
	}))
	ensure(env.Close())

	env = must(Open(path, Options{IsTesting: true}))
	defer env.Close()
	read(t, env, func(tx *Tx) {
		tbl, found := must2(env.OpenTable(tx, "t"))
		if !found {
			t.Fatalf("OpenTable after reopen: not found")
		}
		v, found := must2(Get[uint64, string](tx, tbl, codec.U64, codec.Str{}, 42))
		deepEqual(t, found, true)
		deepEqual(t, v, "forty two")
	})
}

func TestEnv_ClosedEnvRejectsTransactions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		ensure(env.Close())
		if _, err := env.BeginRead(); !errors.Is(err, ErrEnvClosed) {
			t.Errorf("BeginRead = %v, wanted ErrEnvClosed", err)
		}
		if _, err := env.BeginWrite(); !errors.Is(err, ErrEnvClosed) {
			t.Errorf("BeginWrite = %v, wanted ErrEnvClosed", err)
		}
		ensure(env.Close())
	})
}

func TestEnv_Tables(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		read(t, env, func(tx *Tx) {
			_, found := must2(env.OpenTable(tx, "nums"))
			deepEqual(t, found, false)
		})

		tbl := createTable(t, env, "nums")
		deepEqual(t, tbl.Name(), "nums")
		deepEqual(t, tbl.IsZero(), false)
		deepEqual(t, createTable(t, env, "nums"), tbl)

		write(t, env, func(tx *RwTx) {
			ensure(Put[uint64, string](tx, tbl, codec.U64, codec.Str{}, 1, "one"))
		})
		read(t, env, func(tx *Tx) {
			other, found := must2(env.OpenTable(tx, "nums"))
			deepEqual(t, found, true)
			deepEqual(t, other, tbl)
		})

		write(t, env, func(tx *RwTx) {
			deepEqual(t, must(env.DropTable(tx, "nums")), true)
			deepEqual(t, must(env.DropTable(tx, "nums")), false)
			_, err := Len(tx, tbl)
			if !errors.Is(err, ErrTableNotFound) {
				t.Errorf("Len of dropped table = %v, wanted ErrTableNotFound", err)
			}
		})

		tbl = createTable(t, env, "nums")
		read(t, env, func(tx *Tx) {
			deepEqual(t, must(IsEmpty(tx, tbl)), true)
		})
	})
}

func TestEnv_DropRolledBack(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		tbl := createTable(t, env, "t")
		write(t, env, func(tx *RwTx) {
			ensure(Put[uint64, string](tx, tbl, codec.U64, codec.Str{}, 1, "one"))
		})

		tx := must(env.BeginWrite())
		deepEqual(t, must(env.DropTable(tx, "t")), true)
		tx.Close()

		read(t, env, func(tx *Tx) {
			deepEqual(t, must(Len(tx, tbl)), 1)
		})
	})
}

func TestEnv_ForeignHandlesPanic(t *testing.T) {
	env1 := OpenMemory(Options{})
	env2 := OpenMemory(Options{})
	defer env1.Close()
	defer env2.Close()

	tbl1 := createTable(t, env1, "t")
	createTable(t, env2, "t")

	read(t, env2, func(tx *Tx) {
		assertPanics(t, func() {
			_, _, _ = Get[uint64, string](tx, tbl1, codec.U64, codec.Str{}, 1)
		})
		assertPanics(t, func() {
			_, _, _ = env1.OpenTable(tx, "t")
		})
		assertPanics(t, func() {
			_, _ = Len(tx, Table{})
		})
	})
}

func TestEnv_DescribeOpenTxns(t *testing.T) {
	env := setupMemory(t)
	deepEqual(t, env.DescribeOpenTxns(), "NO OPEN TRANSACTIONS")

	tx := must(env.BeginRead())
	s := env.DescribeOpenTxns()
	if !strings.HasPrefix(s, "1 OPEN TRANSACTIONS:") || !strings.Contains(s, "read, open for") {
		t.Errorf("DescribeOpenTxns = %q, wanted one read transaction", s)
	}
	deepEqual(t, env.ReaderCount.Load(), int64(1))
	tx.Close()
	deepEqual(t, env.ReaderCount.Load(), int64(0))
	deepEqual(t, env.DescribeOpenTxns(), "NO OPEN TRANSACTIONS")
}

func setup(t testing.TB) *Env {
	t.Helper()

	dbFile := must(os.CreateTemp("", "tkv_test_*.db"))
	t.Logf("DB: %s", dbFile.Name())
	dbFile.Close()

	env := must(Open(dbFile.Name(), Options{
		IsTesting: true,
	}))
	t.Cleanup(func() {
		env.Close()
		os.Remove(dbFile.Name())
	})
	return env
}

func setupMemory(t testing.TB) *Env {
	env := OpenMemory(Options{})
	t.Cleanup(func() { env.Close() })
	return env
}

func forEachBackend(t *testing.T, f func(t *testing.T, env *Env)) {
	t.Run("bolt", func(t *testing.T) {
		f(t, setup(t))
	})
	t.Run("mem", func(t *testing.T) {
		f(t, setupMemory(t))
	})
}

func createTable(t testing.TB, env *Env, name string) Table {
	t.Helper()
	var tbl Table
	err := env.Write(func(tx *RwTx) error {
		var err error
		tbl, err = env.CreateTable(tx, name)
		return err
	})
	if err != nil {
		t.Fatalf("CreateTable(%q) failed: %v", name, err)
	}
	return tbl
}

// write runs f in a write transaction; use must and ensure inside f, their
// panics roll the transaction back and fail the test.
func write(t testing.TB, env *Env, f func(tx *RwTx)) {
	t.Helper()
	err := env.Write(func(tx *RwTx) error {
		f(tx)
		return nil
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func read(t testing.TB, env *Env, f func(tx *Tx)) {
	t.Helper()
	err := env.Read(func(tx *Tx) error {
		f(tx)
		return nil
	})
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
}

func newTestLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func must2[A, B any](a A, b B, err error) (A, B) {
	if err != nil {
		panic(err)
	}
	return a, b
}

func must3[A, B, C any](a A, b B, c C, err error) (A, B, C) {
	if err != nil {
		panic(err)
	}
	return a, b, c
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isempty[T any, S ~[]T](t testing.TB, a S) {
	if len(a) > 0 {
		t.Helper()
		t.Errorf("** got %v, wanted empty slice", a)
	}
}

func x(data string) []byte {
	data = strings.ReplaceAll(data, " ", "")
	return must(hex.DecodeString(data))
}

func assertPanics(t testing.TB, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	fn()
}
