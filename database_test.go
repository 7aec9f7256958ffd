package tkv

import (
	"errors"
	"testing"
	"time"

	"github.com/andreyvit/tkv/codec"
)

type event struct {
	At   time.Time `msgpack:"t"`
	Kind string    `msgpack:"k"`
	N    int       `msgpack:"n"`
}

func TestDatabase_Uniform(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		db := Uniform[uint64, event](createTable(t, env, "events"), codec.U64, codec.MsgPack[event]{})
		at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

		write(t, env, func(tx *RwTx) {
			for i := uint64(1); i <= 5; i++ {
				ensure(db.Append(tx, i*10, event{At: at.Add(time.Duration(i) * time.Hour), Kind: "tick", N: int(i)}))
			}
			ensure(db.Put(tx, 25, event{At: at, Kind: "extra"}))
		})

		read(t, env, func(tx *Tx) {
			ev, found := must2(db.Get(tx, 30))
			deepEqual(t, found, true)
			deepEqual(t, ev.N, 3)
			deepEqual(t, ev.At.Equal(at.Add(3*time.Hour)), true)

			deepEqual(t, must(db.GetOrDefault(tx, 31, event{Kind: "none"})).Kind, "none")

			k, ev, found := must3(db.GetLowerThan(tx, 30))
			deepEqual(t, k, uint64(25))
			deepEqual(t, ev.Kind, "extra")
			k, _, _ = must3(db.GetLowerThanOrEqualTo(tx, 30))
			deepEqual(t, k, uint64(30))
			k, _, _ = must3(db.GetGreaterThan(tx, 30))
			deepEqual(t, k, uint64(40))
			k, _, _ = must3(db.GetGreaterThanOrEqualTo(tx, 31))
			deepEqual(t, k, uint64(40))

			k, _, _ = must3(db.First(tx))
			deepEqual(t, k, uint64(10))
			k, _, _ = must3(db.Last(tx))
			deepEqual(t, k, uint64(50))
			deepEqual(t, must(db.Len(tx)), 6)
			deepEqual(t, must(db.IsEmpty(tx)), false)

			deepEqual(t, keysOf(must(must(db.ScanRange(tx, RangeIE[uint64](20, 40))).Collect())), []uint64{20, 25, 30})
			deepEqual(t, keysOf(must(must(db.RevScanRange(tx, RangeEI[uint64](20, 40))).Collect())), []uint64{40, 30, 25})
			deepEqual(t, keysOf(must(must(db.Scan(tx)).Collect())), []uint64{10, 20, 25, 30, 40, 50})
			deepEqual(t, keysOf(must(must(db.RevScan(tx)).Collect())), []uint64{50, 40, 30, 25, 20, 10})
			deepEqual(t, keysOf(must(must(db.ScanPrefix(tx, 50)).Collect())), []uint64{50})
			deepEqual(t, keysOf(must(must(db.RevScanPrefix(tx, 10)).Collect())), []uint64{10})
		})

		write(t, env, func(tx *RwTx) {
			if err := db.Append(tx, 45, event{}); !errors.Is(err, ErrKeyOrder) {
				t.Errorf("Append(45) = %v, wanted ErrKeyOrder", err)
			}

			it := must(db.ScanMut(tx))
			for it.Next() {
				ev := it.Value()
				ev.N *= 100
				must(it.PutCurrent(ev))
			}
			ensure(it.Err())

			deepEqual(t, must(db.DeleteRange(tx, RangeEE[uint64](10, 30))), 2)
			deepEqual(t, must(db.Delete(tx, 50)), true)
			deepEqual(t, keysOf(must(must(db.RevScanMut(tx)).Collect())), []uint64{40, 30, 10})
		})

		read(t, env, func(tx *Tx) {
			ev, _ := must2(db.Get(tx, 40))
			deepEqual(t, ev.N, 400)
		})

		write(t, env, func(tx *RwTx) {
			ensure(db.Clear(tx))
			deepEqual(t, must(db.IsEmpty(tx)), true)
		})
	})
}

func TestDatabase_MutVariants(t *testing.T) {
	env := setupMemory(t)
	db := Uniform[uint64, uint64](createTable(t, env, "seq"), codec.U64, codec.U64)
	fillSequence(t, env, db.Table(), 6)

	write(t, env, func(tx *RwTx) {
		it := must(db.ScanRangeMut(tx, RangeII[uint64](2, 3)))
		for it.Next() {
			must(it.DelCurrent())
		}
		it2 := must(db.RevScanRangeMut(tx, RangeOI[uint64](1)))
		for it2.Next() {
			must(it2.PutCurrent(11))
		}
		it2 = must(db.ScanPrefixMut(tx, 4))
		for it2.Next() {
			must(it2.PutCurrent(44))
		}
		it2 = must(db.RevScanPrefixMut(tx, 5))
		for it2.Next() {
			must(it2.DelCurrent())
		}
		ensure(db.PutReserved(tx, 7, 8, func(w *ReservedSpace) error {
			_, err := w.Write(x("0000000000000046"))
			return err
		}))
	})

	read(t, env, func(tx *Tx) {
		deepEqual(t, must(must(db.Scan(tx)).Collect()), []KV[uint64, uint64]{{1, 11}, {4, 44}, {6, 60}, {7, 70}})
	})
}

func TestDatabase_Remap(t *testing.T) {
	env := setupMemory(t)
	strs := Uniform[string, string](createTable(t, env, "t"), codec.Str{}, codec.Str{})
	raw := Remap[[]byte, []byte](strs, codec.OwnedBytes{}, codec.OwnedBytes{})
	deepEqual(t, raw.Table(), strs.Table())

	write(t, env, func(tx *RwTx) {
		ensure(strs.Put(tx, "hello", "world"))
	})
	read(t, env, func(tx *Tx) {
		v, found := must2(raw.Get(tx, []byte("hello")))
		deepEqual(t, found, true)
		deepEqual(t, v, []byte("world"))
	})
}

func TestDatabase_ChecksummedDetectsCorruption(t *testing.T) {
	env := setupMemory(t)
	tbl := createTable(t, env, "docs")
	db := Uniform[string, string](tbl, codec.Str{}, codec.Checksummed[string]{Inner: codec.Str{}})
	write(t, env, func(tx *RwTx) {
		ensure(db.Put(tx, "a", "alpha"))
		ensure(db.Put(tx, "b", "beta"))
	})
	write(t, env, func(tx *RwTx) {
		it := must(ScanPrefixMut[string, []byte](tx, tbl, codec.Str{}, codec.OwnedBytes{}, "b"))
		for it.Next() {
			v := it.Value()
			v[0] ^= 1
			must(it.PutCurrentRaw(v))
		}
		ensure(it.Err())
	})
	read(t, env, func(tx *Tx) {
		v, _ := must2(db.Get(tx, "a"))
		deepEqual(t, v, "alpha")
		_, _, err := db.Get(tx, "b")
		if !errors.Is(err, codec.ErrChecksum) {
			t.Fatalf("Get of corrupted value = %v, wanted ErrChecksum", err)
		}
	})
}
