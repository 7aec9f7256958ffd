package tkv

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/andreyvit/tkv/codec"
)

func TestIter_Ranges(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		tbl := createTable(t, env, "nums")
		putNumbers(t, env, tbl)

		read(t, env, func(tx *Tx) {
			o := func(name string, r Range[int64], rev bool, exp ...int64) {
				t.Helper()
				var it *Iter[int64, []byte]
				if rev {
					it = must(RevScanRange[int64, []byte](tx, tbl, codec.I64, codec.Bytes{}, r))
				} else {
					it = must(ScanRange[int64, []byte](tx, tbl, codec.I64, codec.Bytes{}, r))
				}
				keys := keysOf(must(it.Collect()))
				if !equalSlices(keys, exp) {
					t.Errorf("** %s: got %v, wanted %v", name, keys, exp)
				}
			}

			o("all", RangeOO[int64](), false, 0, 35, 42, 68)
			o("incl incl", RangeII[int64](35, 42), false, 35, 42)
			o("incl excl", RangeIE[int64](35, 42), false, 35)
			o("excl incl", RangeEI[int64](35, 42), false, 42)
			o("excl excl", RangeEE[int64](35, 42), false)
			o("excl excl wide", RangeEE[int64](0, 68), false, 35, 42)
			o("incl open", RangeIO[int64](36), false, 42, 68)
			o("excl open at last", RangeEO[int64](68), false)
			o("open excl", RangeOE[int64](42), false, 0, 35)
			o("open incl", RangeOI[int64](42), false, 0, 35, 42)
			o("open incl below first", RangeOI[int64](-1), false)
			o("inverted", RangeII[int64](42, 35), false)
			o("empty gap", RangeII[int64](36, 41), false)

			o("rev all", RangeOO[int64](), true, 68, 42, 35, 0)
			o("rev incl incl", RangeII[int64](35, 42), true, 42, 35)
			o("rev incl excl on key", RangeIE[int64](35, 42), true, 35)
			o("rev incl excl between", RangeIE[int64](35, 43), true, 42, 35)
			o("rev excl incl", RangeEI[int64](35, 42), true, 42)
			o("rev excl excl", RangeEE[int64](35, 42), true)
			o("rev open excl", RangeOE[int64](43), true, 42, 35, 0)
			o("rev open excl on first", RangeOE[int64](0), true)
			o("rev open incl past last", RangeOI[int64](100), true, 68, 42, 35, 0)
			o("rev excl open", RangeEO[int64](35), true, 68, 42)
			o("rev incl open below first", RangeIO[int64](-10), true, 68, 42, 35, 0)
			o("rev inverted", RangeII[int64](42, 35), true)
		})
	})
}

func equalSlices[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIter_Prefix(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		tbl := createTable(t, env, "t")
		keys := []string{"a", "ab", "abc", "abd", "b", "\xff", "\xff\x01", "\xff\xff", "\xff\xff\x00"}
		write(t, env, func(tx *RwTx) {
			for _, k := range keys {
				ensure(Put[[]byte, struct{}](tx, tbl, codec.OwnedBytes{}, codec.Unit{}, []byte(k), struct{}{}))
			}
		})

		read(t, env, func(tx *Tx) {
			o := func(prefix string, rev bool, exp ...string) {
				t.Helper()
				var it *Iter[[]byte, struct{}]
				if rev {
					it = must(RevScanPrefix[[]byte, struct{}](tx, tbl, codec.OwnedBytes{}, codec.Unit{}, []byte(prefix)))
				} else {
					it = must(ScanPrefix[[]byte, struct{}](tx, tbl, codec.OwnedBytes{}, codec.Unit{}, []byte(prefix)))
				}
				var got []string
				for k := range it.Keys() {
					got = append(got, string(k))
				}
				if !equalSlices(got, exp) {
					t.Errorf("** prefix %x rev=%v: got %q, wanted %q", prefix, rev, got, exp)
				}
			}

			o("ab", false, "ab", "abc", "abd")
			o("ab", true, "abd", "abc", "ab")
			o("a", false, "a", "ab", "abc", "abd")
			o("abc", false, "abc")
			o("abcd", false)
			o("c", false)
			o("c", true)
			o("\xff", false, "\xff", "\xff\x01", "\xff\xff", "\xff\xff\x00")
			o("\xff", true, "\xff\xff\x00", "\xff\xff", "\xff\x01", "\xff")
			o("\xff\xff", false, "\xff\xff", "\xff\xff\x00")
			o("\xff\xff", true, "\xff\xff\x00", "\xff\xff")
			o("", false, keys...)
		})
	})
}

func TestIter_PairPrefix(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		tbl := createTable(t, env, "pairs")
		pc := codec.PairOf[uint32, string]{First: codec.U32, Second: codec.Str{}}
		type P = codec.Pair[uint32, string]
		write(t, env, func(tx *RwTx) {
			for _, p := range []P{{First: 4, Second: "z"}, {First: 5, Second: "a"}, {First: 5, Second: "b"}, {First: 5, Second: "c"}, {First: 6, Second: ""}} {
				ensure(Put[P, struct{}](tx, tbl, pc, codec.Unit{}, p, struct{}{}))
			}
		})
		read(t, env, func(tx *Tx) {
			it := must(ScanPrefix[P, struct{}](tx, tbl, pc, codec.Unit{}, P{First: 5}))
			deepEqual(t, keysOf(must(it.Collect())), []P{{First: 5, Second: "a"}, {First: 5, Second: "b"}, {First: 5, Second: "c"}})

			it = must(RevScanPrefix[P, struct{}](tx, tbl, pc, codec.Unit{}, P{First: 5, Second: "b"}))
			deepEqual(t, keysOf(must(it.Collect())), []P{{First: 5, Second: "b"}})
		})
	})
}

func fillSequence(t testing.TB, env *Env, tbl Table, n int) {
	t.Helper()
	write(t, env, func(tx *RwTx) {
		for i := 1; i <= n; i++ {
			ensure(Put[uint64, uint64](tx, tbl, codec.U64, codec.U64, uint64(i), uint64(i*10)))
		}
	})
}

func TestIter_DeleteWhileIterating(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		tbl := createTable(t, env, "seq")
		fillSequence(t, env, tbl, 10)

		write(t, env, func(tx *RwTx) {
			it := must(ScanMut[uint64, uint64](tx, tbl, codec.U64, codec.U64))
			var seen []uint64
			for it.Next() {
				seen = append(seen, it.Key())
				if it.Key()%2 == 0 {
					deepEqual(t, must(it.DelCurrent()), true)
					deepEqual(t, must(it.DelCurrent()), false)
				}
			}
			ensure(it.Err())
			deepEqual(t, seen, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
		})

		write(t, env, func(tx *RwTx) {
			it := must(RevScanMut[uint64, uint64](tx, tbl, codec.U64, codec.U64))
			var seen []uint64
			for it.Next() {
				seen = append(seen, it.Key())
				if it.Key()%3 == 0 {
					must(it.DelCurrent())
				}
			}
			ensure(it.Err())
			deepEqual(t, seen, []uint64{9, 7, 5, 3, 1})
		})

		read(t, env, func(tx *Tx) {
			it := must(Scan[uint64, uint64](tx, tbl, codec.U64, codec.U64))
			deepEqual(t, keysOf(must(it.Collect())), []uint64{1, 5, 7})
		})
	})
}

func TestIter_DeleteEverythingReverse(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		tbl := createTable(t, env, "seq")
		fillSequence(t, env, tbl, 5)
		write(t, env, func(tx *RwTx) {
			it := must(RevScanRangeMut[uint64, uint64](tx, tbl, codec.U64, codec.U64, RangeOO[uint64]()))
			var n int
			for it.Next() {
				must(it.DelCurrent())
				n++
			}
			deepEqual(t, n, 5)
			deepEqual(t, must(IsEmpty(tx, tbl)), true)
		})
	})
}

func TestIter_PutCurrent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		tbl := createTable(t, env, "seq")
		fillSequence(t, env, tbl, 6)

		write(t, env, func(tx *RwTx) {
			it := must(ScanRangeMut[uint64, uint64](tx, tbl, codec.U64, codec.U64, RangeIE[uint64](2, 5)))
			for it.Next() {
				deepEqual(t, must(it.PutCurrent(it.Value()+1)), true)
			}
			ensure(it.Err())

			it = must(ScanPrefixMut[uint64, uint64](tx, tbl, codec.U64, codec.U64, 6))
			for it.Next() {
				deepEqual(t, must(it.PutCurrentReserved(8, func(w *ReservedSpace) error {
					return binary.Write(w, binary.BigEndian, uint64(600))
				})), true)
			}
			ensure(it.Err())

			it = must(RevScanPrefixMut[uint64, uint64](tx, tbl, codec.U64, codec.U64, 1))
			for it.Next() {
				deepEqual(t, must(it.PutCurrentRaw(x("00000000 00000064"))), true)
			}
			ensure(it.Err())
		})

		read(t, env, func(tx *Tx) {
			it := must(Scan[uint64, uint64](tx, tbl, codec.U64, codec.U64))
			deepEqual(t, must(it.Collect()), []KV[uint64, uint64]{{1, 100}, {2, 21}, {3, 31}, {4, 41}, {5, 50}, {6, 600}})
		})
	})
}

func TestIter_PutCurrentReservedIncompleteKeepsValue(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		tbl := createTable(t, env, "seq")
		fillSequence(t, env, tbl, 3)
		write(t, env, func(tx *RwTx) {
			it := must(ScanMut[uint64, uint64](tx, tbl, codec.U64, codec.U64))
			defer it.Close()
			var seen []uint64
			for it.Next() {
				seen = append(seen, it.Key())
				if it.Key() == 2 {
					_, err := it.PutCurrentReserved(8, func(w *ReservedSpace) error {
						return w.WriteByte(1)
					})
					if !errors.Is(err, ErrReservedIncomplete) {
						t.Errorf("PutCurrentReserved = %v, wanted ErrReservedIncomplete", err)
					}
				}
			}
			deepEqual(t, seen, []uint64{1, 2, 3})
			v, _ := must2(Get[uint64, uint64](tx, tbl, codec.U64, codec.U64, 2))
			deepEqual(t, v, uint64(20))
		})
	})
}

func TestIter_StopsAfterDecodeError(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		tbl := createTable(t, env, "t")
		write(t, env, func(tx *RwTx) {
			ensure(Put[uint64, uint32](tx, tbl, codec.U64, codec.U32, 1, 10))
			ensure(Put[uint64, string](tx, tbl, codec.U64, codec.Str{}, 2, "xx"))
			ensure(Put[uint64, uint32](tx, tbl, codec.U64, codec.U32, 3, 30))
		})
		read(t, env, func(tx *Tx) {
			it := must(Scan[uint64, uint32](tx, tbl, codec.U64, codec.U32))
			defer it.Close()
			deepEqual(t, it.Next(), true)
			deepEqual(t, it.Key(), uint64(1))
			deepEqual(t, it.Value(), uint32(10))
			deepEqual(t, it.Next(), false)
			var de *DecodingError
			if !errors.As(it.Err(), &de) || !errors.Is(it.Err(), codec.ErrInvalidLength) {
				t.Fatalf("Err = %v, wanted DecodingError with ErrInvalidLength", it.Err())
			}
			deepEqual(t, it.Next(), false)

			it2 := must(Scan[uint64, uint32](tx, tbl, codec.U64, codec.U32))
			got, err := it2.Collect()
			deepEqual(t, got, []KV[uint64, uint32]{{1, 10}})
			if !errors.As(err, &de) {
				t.Errorf("Collect error = %v, wanted DecodingError", err)
			}
		})
	})
}

func TestIter_SeqAdapters(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		tbl := createTable(t, env, "seq")
		fillSequence(t, env, tbl, 5)

		read(t, env, func(tx *Tx) {
			var keys []uint64
			var values []uint64
			for k, v := range must(Scan[uint64, uint64](tx, tbl, codec.U64, codec.U64)).All() {
				keys = append(keys, k)
				values = append(values, v)
			}
			deepEqual(t, keys, []uint64{1, 2, 3, 4, 5})
			deepEqual(t, values, []uint64{10, 20, 30, 40, 50})

			values = nil
			for v := range must(RevScan[uint64, uint64](tx, tbl, codec.U64, codec.U64)).Values() {
				values = append(values, v)
			}
			deepEqual(t, values, []uint64{50, 40, 30, 20, 10})

			it := must(Scan[uint64, uint64](tx, tbl, codec.U64, codec.U64))
			for k := range it.Keys() {
				if k == 2 {
					break
				}
			}
			deepEqual(t, it.Next(), false)
			ensure(it.Err())
		})

		write(t, env, func(tx *RwTx) {
			it := must(ScanMut[uint64, uint64](tx, tbl, codec.U64, codec.U64))
			for range it.All() {
				break
			}
			// the early break released the mutable cursor
			it = must(ScanMut[uint64, uint64](tx, tbl, codec.U64, codec.U64))
			for range it.All() {
			}
		})
	})
}

func TestIter_EmptyTable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		tbl := createTable(t, env, "t")
		read(t, env, func(tx *Tx) {
			isempty(t, must(must(Scan[uint64, uint64](tx, tbl, codec.U64, codec.U64)).Collect()))
			isempty(t, must(must(RevScan[uint64, uint64](tx, tbl, codec.U64, codec.U64)).Collect()))
			isempty(t, must(must(RevScanRange[uint64, uint64](tx, tbl, codec.U64, codec.U64, RangeII[uint64](1, 2))).Collect()))
			isempty(t, must(must(ScanPrefix[uint64, uint64](tx, tbl, codec.U64, codec.U64, 1)).Collect()))
		})
	})
}

func TestIter_MutableCursorIsExclusive(t *testing.T) {
	env := setupMemory(t)
	tbl := createTable(t, env, "seq")
	fillSequence(t, env, tbl, 3)
	write(t, env, func(tx *RwTx) {
		it := must(ScanMut[uint64, uint64](tx, tbl, codec.U64, codec.U64))
		assertPanics(t, func() {
			_, _ = ScanMut[uint64, uint64](tx, tbl, codec.U64, codec.U64)
		})

		// read-only iterators can coexist with the mutable one
		ro := must(Scan[uint64, uint64](tx, tbl, codec.U64, codec.U64))
		deepEqual(t, ro.Next(), true)
		deepEqual(t, it.Next(), true)
		must(it.DelCurrent())
		deepEqual(t, ro.Next(), true)
		deepEqual(t, ro.Key(), uint64(2))
		ro.Close()
		it.Close()

		it = must(ScanMut[uint64, uint64](tx, tbl, codec.U64, codec.U64))
		it.Close()
	})
}

func TestIter_MutationsAfterExhaustion(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *Env) {
		tbl := createTable(t, env, "seq")
		fillSequence(t, env, tbl, 3)

		write(t, env, func(tx *RwTx) {
			it := must(ScanMut[uint64, uint64](tx, tbl, codec.U64, codec.U64))
			for it.Next() {
			}
			ensure(it.Err())
			deepEqual(t, must(it.DelCurrent()), false)
			deepEqual(t, must(it.PutCurrent(1)), false)
			deepEqual(t, must(it.PutCurrentRaw(x("0000000000000001"))), false)
			deepEqual(t, must(it.PutCurrentReserved(8, func(w *ReservedSpace) error {
				t.Errorf("writer called on an exhausted iterator")
				return nil
			})), false)

			it = must(RevScanMut[uint64, uint64](tx, tbl, codec.U64, codec.U64))
			deepEqual(t, it.Next(), true)
			it.Close()
			deepEqual(t, must(it.DelCurrent()), false)
			deepEqual(t, must(it.PutCurrent(1)), false)

			deepEqual(t, must(Len(tx, tbl)), 3)
		})
		read(t, env, func(tx *Tx) {
			it := must(Scan[uint64, uint64](tx, tbl, codec.U64, codec.U64))
			deepEqual(t, must(it.Collect()), []KV[uint64, uint64]{{1, 10}, {2, 20}, {3, 30}})
		})
	})
}
