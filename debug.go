package tkv

import (
	"fmt"
	"io"
	"strings"
)

type DumpFlags uint64

const (
	DumpTableHeaders = DumpFlags(1 << iota)
	DumpRows
	DumpStats

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump writes a human-readable listing of the given tables with keys and
// values in hex. Meant for tests and debugging.
func (tx *Tx) Dump(w io.Writer, f DumpFlags, tables ...Table) error {
	for _, tbl := range tables {
		if err := tx.dumpTable(w, f, tbl); err != nil {
			return err
		}
	}
	return nil
}

// DumpString is Dump into a string.
func (tx *Tx) DumpString(f DumpFlags, tables ...Table) string {
	var buf strings.Builder
	ensure(tx.Dump(&buf, f, tables...))
	return buf.String()
}

func (tx *Tx) dumpTable(w io.Writer, f DumpFlags, tbl Table) error {
	s, err := tx.TableStats(tbl)
	if err != nil {
		return err
	}
	prefix := tbl.Name()

	if f.Contains(DumpTableHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d entries)\n", prefix, s.Entries)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: depth = %d, data_size = %d, data_alloc = %d\n", prefix, s.Depth, s.DataSize, s.DataAlloc)
	}
	if !f.Contains(DumpRows) {
		return nil
	}
	if f.Contains(DumpStats) {
		fmt.Fprintln(w, dumpSep2)
	}

	c, err := OpenCursor(tx, tbl)
	if err != nil {
		return err
	}
	defer c.Close()
	var pos int
	e, ok, err := c.MoveToFirst()
	for ; ok && err == nil; e, ok, err = c.MoveToNext() {
		pos++
		fmt.Fprintf(w, "%s %v => %v\n", rpad(fmt.Sprintf("%s.%d:", prefix, pos), len(prefix)+6, ' '), hexBytes(e.Key()), hexBytes(e.Value()))
	}
	return err
}
