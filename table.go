package tkv

import "fmt"

// Table identifies a named table of one environment. Tables are obtained from
// Env.CreateTable or Env.OpenTable and passed by value. The zero Table is
// invalid.
//
// A Table carries no codecs: every operation takes the key and value codecs
// to use, so one physical table can be read through different typed views.
// Mixing incompatible codecs over the same bytes is the caller's problem.
// See Database for a handle with fixed codecs.
type Table struct {
	env  uint64
	id   uint32
	name string
}

func (tbl Table) Name() string {
	return tbl.name
}

func (tbl Table) IsZero() bool {
	return tbl.env == 0
}

func (tbl Table) String() string {
	if tbl.env == 0 {
		return "<no table>"
	}
	return fmt.Sprintf("%s@%d", tbl.name, tbl.env)
}
