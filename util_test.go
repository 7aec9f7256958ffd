package tkv

import (
	"log/slog"
	"testing"
)

func TestRpad(t *testing.T) {
	if got := rpad("abc", 5, '.'); got != "abc.." {
		t.Fatalf("rpad = %q, wanted %q", got, "abc..")
	}
	if got := rpad("abc", 1, '.'); got != "abc" {
		t.Fatalf("rpad = %q, wanted %q", got, "abc")
	}
}

func TestPrefixSuccessor(t *testing.T) {
	o := func(prefix, expected []byte) {
		t.Helper()
		deepEqual(t, prefixSuccessor(prefix), expected)
	}
	o(nil, nil)
	o([]byte{}, nil)
	o(x("00"), x("01"))
	o(x("0a0b"), x("0a0c"))
	o(x("0aff"), x("0b"))
	o(x("01ffff"), x("02"))
	o(x("ff"), nil)
	o(x("ffff"), nil)
	o(x("fffe"), x("ffff"))

	in := x("0aff")
	prefixSuccessor(in)
	deepEqual(t, in, x("0aff"))
}

func TestHexHelpers(t *testing.T) {
	if got := hexstr(nil); got != "<nil>" {
		t.Fatalf("hexstr(nil) = %q, wanted <nil>", got)
	}
	if got := hexstr([]byte{}); got != "<empty>" {
		t.Fatalf("hexstr(empty) = %q, wanted <empty>", got)
	}
	if got := hexstr([]byte{0xAA, 0xBB}); got != "aabb" {
		t.Fatalf("hexstr = %q, wanted aabb", got)
	}
	if got := (hexBytes{0x01, 0xFF}).String(); got != "01ff" {
		t.Fatalf("hexBytes = %q, wanted 01ff", got)
	}
	a := hexAttr("k", []byte{0xAA})
	if a.Key != "k" || a.Value.Kind() != slog.KindString || a.Value.String() != "aa" {
		t.Fatalf("hexAttr returned unexpected attr: %+v", a)
	}
}
