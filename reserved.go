package tkv

import (
	"errors"
	"fmt"
	"io"
)

var errReservedOverflow = errors.New("write exceeds reserved space")

// ReservedSpace is the value buffer of a reserved put, living directly in
// storage memory. Writers must fill it exactly; writing past its end fails.
type ReservedSpace struct {
	buf      []byte
	n        int
	overflow bool
}

var _ io.Writer = (*ReservedSpace)(nil)

func (w *ReservedSpace) Write(p []byte) (int, error) {
	if len(p) > len(w.buf)-w.n {
		w.overflow = true
		return 0, errReservedOverflow
	}
	w.n += copy(w.buf[w.n:], p)
	return len(p), nil
}

func (w *ReservedSpace) WriteByte(c byte) error {
	if w.n >= len(w.buf) {
		w.overflow = true
		return errReservedOverflow
	}
	w.buf[w.n] = c
	w.n++
	return nil
}

// Size is the number of reserved bytes.
func (w *ReservedSpace) Size() int {
	return len(w.buf)
}

// Written is the number of bytes written so far.
func (w *ReservedSpace) Written() int {
	return w.n
}

func (w *ReservedSpace) Remaining() int {
	return len(w.buf) - w.n
}

func fillReserved(buf []byte, write func(w *ReservedSpace) error) error {
	w := &ReservedSpace{buf: buf}
	err := write(w)
	if err != nil {
		if w.overflow {
			return fmt.Errorf("%w: %w", ErrReservedIncomplete, err)
		}
		return err
	}
	if w.overflow || w.n != len(buf) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrReservedIncomplete, w.n, len(buf))
	}
	return nil
}
