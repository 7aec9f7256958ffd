package tkv

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTxDone         = errors.New("tkv: transaction has already been committed or rolled back")
	ErrTxReadOnly     = errors.New("tkv: transaction is read-only")
	ErrTableNotFound  = errors.New("tkv: table not found")
	ErrEnvClosed      = errors.New("tkv: environment is closed")
	ErrEnvAlreadyOpen = errors.New("tkv: environment is already open in this process")

	// ErrKeyOrder is returned by Append when the key does not sort after
	// every key already in the table.
	ErrKeyOrder = errors.New("key is not greater than the last key of the table")

	// ErrKeyRequired is returned when storing an entry with an empty key.
	ErrKeyRequired = errors.New("key must not be empty")

	// ErrReservedSize is returned by PutReserved for a negative size.
	ErrReservedSize = errors.New("reserved size must not be negative")

	// ErrReservedIncomplete is returned by PutReserved when the writer does
	// not fill the reserved space exactly.
	ErrReservedIncomplete = errors.New("reserved space not filled exactly")

	// ErrUnpositioned is returned when a cursor is moved relative to its
	// current position before being positioned.
	ErrUnpositioned = errors.New("cursor is not positioned")
)

// EncodingError means a codec failed to encode a typed value.
type EncodingError struct {
	Codec string
	Err   error
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: encoding failed: %v", e.Codec, e.Err)
}

// DecodingError means stored bytes could not be decoded, which usually
// indicates corruption or a codec mismatch.
type DecodingError struct {
	Codec string
	Data  []byte
	Err   error
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("%s: decoding failed: %v: %s", e.Codec, e.Err, truncatedHex(e.Data))
}

// TableError adds the table and key to an error.
type TableError struct {
	Table string
	Key   []byte
	Msg   string
	Err   error
}

func tableErrf(tbl Table, key []byte, err error, format string, args ...any) error {
	return &TableError{tbl.name, key, fmt.Sprintf(format, args...), err}
}

func (e *TableError) Unwrap() error {
	return e.Err
}

func (e *TableError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table)
	if e.Key != nil {
		buf.WriteByte('/')
		buf.WriteString(hexstr(e.Key))
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// EngineError wraps a failure reported by the storage engine.
type EngineError struct {
	Op    string
	Table string
	Err   error
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("tkv: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("tkv: %s %s: %v", e.Op, e.Table, e.Err)
}

func engineErr(op string, tbl Table, err error) error {
	if err == nil {
		return nil
	}
	switch err {
	case errStorageNotFound:
		err = ErrTableNotFound
	case errStorageKeyOrder:
		err = ErrKeyOrder
	case errStorageNoKey:
		err = ErrKeyRequired
	}
	return &EngineError{Op: op, Table: tbl.name, Err: err}
}

func truncatedHex(data []byte) string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(data)
	if n <= prefixLen+suffixLen {
		return fmt.Sprintf("(%d) %x", n, data)
	}
	return fmt.Sprintf("(%d) %x...%x", n, data[:prefixLen], data[n-suffixLen:])
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}
