package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgPack stores values as MessagePack. Map keys are sorted so that equal
// values always produce equal bytes.
type MsgPack[T any] struct{}

func (MsgPack[T]) Encode(v T) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("msgpack: %w", err)
	}
	return buf.Bytes(), nil
}

func (MsgPack[T]) Decode(data []byte) (T, error) {
	var v T
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(&v)
	msgpack.PutDecoder(dec)
	if err != nil {
		return v, fmt.Errorf("msgpack: %w", err)
	}
	return v, nil
}

func (MsgPack[T]) String() string {
	var v T
	return fmt.Sprintf("MsgPack[%T]", v)
}

// JSON stores values as JSON documents.
type JSON[T any] struct{}

func (JSON[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON[T]) Decode(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

func (JSON[T]) String() string {
	var v T
	return fmt.Sprintf("JSON[%T]", v)
}
