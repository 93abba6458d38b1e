package cache

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec converts values to and from the bytes persisted by durable tiers.
type Codec[V any] interface {
	Encode(value V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// MsgpackCodec serializes values with msgpack. It is the default codec.
type MsgpackCodec[V any] struct{}

func (MsgpackCodec[V]) Encode(value V) ([]byte, error) {
	return msgpack.Marshal(value)
}

func (MsgpackCodec[V]) Decode(data []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(data, &v)
	return v, err
}

// JSONCodec serializes values as JSON, for stores that must stay readable
// by other tools.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(value V) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONCodec[V]) Decode(data []byte) (V, error) {
	var v V
	err := json.Unmarshal(data, &v)
	return v, err
}

// CodecByName returns the codec registered under name ("msgpack" or "json").
func CodecByName[V any](name string) (Codec[V], bool) {
	switch name {
	case "", "msgpack":
		return MsgpackCodec[V]{}, true
	case "json":
		return JSONCodec[V]{}, true
	}
	return nil, false
}
