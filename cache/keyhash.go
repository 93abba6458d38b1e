package cache

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// KeyHasher maps a key to the file name a Silo stores it under. The result
// must be stable across processes and safe to use as a path element.
type KeyHasher func(key any) (string, error)

// HashKey hashes strings directly and every other key by its msgpack
// encoding, returning 16 lowercase hex digits of xxhash64. Pointer keys hash
// by the value they point at.
func HashKey(key any) (string, error) {
	var sum uint64
	switch k := key.(type) {
	case string:
		sum = xxhash.Sum64String(k)
	case []byte:
		sum = xxhash.Sum64(k)
	default:
		buf, err := msgpack.Marshal(k)
		if err != nil {
			return "", encodeError(err)
		}
		sum = xxhash.Sum64(buf)
	}
	return fmt.Sprintf("%016x", sum), nil
}

// keyString renders a key as a keychain account name.
func keyString(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	case int:
		return strconv.Itoa(k)
	}
	return fmt.Sprint(key)
}
