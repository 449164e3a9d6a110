// Package storagekey derives the trie keys of the storage items read while
// composing a proof.
package storagekey

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hasher maps a key component to its position in the storage trie.
type Hasher func(data []byte) []byte

// Twox128 is two xxhash64 rounds seeded with 0 and 1, little endian.
func Twox128(data []byte) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[:8], twox64(data, 0))
	binary.LittleEndian.PutUint64(out[8:], twox64(data, 1))
	return out
}

// Twox64Concat is a single xxhash64 round followed by the raw data.
func Twox64Concat(data []byte) []byte {
	out := make([]byte, 8, 8+len(data))
	binary.LittleEndian.PutUint64(out, twox64(data, 0))
	return append(out, data...)
}

func twox64(data []byte, seed uint64) uint64 {
	d := xxhash.NewWithSeed(seed)
	_, _ = d.Write(data)
	return d.Sum64()
}
