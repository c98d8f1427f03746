// Package keys derives the 64-bit bucket keys used by the field indices.
//
// Both functions are FNV-1a 64. Neither folds case: callers normalise text
// first when they want case-insensitive matching. Distinct values may collide;
// the index stores the source value next to each bucket to detect that.
package keys

import (
	"encoding/binary"
	"hash/fnv"
)

// ForText hashes the bytes of s.
func ForText(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// ForInteger hashes the little-endian bit pattern of v.
func ForInteger(v int64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	h := fnv.New64a()
	h.Write(buf[:])
	return h.Sum64()
}
