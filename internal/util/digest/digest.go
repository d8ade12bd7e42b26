// Package digest computes the content hashes used to detect changed inputs.
package digest

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Sum returns the hex-encoded BLAKE2b-256 digest of data.
func Sum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SumAll hashes the concatenation of parts, each prefixed by its length so
// that ("ab", "c") and ("a", "bc") differ.
func SumAll(parts ...[]byte) string {
	h, _ := blake2b.New256(nil)
	var size [8]byte
	for _, p := range parts {
		n := uint64(len(p))
		for i := range size {
			size[i] = byte(n >> (8 * i))
		}
		h.Write(size[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
