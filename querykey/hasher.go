package querykey

import (
	"github.com/cespare/xxhash/v2"
)

// Prefix namespaces hashes so they never collide with raw string keys.
const Prefix = "qk:"

// HashFunc maps a key to an opaque cache key string.
type HashFunc func(key Key) (string, error)

// Hash returns Prefix followed by the canonical form of key.
// Two keys hash equally exactly when their canonical forms are equal.
func Hash(key Key) (string, error) {
	form, err := Serialize([]any(key))
	if err != nil {
		return "", err
	}
	return Prefix + form, nil
}

// MustHash is like Hash but panics if key is cyclic.
func MustHash(key Key) string {
	h, err := Hash(key)
	if err != nil {
		panic(err)
	}
	return h
}

// Fingerprint returns a 64-bit digest of a hash, suitable for log fields and
// metric labels. It is not collision free and must not replace the hash as a
// map key.
func Fingerprint(hash string) uint64 {
	return xxhash.Sum64String(hash)
}
