package crypto

import (
	"crypto/sha256"
	"fmt"
)

// Hasher computes a deterministic content hash of arbitrary bytes. The ledger
// never calls a hash function directly; it goes through a Hasher so that the
// backend can be swapped (eg. a cheap mock for browser-parity tests) without
// touching block or transaction logic.
type Hasher interface {
	// Hash returns the digest of data.
	Hash(data []byte) []byte

	// Name identifies the backend, eg. "sha256".
	Name() string
}

// SHA256Hasher is the default Hasher backend.
type SHA256Hasher struct{}

// Hash implements Hasher.
func (SHA256Hasher) Hash(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	return hasher.Sum(nil)
}

// Name implements Hasher.
func (SHA256Hasher) Name() string { return "sha256" }

// SimpleHashFromTwoHashes returns the SHA256 hash of the concatenation of
// left and right data.
func SimpleHashFromTwoHashes(left []byte, right []byte) []byte {
	var hasher = sha256.New()
	hasher.Write(left)
	hasher.Write(right)
	return hasher.Sum(nil)
}

// MockHasher is a djb2-style rolling hash. It is NOT cryptographic; it exists
// to mirror the mock hash used by lightweight clients so that fixtures can be
// computed by hand, and to prove that nothing in the ledger depends on a
// particular digest.
type MockHasher struct{}

// Hash implements Hasher.
func (MockHasher) Hash(data []byte) []byte {
	var h uint64 = 5381
	for _, b := range data {
		h = h*33 + uint64(b)
	}
	return []byte(fmt.Sprintf("%016x", h))
}

// Name implements Hasher.
func (MockHasher) Name() string { return "mock" }
