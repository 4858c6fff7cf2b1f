package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/robjohncolson/apstat-chain/src/crypto/keys"
)

// Signer produces signatures over content digests. Like Hasher, it is an
// abstraction point: transactions are signed through a Signer so the ECDSA
// backend can be replaced by a mock without touching ledger logic.
type Signer interface {
	// Sign returns an encoded signature of digest.
	Sign(digest []byte) (string, error)

	// PublicKeyHex returns the hex form of the public key that Verify will
	// match signatures against.
	PublicKeyHex() string
}

// ECDSASigner signs with a secp256k1 private key.
type ECDSASigner struct {
	key *ecdsa.PrivateKey
}

// NewECDSASigner ...
func NewECDSASigner(key *ecdsa.PrivateKey) *ECDSASigner {
	return &ECDSASigner{key: key}
}

// Sign implements Signer.
func (s *ECDSASigner) Sign(digest []byte) (string, error) {
	r, sig, err := keys.Sign(s.key, digest)
	if err != nil {
		return "", err
	}
	return keys.EncodeSignature(r, sig), nil
}

// PublicKeyHex implements Signer.
func (s *ECDSASigner) PublicKeyHex() string {
	return keys.PublicKeyHex(&s.key.PublicKey)
}

const mockSigPrefix = "mock|"

// MockSigner tags content with its identity instead of signing it. Useful in
// tests and when running against MockHasher fixtures.
type MockSigner struct {
	ID string
}

// Sign implements Signer.
func (s MockSigner) Sign(digest []byte) (string, error) {
	return fmt.Sprintf("%s%s|%x", mockSigPrefix, s.ID, digest), nil
}

// PublicKeyHex implements Signer.
func (s MockSigner) PublicKeyHex() string {
	return s.ID
}

// Verify checks a signature produced by any Signer backend against the
// signer's public key and the content digest.
func Verify(pubKeyHex string, digest []byte, sig string) bool {
	if strings.HasPrefix(sig, mockSigPrefix) {
		return sig == fmt.Sprintf("%s%s|%x", mockSigPrefix, pubKeyHex, digest)
	}

	pub, err := keys.ParsePublicKeyHex(pubKeyHex)
	if err != nil {
		return false
	}

	r, s, err := keys.DecodeSignature(sig)
	if err != nil {
		return false
	}

	return keys.Verify(pub, digest, r, s)
}
