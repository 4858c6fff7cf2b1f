package keys

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestSignVerify(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	digest := []byte("some content digest")

	r, s, err := Sign(key, digest)
	if err != nil {
		t.Fatal(err)
	}

	if !Verify(&key.PublicKey, digest, r, s) {
		t.Fatal("Verify returned false")
	}

	if Verify(&key.PublicKey, []byte("other content"), r, s) {
		t.Fatal("Verify should fail on different content")
	}
}

func TestEncodeDecodeSignature(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	digest := []byte("some content digest")

	r, s, err := Sign(key, digest)
	if err != nil {
		t.Fatal(err)
	}

	encoded := EncodeSignature(r, s)

	r2, s2, err := DecodeSignature(encoded)
	if err != nil {
		t.Fatal(err)
	}

	if r.Cmp(r2) != 0 || s.Cmp(s2) != 0 {
		t.Fatal("decoded signature differs from the original")
	}

	if _, _, err := DecodeSignature("not-a-signature"); err == nil {
		t.Fatal("malformed signature should not decode")
	}
}

func TestPrivateKeyHexRoundTrip(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParsePrivateKeyHex(PrivateKeyHex(key))
	if err != nil {
		t.Fatal(err)
	}

	if parsed.D.Cmp(key.D) != 0 {
		t.Fatal("parsed key differs from the original")
	}
	if PublicKeyHex(&parsed.PublicKey) != PublicKeyHex(&key.PublicKey) {
		t.Fatal("parsed public key differs from the original")
	}
}

func TestSimpleKeyfile(t *testing.T) {
	dir, err := ioutil.TempDir("", "keys")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	keyfile := NewSimpleKeyfile(filepath.Join(dir, "priv_key"))

	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	if err := keyfile.WriteKey(key); err != nil {
		t.Fatal(err)
	}

	read, err := keyfile.ReadKey()
	if err != nil {
		t.Fatal(err)
	}

	if read.D.Cmp(key.D) != 0 {
		t.Fatal("read key differs from the written one")
	}
}
