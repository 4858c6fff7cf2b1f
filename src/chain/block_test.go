package chain

import (
	"testing"

	"github.com/robjohncolson/apstat-chain/src/crypto"
)

func createTestBlock(t *testing.T, index int, prevHash string) *Block {
	hasher := crypto.MockHasher{}
	signer := crypto.MockSigner{ID: "node0"}

	tx, err := NewAttestationTx(hasher, signer, "U1-L1-Q1", "mcq", "A", 0)
	if err != nil {
		t.Fatal(err)
	}

	block, err := NewBlock(index, prevHash, []*Transaction{tx}, []*Attestation{}, hasher)
	if err != nil {
		t.Fatal(err)
	}

	return block
}

func TestBlockHashExcludesBookkeeping(t *testing.T) {
	hasher := crypto.MockHasher{}

	block := createTestBlock(t, 0, GenesisPrevHash)

	reindexed := *block
	reindexed.Body.Index = 42
	reindexed.Body.Timestamp = block.Body.Timestamp + 1000

	hash, err := reindexed.ComputeHash(hasher)
	if err != nil {
		t.Fatal(err)
	}
	if hash != block.Hash {
		t.Fatal("Index and Timestamp should not be covered by the hash")
	}

	relinked := *block
	relinked.Body.PrevHash = "0Xdeadbeef"

	hash, err = relinked.ComputeHash(hasher)
	if err != nil {
		t.Fatal(err)
	}
	if hash == block.Hash {
		t.Fatal("PrevHash should be covered by the hash")
	}
}

func TestBlockValid(t *testing.T) {
	hasher := crypto.MockHasher{}

	block := createTestBlock(t, 0, GenesisPrevHash)

	if !block.Valid(hasher) {
		t.Fatal("fresh block should be valid")
	}

	tampered := *block
	tampered.Body.Nonce = 99

	if tampered.Valid(hasher) {
		t.Fatal("tampered block should be invalid")
	}
}

func TestBlockMarshal(t *testing.T) {
	hasher := crypto.MockHasher{}

	block := createTestBlock(t, 0, GenesisPrevHash)

	raw, err := block.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	decoded := new(Block)
	if err := decoded.Unmarshal(raw); err != nil {
		t.Fatal(err)
	}

	if !decoded.Valid(hasher) {
		t.Fatal("decoded block should still be valid")
	}
	if decoded.Hash != block.Hash {
		t.Fatalf("decoded hash %s, want %s", decoded.Hash, block.Hash)
	}
}
