package chain

import (
	"bytes"
	"time"

	"github.com/ugorji/go/codec"

	"github.com/robjohncolson/apstat-chain/src/common"
	"github.com/robjohncolson/apstat-chain/src/crypto"
)

// GenesisPrevHash is the sentinel PrevHash of the first block in a chain.
const GenesisPrevHash = "0X0000000000000000000000000000000000000000000000000000000000000000"

// BlockBody groups the fields of a block.
type BlockBody struct {
	Index        int
	PrevHash     string
	Transactions []*Transaction
	Attestations []*Attestation
	Timestamp    int64
	Nonce        int
}

// Block is an immutable batch of transactions and the attestations that
// cleared them. Hash is a pure function of (PrevHash, Transactions, Nonce);
// Index and Timestamp are bookkeeping and deliberately excluded, so that
// re-indexing during a merge does not invalidate a block.
type Block struct {
	Body BlockBody
	Hash string
}

// hashContent is the subset of the body covered by the block hash.
type hashContent struct {
	PrevHash     string
	Transactions []*Transaction
	Nonce        int
}

// NewBlock assembles a block over txs and atts, linked to prevHash, and
// computes its hash with hasher.
func NewBlock(index int, prevHash string, txs []*Transaction, atts []*Attestation, hasher crypto.Hasher) (*Block, error) {
	block := &Block{
		Body: BlockBody{
			Index:        index,
			PrevHash:     prevHash,
			Transactions: txs,
			Attestations: atts,
			Timestamp:    time.Now().Unix(),
			Nonce:        0,
		},
	}

	hash, err := block.ComputeHash(hasher)
	if err != nil {
		return nil, err
	}
	block.Hash = hash

	return block, nil
}

// ComputeHash recomputes the block hash from the body. It does not modify
// the stored Hash.
func (b *Block) ComputeHash(hasher crypto.Hasher) (string, error) {
	content := hashContent{
		PrevHash:     b.Body.PrevHash,
		Transactions: b.Body.Transactions,
		Nonce:        b.Body.Nonce,
	}

	buf := new(bytes.Buffer)

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(buf, jh)

	if err := enc.Encode(content); err != nil {
		return "", err
	}

	return common.EncodeToString(hasher.Hash(buf.Bytes())), nil
}

// Valid reports whether the stored hash equals the recomputed one. An
// invalid block is rejected by Append and Merge; it never corrupts the rest
// of the chain.
func (b *Block) Valid(hasher crypto.Hasher) bool {
	hash, err := b.ComputeHash(hasher)
	return err == nil && hash == b.Hash
}

// Marshal - canonical json encoding
func (b *Block) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(buf, jh)

	if err := enc.Encode(b); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unmarshal ...
func (b *Block) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(buf, jh)

	return dec.Decode(b)
}
