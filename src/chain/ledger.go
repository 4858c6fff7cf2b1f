package chain

import (
	"fmt"
	"sort"

	"github.com/robjohncolson/apstat-chain/src/crypto"
)

// Ledger is the append-ordered, hash-linked sequence of finalized blocks.
// Blocks mined locally extend the tip; blocks adopted from another device
// through Merge keep their recorded PrevHash and are ordered by timestamp.
type Ledger struct {
	blocks []*Block
	byHash map[string]*Block
	txIDs  map[string]bool
}

// NewLedger ...
func NewLedger() *Ledger {
	return &Ledger{
		byHash: map[string]*Block{},
		txIDs:  map[string]bool{},
	}
}

// Len returns the number of blocks.
func (l *Ledger) Len() int {
	return len(l.blocks)
}

// Last returns the tip of the chain, or nil when the chain is empty.
func (l *Ledger) Last() *Block {
	if len(l.blocks) == 0 {
		return nil
	}
	return l.blocks[len(l.blocks)-1]
}

// Get returns the block at index.
func (l *Ledger) Get(index int) (*Block, error) {
	if index < 0 || index >= len(l.blocks) {
		return nil, fmt.Errorf("no block at index %d", index)
	}
	return l.blocks[index], nil
}

// ByHash returns the block with the given hash.
func (l *Ledger) ByHash(hash string) (*Block, bool) {
	b, ok := l.byHash[hash]
	return b, ok
}

// Blocks returns a copy of the block sequence.
func (l *Ledger) Blocks() []*Block {
	res := make([]*Block, len(l.blocks))
	copy(res, l.blocks)
	return res
}

// ContainsTx reports whether a transaction was already finalized in a block.
// The mempool uses it to guarantee that no transaction lives in both places.
func (l *Ledger) ContainsTx(id string) bool {
	return l.txIDs[id]
}

// Append adds a locally mined block at the tip. The block must carry a valid
// hash, link to the current tip (or the genesis sentinel on an empty chain),
// and have the next index.
func (l *Ledger) Append(b *Block, hasher crypto.Hasher) error {
	if !b.Valid(hasher) {
		return fmt.Errorf("block %s: stored hash does not match content", b.Hash)
	}

	if len(l.blocks) == 0 {
		if b.Body.PrevHash != GenesisPrevHash {
			return fmt.Errorf("genesis block must link to the genesis sentinel")
		}
	} else if b.Body.PrevHash != l.Last().Hash {
		return fmt.Errorf("block %s does not link to tip %s", b.Hash, l.Last().Hash)
	}

	if b.Body.Index != len(l.blocks) {
		return fmt.Errorf("block index %d, want %d", b.Body.Index, len(l.blocks))
	}

	l.adopt(b)

	return nil
}

func (l *Ledger) adopt(b *Block) {
	l.blocks = append(l.blocks, b)
	l.byHash[b.Hash] = b
	for _, tx := range b.Body.Transactions {
		l.txIDs[tx.ID] = true
	}
}

// Merge folds a foreign chain fragment into the ledger: union by block hash,
// sort by timestamp with ties broken by hash, deduplicate, then rewrite
// indices to match positions. An incoming block whose stored hash does not
// match its content is rejected individually and reported in the returned
// count; it never corrupts the rest of the chain. Merge returns a new ledger
// and leaves the receiver untouched, so the caller can swap it in atomically.
// It is idempotent and commutative on already-seen blocks.
func (l *Ledger) Merge(incoming []*Block, hasher crypto.Hasher) (*Ledger, int) {
	union := make([]*Block, 0, len(l.blocks)+len(incoming))
	seen := map[string]bool{}
	rejected := 0

	for _, b := range l.blocks {
		union = append(union, b)
		seen[b.Hash] = true
	}

	for _, b := range incoming {
		if seen[b.Hash] {
			continue
		}
		if !b.Valid(hasher) {
			rejected++
			continue
		}
		union = append(union, b)
		seen[b.Hash] = true
	}

	sort.SliceStable(union, func(i, j int) bool {
		if union[i].Body.Timestamp != union[j].Body.Timestamp {
			return union[i].Body.Timestamp < union[j].Body.Timestamp
		}
		return union[i].Hash < union[j].Hash
	})

	merged := NewLedger()
	for i, b := range union {
		// Index is not covered by the hash, so re-indexing is safe. Copy the
		// block to avoid mutating the receiver's view.
		cp := *b
		cp.Body.Index = i
		merged.adopt(&cp)
	}

	return merged, rejected
}
