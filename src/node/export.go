package node

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"

	"github.com/robjohncolson/apstat-chain/src/chain"
	"github.com/robjohncolson/apstat-chain/src/distribution"
)

// SyncBlob is the full-state payload exchanged between devices. It never
// carries private keys or profiles; reputation is local, state is shared.
type SyncBlob struct {
	Chain         []*chain.Block                                `json:"chain"`
	Mempool       []*chain.Transaction                          `json:"mempool"`
	Distributions map[string]*distribution.QuestionDistribution `json:"distributions"`
}

// Export serializes the node's shareable state as canonical JSON.
func (n *Node) Export() ([]byte, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	blob := SyncBlob{
		Chain:         n.ledger.Blocks(),
		Mempool:       n.pool.Pending(),
		Distributions: n.tracker.All(),
	}

	b := []byte{}
	h := codec.JsonHandle{}
	h.Canonical = true
	enc := codec.NewEncoderBytes(&b, &h)
	if err := enc.Encode(blob); err != nil {
		return nil, err
	}

	return b, nil
}

// Import merges a peer's exported blob into the node. The merge is
// idempotent and commutative: importing the same blob twice, or two blobs in
// either order, converges to the same state. A blob that fails to decode is
// rejected atomically; individually corrupt blocks or transactions inside a
// well-formed blob are dropped and counted, and the rest is applied.
func (n *Node) Import(raw []byte) (int, error) {
	blob := SyncBlob{}
	dec := codec.NewDecoderBytes(raw, &codec.JsonHandle{})
	if err := dec.Decode(&blob); err != nil {
		return 0, fmt.Errorf("decoding sync blob: %v", err)
	}

	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	merged, rejected := n.ledger.Merge(blob.Chain, n.hasher)

	// The tracker is a pure fold over finalized transactions, so rebuilding
	// it from the merged chain keeps it exact regardless of what the blob's
	// own distributions claim.
	tracker := distribution.NewTracker()
	for _, b := range merged.Blocks() {
		tracker.Update(b.Body.Transactions)
	}

	// Requeue pending work from both sides, dropping anything the merged
	// chain already finalized and anything that fails verification.
	pool := n.pool.Rebuild(func(tx *chain.Transaction) bool {
		return !merged.ContainsTx(tx.ID)
	})
	for _, tx := range blob.Mempool {
		if tx == nil || merged.ContainsTx(tx.ID) {
			continue
		}
		if !tx.Verify(n.hasher) {
			rejected++
			continue
		}
		_ = pool.Add(tx)
	}

	n.ledger = merged
	n.tracker = tracker
	n.pool = pool

	if err := n.persistAll(); err != nil {
		return rejected, err
	}

	n.logger.WithFields(logrus.Fields{
		"blocks":   n.ledger.Len(),
		"pending":  n.pool.Len(),
		"rejected": rejected,
	}).Debug("Imported sync blob")

	return rejected, nil
}

// persistAll writes the merged chain and rebuilt distributions through to
// the store. Caller holds coreLock.
func (n *Node) persistAll() error {
	for _, b := range n.ledger.Blocks() {
		if err := n.store.SetBlock(b); err != nil {
			return err
		}
	}
	for _, d := range n.tracker.All() {
		if err := n.store.SetDistribution(d); err != nil {
			return err
		}
	}
	return nil
}
