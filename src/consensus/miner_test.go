package consensus

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/robjohncolson/apstat-chain/src/chain"
	"github.com/robjohncolson/apstat-chain/src/common"
	"github.com/robjohncolson/apstat-chain/src/crypto"
	"github.com/robjohncolson/apstat-chain/src/distribution"
	"github.com/robjohncolson/apstat-chain/src/mempool"
)

type minerFixture struct {
	miner   *Miner
	pool    *mempool.Mempool
	ledger  *chain.Ledger
	tracker *distribution.Tracker
	answers StaticAnswers
	hasher  crypto.Hasher
}

func newMinerFixture(t *testing.T, quorum QuorumPolicy) *minerFixture {
	hasher := crypto.MockHasher{}
	attestor := NewSelfAttestor(hasher, "node0")

	return &minerFixture{
		miner:   NewMiner(hasher, attestor, quorum, common.NewTestEntry(t, logrus.DebugLevel)),
		pool:    mempool.New(),
		ledger:  chain.NewLedger(),
		tracker: distribution.NewTracker(),
		answers: StaticAnswers{"U1-L1-Q1": "B"},
		hasher:  hasher,
	}
}

func (f *minerFixture) submit(t *testing.T, signerID, choice string) *chain.Transaction {
	tx, err := chain.NewAttestationTx(f.hasher, crypto.MockSigner{ID: signerID},
		"U1-L1-Q1", "mcq", choice, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.pool.Add(tx); err != nil {
		t.Fatal(err)
	}
	return tx
}

func (f *minerFixture) mine(t *testing.T) *chain.Block {
	block, err := f.miner.Mine(f.pool, f.ledger, f.tracker, f.answers)
	if err != nil {
		t.Fatal(err)
	}
	return block
}

func TestMineEmptyMempool(t *testing.T) {
	f := newMinerFixture(t, MVPQuorum())

	if block := f.mine(t); block != nil {
		t.Fatal("empty mempool should not produce a block")
	}
	if f.ledger.Len() != 0 || f.tracker.Len() != 0 {
		t.Fatal("a skipped mining step should leave the state untouched")
	}
}

func TestMineMVP(t *testing.T) {
	f := newMinerFixture(t, MVPQuorum())

	tx := f.submit(t, "node0", "B")

	block := f.mine(t)
	if block == nil {
		t.Fatal("a single self-attestation should suffice under MVP quorum")
	}

	if block.Body.Index != 0 {
		t.Fatalf("first block index should be 0, not %d", block.Body.Index)
	}
	if block.Body.PrevHash != chain.GenesisPrevHash {
		t.Fatal("first block should link to the genesis sentinel")
	}
	if len(block.Body.Transactions) != 1 || block.Body.Transactions[0].ID != tx.ID {
		t.Fatal("block should contain the pending tx")
	}
	if len(block.Body.Attestations) != 1 || !block.Body.Attestations[0].IsMatch {
		t.Fatal("block should embed a matching attestation")
	}

	if f.pool.Len() != 0 {
		t.Fatal("mined txs should be drained")
	}
	if f.ledger.Len() != 1 {
		t.Fatal("block should be appended")
	}
	if !f.ledger.ContainsTx(tx.ID) {
		t.Fatal("tx should be finalized")
	}
}

func TestMineMismatchStillFinalizes(t *testing.T) {
	f := newMinerFixture(t, MVPQuorum())

	f.submit(t, "node0", "C")

	block := f.mine(t)
	if block == nil {
		t.Fatal("a mismatching answer should still finalize under MVP quorum")
	}
	if block.Body.Attestations[0].IsMatch {
		t.Fatal("the attestation should record the mismatch")
	}

	// the distribution records the wrong answer too
	d := f.tracker.Get("U1-L1-Q1")
	if d == nil || d.MCQCounts["C"] != 1 {
		t.Fatal("the tracker should record the mismatching answer")
	}
}

func TestMinePeerQuorum(t *testing.T) {
	f := newMinerFixture(t, PeerQuorum())

	f.submit(t, "node0", "B")

	if block := f.mine(t); block != nil {
		t.Fatal("one attestation should not clear peer quorum")
	}
	if f.pool.Len() != 1 {
		t.Fatal("unmined txs should stay pooled")
	}

	f.submit(t, "node1", "B")
	f.submit(t, "node2", "B")

	block := f.mine(t)
	if block == nil {
		t.Fatal("three matching attestations should clear peer quorum")
	}
	if len(block.Body.Transactions) != 3 {
		t.Fatalf("block should contain 3 txs, not %d", len(block.Body.Transactions))
	}

	d := f.tracker.Get("U1-L1-Q1")
	if d == nil {
		t.Fatal("question should be tracked")
	}
	if d.MCQCounts["B"] != 3 {
		t.Fatalf("MCQCounts[B] should be 3, not %d", d.MCQCounts["B"])
	}
	if d.ConvergenceScore != 1.0 {
		t.Fatalf("unanimous answers should converge to 1.0, not %f", d.ConvergenceScore)
	}
}

func TestMinePendingSnapshot(t *testing.T) {
	f := newMinerFixture(t, MVPQuorum())

	for i := 0; i < 3; i++ {
		tx, err := chain.NewAttestationTx(f.hasher, crypto.MockSigner{ID: "node0"},
			fmt.Sprintf("U1-L1-Q%d", i+1), "mcq", "A", 0)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.pool.Add(tx); err != nil {
			t.Fatal(err)
		}
	}

	block := f.mine(t)
	if block == nil {
		t.Fatal("block should form")
	}
	if len(block.Body.Transactions) != 3 {
		t.Fatalf("all pending txs should be batched, got %d", len(block.Body.Transactions))
	}
	if f.tracker.Len() != 3 {
		t.Fatalf("3 questions should be tracked, not %d", f.tracker.Len())
	}
}
