package node

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/robjohncolson/apstat-chain/src/chain"
	"github.com/robjohncolson/apstat-chain/src/config"
	"github.com/robjohncolson/apstat-chain/src/consensus"
	"github.com/robjohncolson/apstat-chain/src/store"
)

var testAnswers = consensus.StaticAnswers{
	"U1-L1-Q1": "B",
	"U1-L1-Q2": "C",
}

func newTestNode(t *testing.T) *Node {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.MockCrypto = true

	n := NewNode(conf, store.NewInmemStore(conf.CacheSize), testAnswers, conf.Logger())

	if err := n.Init(); err != nil {
		t.Fatal(err)
	}

	return n
}

func chainHashes(t *testing.T, n *Node) []string {
	res := []string{}
	for i := 0; i < n.ChainLength(); i++ {
		b, err := n.GetBlock(i)
		if err != nil {
			t.Fatal(err)
		}
		res = append(res, b.Hash)
	}
	return res
}

func TestNodeLockedProfile(t *testing.T) {
	n := newTestNode(t)

	if _, err := n.Submit("U1-L1-Q1", "mcq", "B", 0); err != ErrLockedProfile {
		t.Fatalf("Submit should return ErrLockedProfile, got %v", err)
	}
	if _, err := n.Mine(); err != ErrLockedProfile {
		t.Fatalf("Mine should return ErrLockedProfile, got %v", err)
	}
	if _, err := n.Reputation(); err != ErrLockedProfile {
		t.Fatalf("Reputation should return ErrLockedProfile, got %v", err)
	}
}

func TestNodeCreateSubmitMine(t *testing.T) {
	n := newTestNode(t)

	profile, err := n.CreateProfile("alice")
	if err != nil {
		t.Fatal(err)
	}
	if profile.PrivKeyHex == "" {
		t.Fatal("CreateProfile should hand the private key back to the caller")
	}

	if _, err := n.Submit("U1-L1-Q1", "mcq", "B", 0); err != nil {
		t.Fatal(err)
	}

	block, err := n.Mine()
	if err != nil {
		t.Fatal(err)
	}
	if block == nil {
		t.Fatal("a matching self-attestation should produce a block")
	}

	// the block batches the CREATE_USER announcement with the attestation
	if len(block.Body.Transactions) != 2 {
		t.Fatalf("block should contain 2 txs, not %d", len(block.Body.Transactions))
	}

	if n.ChainLength() != 1 {
		t.Fatalf("chain length should be 1, not %d", n.ChainLength())
	}
	if n.PendingCount() != 0 {
		t.Fatalf("mempool should be empty, not %d", n.PendingCount())
	}

	score, err := n.Reputation()
	if err != nil {
		t.Fatal(err)
	}
	if score <= 0 {
		t.Fatalf("a correct answer should raise the score above 0, got %f", score)
	}

	if c := n.Convergence("U1-L1-Q1"); c != 1.0 {
		t.Fatalf("single attestation should converge to 1.0, not %f", c)
	}

	pub, err := n.PublicProfile()
	if err != nil {
		t.Fatal(err)
	}
	if pub.PrivKeyHex != "" {
		t.Fatal("PublicProfile must not carry the private key")
	}
	if pub.Streak != 1 {
		t.Fatalf("streak should be 1, not %d", pub.Streak)
	}
}

func TestNodeMineCreateUserOnly(t *testing.T) {
	n := newTestNode(t)

	if _, err := n.CreateProfile("alice"); err != nil {
		t.Fatal(err)
	}

	block, err := n.Mine()
	if err != nil {
		t.Fatal(err)
	}
	if block != nil {
		t.Fatal("a lone CREATE_USER tx carries no attestation and should not clear quorum")
	}
	if n.PendingCount() != 1 {
		t.Fatal("the announcement should stay pooled")
	}
}

func TestNodeValidationBeforePooling(t *testing.T) {
	n := newTestNode(t)

	if _, err := n.CreateProfile("alice"); err != nil {
		t.Fatal(err)
	}
	pending := n.PendingCount()

	if _, err := n.Submit("Q1", "mcq", "B", 0); !chain.IsValidation(err) {
		t.Fatalf("malformed question id should fail validation, got %v", err)
	}
	if _, err := n.Submit("U1-L1-Q1", "mcq", "Z", 0); !chain.IsValidation(err) {
		t.Fatalf("invalid choice should fail validation, got %v", err)
	}

	if n.PendingCount() != pending {
		t.Fatal("rejected submissions must not be pooled")
	}
}

func TestNodeLockUnlock(t *testing.T) {
	n := newTestNode(t)

	created, err := n.CreateProfile("alice")
	if err != nil {
		t.Fatal(err)
	}

	n.LockProfile()

	if _, err := n.Submit("U1-L1-Q1", "mcq", "B", 0); err != ErrLockedProfile {
		t.Fatalf("locked node should reject submissions, got %v", err)
	}

	unlocked, err := n.UnlockProfile(created.PrivKeyHex)
	if err != nil {
		t.Fatal(err)
	}
	if unlocked.PubKey != created.PubKey {
		t.Fatal("unlocking should recover the same profile")
	}
	if unlocked.Username != "alice" {
		t.Fatalf("unlocked username should be alice, not %s", unlocked.Username)
	}

	if _, err := n.Submit("U1-L1-Q1", "mcq", "B", 0); err != nil {
		t.Fatal(err)
	}
}

func TestNodeExportOmitsSecrets(t *testing.T) {
	n := newTestNode(t)

	profile, err := n.CreateProfile("alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := n.Submit("U1-L1-Q1", "mcq", "B", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := n.Mine(); err != nil {
		t.Fatal(err)
	}

	blob, err := n.Export()
	if err != nil {
		t.Fatal(err)
	}

	if bytes.Contains(blob, []byte(profile.PrivKeyHex)) {
		t.Fatal("export blob contains private key material")
	}
}

func TestNodeImportMergesChains(t *testing.T) {
	nodeA := newTestNode(t)
	nodeB := newTestNode(t)

	for i, n := range []*Node{nodeA, nodeB} {
		if _, err := n.CreateProfile(fmt.Sprintf("user%d", i)); err != nil {
			t.Fatal(err)
		}
		qid := fmt.Sprintf("U1-L1-Q%d", i+1)
		answer := testAnswers[qid]
		if _, err := n.Submit(qid, "mcq", answer, 0); err != nil {
			t.Fatal(err)
		}
		if _, err := n.Mine(); err != nil {
			t.Fatal(err)
		}
	}

	blobB, err := nodeB.Export()
	if err != nil {
		t.Fatal(err)
	}

	rejected, err := nodeA.Import(blobB)
	if err != nil {
		t.Fatal(err)
	}
	if rejected != 0 {
		t.Fatalf("nothing should be rejected, got %d", rejected)
	}

	if nodeA.ChainLength() != 2 {
		t.Fatalf("merged chain should have 2 blocks, not %d", nodeA.ChainLength())
	}

	// both questions are now tracked on A
	if nodeA.Convergence("U1-L1-Q2") != 1.0 {
		t.Fatal("imported attestations should feed the tracker")
	}

	// idempotent: importing the same blob again changes nothing
	before := chainHashes(t, nodeA)
	if _, err := nodeA.Import(blobB); err != nil {
		t.Fatal(err)
	}
	if got := chainHashes(t, nodeA); !equalStrings(before, got) {
		t.Fatalf("re-import should be a no-op:\n%v\n%v", before, got)
	}

	// commutative: B importing A's export converges to the same chain
	blobA, err := nodeA.Export()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := nodeB.Import(blobA); err != nil {
		t.Fatal(err)
	}
	if got := chainHashes(t, nodeB); !equalStrings(before, got) {
		t.Fatalf("both devices should converge to the same chain:\n%v\n%v", before, got)
	}
}

func TestNodeImportRequeuesMempool(t *testing.T) {
	nodeA := newTestNode(t)
	nodeB := newTestNode(t)

	if _, err := nodeB.CreateProfile("bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := nodeB.Submit("U1-L1-Q1", "mcq", "B", 0); err != nil {
		t.Fatal(err)
	}

	blob, err := nodeB.Export()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := nodeA.Import(blob); err != nil {
		t.Fatal(err)
	}

	if nodeA.PendingCount() != nodeB.PendingCount() {
		t.Fatalf("pending txs should carry over, got %d want %d",
			nodeA.PendingCount(), nodeB.PendingCount())
	}

	// once B mines the tx, a re-import on A must drop it from the pool
	if _, err := nodeB.Mine(); err != nil {
		t.Fatal(err)
	}
	blob, err = nodeB.Export()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := nodeA.Import(blob); err != nil {
		t.Fatal(err)
	}

	if nodeA.PendingCount() != 0 {
		t.Fatalf("finalized txs must leave the mempool, %d still pending", nodeA.PendingCount())
	}
	if _, err := nodeA.GetBlock(0); err != nil {
		t.Fatal(err)
	}
}

func TestNodeImportMalformedBlob(t *testing.T) {
	n := newTestNode(t)

	if _, err := n.CreateProfile("alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := n.Submit("U1-L1-Q1", "mcq", "B", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := n.Mine(); err != nil {
		t.Fatal(err)
	}

	before := chainHashes(t, n)

	if _, err := n.Import([]byte("{not json")); err == nil {
		t.Fatal("malformed blob should be rejected")
	}

	if got := chainHashes(t, n); !equalStrings(before, got) {
		t.Fatal("a failed import must not change the chain")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNodeRunShutdown(t *testing.T) {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.MockCrypto = true
	conf.MineInterval = 5 * time.Millisecond

	n := NewNode(conf, store.NewInmemStore(conf.CacheSize), testAnswers, conf.Logger())
	if err := n.Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := n.CreateProfile("alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := n.Submit("U1-L1-Q1", "mcq", "B", 0); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		n.Run()
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for n.ChainLength() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("mining loop never produced a block")
		}
		time.Sleep(time.Millisecond)
	}

	n.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return once Shutdown drains the loop")
	}

	if n.GetState() != Shutdown {
		t.Fatalf("state should be Shutdown, got %v", n.GetState())
	}
}
