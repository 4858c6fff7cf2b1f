package distribution

import (
	"fmt"
	"math"
	"testing"

	"github.com/robjohncolson/apstat-chain/src/chain"
	"github.com/robjohncolson/apstat-chain/src/crypto"
)

func mcqTx(t *testing.T, signerID, questionID, choice string) *chain.Transaction {
	tx, err := chain.NewAttestationTx(crypto.MockHasher{}, crypto.MockSigner{ID: signerID},
		questionID, "mcq", choice, 0)
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func frqTx(t *testing.T, signerID, questionID string, score float64) *chain.Transaction {
	tx, err := chain.NewAttestationTx(crypto.MockHasher{}, crypto.MockSigner{ID: signerID},
		questionID, "frq", "some reasoning", score)
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func TestTrackerMCQCounts(t *testing.T) {
	tracker := NewTracker()

	tracker.Update([]*chain.Transaction{
		mcqTx(t, "node0", "U1-L1-Q1", "B"),
		mcqTx(t, "node1", "U1-L1-Q1", "B"),
		mcqTx(t, "node2", "U1-L1-Q1", "C"),
	})

	d := tracker.Get("U1-L1-Q1")
	if d == nil {
		t.Fatal("question should be tracked")
	}

	if d.TotalAttestations != 3 {
		t.Fatalf("TotalAttestations should be 3, not %d", d.TotalAttestations)
	}

	sum := 0
	for _, c := range d.MCQCounts {
		sum += c
	}
	if sum != d.TotalAttestations {
		t.Fatalf("counts sum to %d but TotalAttestations is %d", sum, d.TotalAttestations)
	}

	if d.ConvergenceScore != 2.0/3.0 {
		t.Fatalf("convergence should be 2/3, not %f", d.ConvergenceScore)
	}
}

func TestTrackerConvergenceBounds(t *testing.T) {
	t.Run("single attestation", func(t *testing.T) {
		tracker := NewTracker()
		tracker.Update([]*chain.Transaction{mcqTx(t, "node0", "U1-L1-Q1", "A")})

		if c := tracker.Convergence("U1-L1-Q1"); c != 1.0 {
			t.Fatalf("a single attestation should converge to 1.0, not %f", c)
		}
	})

	t.Run("all distinct", func(t *testing.T) {
		tracker := NewTracker()
		choices := []string{"A", "B", "C", "D", "E"}
		txs := []*chain.Transaction{}
		for i, choice := range choices {
			txs = append(txs, mcqTx(t, fmt.Sprintf("node%d", i), "U1-L1-Q1", choice))
		}
		tracker.Update(txs)

		want := 1.0 / float64(len(choices))
		if c := tracker.Convergence("U1-L1-Q1"); math.Abs(c-want) > 1e-9 {
			t.Fatalf("n distinct answers should converge to 1/n=%f, not %f", want, c)
		}
	})

	t.Run("untracked question", func(t *testing.T) {
		tracker := NewTracker()
		if c := tracker.Convergence("U9-L9-Q9"); c != 0 {
			t.Fatalf("untracked question should converge to 0, not %f", c)
		}
	})
}

func TestTrackerFRQ(t *testing.T) {
	tracker := NewTracker()

	tracker.Update([]*chain.Transaction{
		frqTx(t, "node0", "U2-L1-Q1", 4),
		frqTx(t, "node1", "U2-L1-Q1", 4),
		frqTx(t, "node2", "U2-L1-Q1", 4),
	})

	d := tracker.Get("U2-L1-Q1")
	if d == nil {
		t.Fatal("question should be tracked")
	}
	if d.Mean != 4 {
		t.Fatalf("mean should be 4, not %f", d.Mean)
	}
	if d.StdDev != 0 {
		t.Fatalf("identical scores should have zero stddev, not %f", d.StdDev)
	}
	if d.ConvergenceScore != 1.0 {
		t.Fatalf("identical scores should converge to 1.0, not %f", d.ConvergenceScore)
	}

	tracker.Update([]*chain.Transaction{frqTx(t, "node3", "U2-L1-Q1", 1)})

	d = tracker.Get("U2-L1-Q1")
	if d.ConvergenceScore < 0 || d.ConvergenceScore > 1 {
		t.Fatalf("convergence should stay in [0,1], got %f", d.ConvergenceScore)
	}
	if d.ConvergenceScore == 1.0 {
		t.Fatal("a dissenting score should lower convergence")
	}
}

func TestTrackerShares(t *testing.T) {
	tracker := NewTracker()

	if shares := tracker.Shares("U1-L1-Q1"); len(shares) != 0 {
		t.Fatal("untracked question should have no shares")
	}

	tracker.Update([]*chain.Transaction{
		mcqTx(t, "node0", "U1-L1-Q1", "B"),
		mcqTx(t, "node1", "U1-L1-Q1", "B"),
		mcqTx(t, "node2", "U1-L1-Q1", "C"),
		mcqTx(t, "node3", "U1-L1-Q1", "D"),
	})

	shares := tracker.Shares("U1-L1-Q1")
	if shares["B"] != 0.5 {
		t.Fatalf("share of B should be 0.5, not %f", shares["B"])
	}
	if shares["C"] != 0.25 {
		t.Fatalf("share of C should be 0.25, not %f", shares["C"])
	}
}

func TestTrackerIgnoresCreateUser(t *testing.T) {
	tracker := NewTracker()

	tx, err := chain.NewCreateUserTx(crypto.MockHasher{}, crypto.MockSigner{ID: "node0"}, "alice")
	if err != nil {
		t.Fatal(err)
	}

	tracker.Update([]*chain.Transaction{tx})

	if tracker.Len() != 0 {
		t.Fatal("CREATE_USER txs should not be tracked")
	}
}

func TestTrackerRebuildFrom(t *testing.T) {
	tracker := NewTracker()
	tracker.Update([]*chain.Transaction{mcqTx(t, "node0", "U1-L1-Q1", "B")})

	rebuilt := NewTrackerFrom(tracker.All())

	if rebuilt.Len() != 1 {
		t.Fatalf("rebuilt tracker should hold 1 question, not %d", rebuilt.Len())
	}
	if rebuilt.Convergence("U1-L1-Q1") != 1.0 {
		t.Fatal("rebuilt tracker should preserve convergence")
	}
}
