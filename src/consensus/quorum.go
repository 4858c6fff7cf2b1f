package consensus

import (
	"math"

	"github.com/robjohncolson/apstat-chain/src/chain"
)

// QuorumPolicy decides whether a set of attestations for a question is
// sufficient to finalize. It is a configuration value, not a code branch:
// the miner applies whatever policy it was constructed with.
type QuorumPolicy struct {
	// MinSize is the minimum number of attestations.
	MinSize int

	// Threshold is the minimum ratio of matching attestations.
	Threshold float64
}

// Meets returns false when there are fewer than MinSize attestations;
// otherwise it computes the agreement ratio and compares it to Threshold.
func (q QuorumPolicy) Meets(attestations []*chain.Attestation) bool {
	if len(attestations) < q.MinSize {
		return false
	}

	agree := 0
	for _, a := range attestations {
		if a.IsMatch {
			agree++
		}
	}

	return float64(agree)/float64(len(attestations)) >= q.Threshold
}

// MVPQuorum is the single-attester policy: any one self-attestation
// suffices, whatever its judgement. Mismatching answers still finalize so
// that the distribution tracker records them.
func MVPQuorum() QuorumPolicy {
	return QuorumPolicy{MinSize: 1, Threshold: 0}
}

// PeerQuorum requires at least two independent attestations with two-thirds
// agreement.
func PeerQuorum() QuorumPolicy {
	return QuorumPolicy{MinSize: 2, Threshold: 0.67}
}

// AdaptiveQuorum scales MinSize with the active roster: 30% of peers, never
// fewer than three.
func AdaptiveQuorum(roster int) QuorumPolicy {
	min := int(math.Ceil(0.3 * float64(roster)))
	if min < 3 {
		min = 3
	}
	return QuorumPolicy{MinSize: min, Threshold: 0.67}
}
