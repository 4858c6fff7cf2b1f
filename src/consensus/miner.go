package consensus

import (
	"github.com/sirupsen/logrus"

	"github.com/robjohncolson/apstat-chain/src/chain"
	"github.com/robjohncolson/apstat-chain/src/crypto"
	"github.com/robjohncolson/apstat-chain/src/distribution"
	"github.com/robjohncolson/apstat-chain/src/mempool"
)

// Miner consumes the mempool, attests each transaction, and finalizes a
// block when quorum is met. The caller must serialize Mine with any other
// mutation of the (mempool, ledger, tracker) aggregate; the node does this
// under a single lock.
type Miner struct {
	hasher   crypto.Hasher
	attestor Attestor
	quorum   QuorumPolicy
	logger   *logrus.Entry
}

// NewMiner ...
func NewMiner(hasher crypto.Hasher, attestor Attestor, quorum QuorumPolicy, logger *logrus.Entry) *Miner {
	return &Miner{
		hasher:   hasher,
		attestor: attestor,
		quorum:   quorum,
		logger:   logger,
	}
}

// Mine runs one mining step. It returns (nil, nil) when no block was
// produced — an empty mempool or an unmet quorum is a normal outcome, not an
// error — and in that case the mempool, ledger, and tracker are untouched.
// On success the block is appended, the mined transactions are drained, and
// the tracker is updated, as one step.
func (m *Miner) Mine(pool *mempool.Mempool, ledger *chain.Ledger, tracker *distribution.Tracker, answers AnswerSource) (*chain.Block, error) {
	pending := pool.Pending()
	if len(pending) == 0 {
		m.logger.Debug("Mine: empty mempool")
		return nil, nil
	}

	attestations := []*chain.Attestation{}
	byQuestion := map[string][]*chain.Attestation{}

	for _, tx := range pending {
		if tx.Type != chain.ATTESTATION {
			continue
		}

		reference, _ := answers.ReferenceAnswer(tx.QuestionID)

		att := m.attestor.Attest(tx, reference)
		if att == nil {
			m.logger.WithField("tx", tx.ID).Warn("Mine: transaction not attestable")
			continue
		}

		attestations = append(attestations, att)
		byQuestion[tx.QuestionID] = append(byQuestion[tx.QuestionID], att)
	}

	// Quorum is evaluated per question; the block forms once any question
	// clears it (batch model: every pending transaction is then included).
	quorumMet := false
	for qid, atts := range byQuestion {
		if m.quorum.Meets(atts) {
			quorumMet = true
			break
		}
		m.logger.WithFields(logrus.Fields{
			"question":     qid,
			"attestations": len(atts),
		}).Debug("Mine: quorum not met")
	}

	if !quorumMet {
		return nil, nil
	}

	prevHash := chain.GenesisPrevHash
	if last := ledger.Last(); last != nil {
		prevHash = last.Hash
	}

	block, err := chain.NewBlock(ledger.Len(), prevHash, pending, attestations, m.hasher)
	if err != nil {
		return nil, err
	}

	if err := ledger.Append(block, m.hasher); err != nil {
		return nil, err
	}

	pool.DrainFirst(len(pending))
	tracker.Update(pending)

	m.logger.WithFields(logrus.Fields{
		"index":        block.Body.Index,
		"hash":         block.Hash,
		"transactions": len(pending),
		"attestations": len(attestations),
	}).Debug("Mined block")

	return block, nil
}

// Quorum returns the active quorum policy.
func (m *Miner) Quorum() QuorumPolicy {
	return m.quorum
}
