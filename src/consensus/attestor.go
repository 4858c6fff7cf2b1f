// Package consensus holds the attestation, quorum, and mining logic that
// turns pooled transactions into finalized blocks.
package consensus

import (
	"strings"
	"time"

	"github.com/robjohncolson/apstat-chain/src/chain"
	"github.com/robjohncolson/apstat-chain/src/common"
	"github.com/robjohncolson/apstat-chain/src/crypto"
)

// Attestor judges a transaction against a reference answer. Attest returns
// nil for transactions that carry no judgeable payload. The miner only
// depends on this interface, so a peer-quorum attestor that gathers multiple
// independent attestations per transaction can be substituted without
// changing the block or mempool contracts.
type Attestor interface {
	Attest(tx *chain.Transaction, referenceAnswer string) *chain.Attestation
}

// SelfAttestor implements the MVP single-attester policy: the local
// validator attests its own submissions.
type SelfAttestor struct {
	hasher          crypto.Hasher
	validatorPubKey string
}

// NewSelfAttestor ...
func NewSelfAttestor(hasher crypto.Hasher, validatorPubKey string) *SelfAttestor {
	return &SelfAttestor{
		hasher:          hasher,
		validatorPubKey: validatorPubKey,
	}
}

// Attest implements Attestor. Multiple-choice answers match when their
// stored hash equals the hash of the reference answer. Free-response answers
// are always valid because the score is self-assessed against a rubric, not
// string-matched.
func (a *SelfAttestor) Attest(tx *chain.Transaction, referenceAnswer string) *chain.Attestation {
	if tx.Type != chain.ATTESTATION || tx.Answer == nil {
		return nil
	}

	att := &chain.Attestation{
		ValidatorPubKey: a.validatorPubKey,
		QuestionID:      tx.QuestionID,
		ReferenceAnswer: referenceAnswer,
		Timestamp:       time.Now().Unix(),
	}

	switch tx.Answer.Type {
	case chain.MULTIPLE_CHOICE:
		refHash := common.EncodeToString(a.hasher.Hash([]byte(strings.ToUpper(strings.TrimSpace(referenceAnswer)))))
		att.SubmittedAnswer = tx.Answer.Choice
		att.IsMatch = tx.Answer.Hash == refHash
		if att.IsMatch {
			att.Confidence = 1.0
		}
	case chain.FREE_RESPONSE:
		att.SubmittedAnswer = tx.Answer.Text
		att.IsMatch = true
		att.Confidence = 1.0
	default:
		return nil
	}

	return att
}
