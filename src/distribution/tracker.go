// Package distribution maintains per-question tallies of attested answers
// and derives a convergence score: a measure of how concentrated the crowd
// is around one answer (multiple-choice) or one score (free-response).
package distribution

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/robjohncolson/apstat-chain/src/chain"
)

// QuestionDistribution is the running tally for one question. It is created
// lazily on the first attestation and updated monotonically:
// TotalAttestations never decreases.
type QuestionDistribution struct {
	QuestionID        string
	TotalAttestations int
	MCQCounts         map[string]int
	FRQScores         []float64
	Mean              float64
	StdDev            float64
	ConvergenceScore  float64 // in [0,1]
	LastUpdated       int64
}

// Tracker holds the distributions of every question seen so far.
type Tracker struct {
	byQuestion map[string]*QuestionDistribution
}

// NewTracker ...
func NewTracker() *Tracker {
	return &Tracker{
		byQuestion: map[string]*QuestionDistribution{},
	}
}

// NewTrackerFrom rebuilds a tracker from stored distributions.
func NewTrackerFrom(distributions map[string]*QuestionDistribution) *Tracker {
	t := NewTracker()
	for qid, d := range distributions {
		t.byQuestion[qid] = d
	}
	return t
}

// Update folds a batch of mined transactions into the tracker. It is a pure
// fold over attestation-type transactions; CREATE_USER transactions are
// ignored.
func (t *Tracker) Update(txs []*chain.Transaction) {
	for _, tx := range txs {
		if tx.Type != chain.ATTESTATION || tx.Answer == nil {
			continue
		}

		d := t.byQuestion[tx.QuestionID]
		if d == nil {
			d = &QuestionDistribution{
				QuestionID: tx.QuestionID,
				MCQCounts:  map[string]int{},
			}
			t.byQuestion[tx.QuestionID] = d
		}

		d.TotalAttestations++
		d.LastUpdated = time.Now().Unix()

		switch tx.Answer.Type {
		case chain.MULTIPLE_CHOICE:
			d.MCQCounts[tx.Answer.Choice]++
			d.ConvergenceScore = mcqConvergence(d)
		case chain.FREE_RESPONSE:
			d.FRQScores = append(d.FRQScores, tx.Answer.Score)
			d.Mean = stat.Mean(d.FRQScores, nil)
			d.StdDev = stat.PopStdDev(d.FRQScores, nil)
			d.ConvergenceScore = frqConvergence(d.Mean, d.StdDev)
		}
	}
}

// mcqConvergence is the share of the most popular option.
func mcqConvergence(d *QuestionDistribution) float64 {
	total := 0
	max := 0
	for _, c := range d.MCQCounts {
		total += c
		if c > max {
			max = c
		}
	}
	if total == 0 {
		return 0
	}
	return float64(max) / float64(total)
}

// frqConvergence maps the spread of self-assessed scores onto [0,1]:
// 1 - stddev/mean, clamped, with a zero mean guarded to zero.
func frqConvergence(mean, stddev float64) float64 {
	if mean == 0 {
		return 0
	}
	c := 1 - stddev/mean
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Get returns the distribution for a question, or nil if no attestation has
// been recorded for it.
func (t *Tracker) Get(questionID string) *QuestionDistribution {
	return t.byQuestion[questionID]
}

// Convergence returns the convergence score for a question; zero when the
// question has never been attested.
func (t *Tracker) Convergence(questionID string) float64 {
	if d := t.byQuestion[questionID]; d != nil {
		return d.ConvergenceScore
	}
	return 0
}

// Shares returns each option's share of the question's attestations. The
// reputation engine uses it for the minority-correct bonus.
func (t *Tracker) Shares(questionID string) map[string]float64 {
	shares := map[string]float64{}

	d := t.byQuestion[questionID]
	if d == nil || d.TotalAttestations == 0 {
		return shares
	}

	for choice, count := range d.MCQCounts {
		shares[choice] = float64(count) / float64(d.TotalAttestations)
	}

	return shares
}

// All returns the distributions keyed by question id. The map is a copy but
// the values are live; callers must not mutate them.
func (t *Tracker) All() map[string]*QuestionDistribution {
	res := make(map[string]*QuestionDistribution, len(t.byQuestion))
	for qid, d := range t.byQuestion {
		res[qid] = d
	}
	return res
}

// Len returns the number of tracked questions.
func (t *Tracker) Len() int {
	return len(t.byQuestion)
}
