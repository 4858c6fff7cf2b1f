// Package reputation scores learner profiles from accuracy, peer attestation
// confidence, streaks, and minority-correct bonuses, with lazy time decay.
package reputation

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/robjohncolson/apstat-chain/src/chain"
)

// Params holds the tunable constants of the scoring function. They are
// carried in the node configuration rather than hard-coded.
type Params struct {
	// MaxScore caps the reputation score; updates clamp to [0, MaxScore].
	MaxScore float64 `mapstructure:"max-score"`

	// DecayRate is the fraction of the score lost per decay window.
	DecayRate float64 `mapstructure:"decay-rate"`

	// WindowHours is the length of the decay window in hours.
	WindowHours float64 `mapstructure:"window-hours"`

	// MinorityShare is the attestation share under which an answer counts as
	// a minority pick.
	MinorityShare float64 `mapstructure:"minority-share"`

	// MinorityMultiplier scales the accuracy score of minority picks that
	// proved correct.
	MinorityMultiplier float64 `mapstructure:"minority-multiplier"`

	// StreakStep is the score added per consecutive correct answer.
	StreakStep float64 `mapstructure:"streak-step"`

	// StreakCap bounds the streak score.
	StreakCap float64 `mapstructure:"streak-cap"`

	// PeerWeight scales the peer attestation score.
	PeerWeight float64 `mapstructure:"peer-weight"`
}

// DefaultParams ...
func DefaultParams() Params {
	return Params{
		MaxScore:           1000,
		DecayRate:          0.05,
		WindowHours:        168, // one week
		MinorityShare:      0.3,
		MinorityMultiplier: 1.5,
		StreakStep:         2,
		StreakCap:          50,
		PeerWeight:         10,
	}
}

// Engine applies the scoring function to profiles.
type Engine struct {
	params Params
	logger *logrus.Entry
}

// NewEngine ...
func NewEngine(params Params, logger *logrus.Entry) *Engine {
	return &Engine{
		params: params,
		logger: logger,
	}
}

// Params returns the engine's constants.
func (e *Engine) Params() Params {
	return e.params
}

// Update recomputes a profile's reputation after a mined block.
//
//   - accuracy above 0.5 adds up to 100 points; below, subtracts up to 50
//     (correctness pays more than error costs, so learners are not punished
//     out of the system).
//   - peer score is mean attestation confidence times the attestation count,
//     scaled by PeerWeight; zero without attestations.
//   - streaks add StreakStep per consecutive hit, capped at StreakCap.
//   - a correct answer shared by fewer than MinorityShare of attesters gets
//     the minority multiplier. It requires an existing crowd and never
//     amplifies penalties.
//
// The result is clamped to [0, MaxScore] whatever the input magnitudes.
func (e *Engine) Update(p *Profile, accuracy float64, attestations []*chain.Attestation, questionShares map[string]float64, selectedAnswer string, streak int) float64 {
	var base float64
	if accuracy > 0.5 {
		base = accuracy * 100
	} else {
		base = -50 * (1 - accuracy)
	}

	peer := 0.0
	if len(attestations) > 0 {
		sum := 0.0
		for _, a := range attestations {
			sum += a.Confidence
		}
		mean := sum / float64(len(attestations))
		peer = mean * float64(len(attestations)) * e.params.PeerWeight
	}

	streakScore := math.Min(e.params.StreakCap, float64(streak)*e.params.StreakStep)

	minority := 1.0
	if accuracy > 0.5 && len(questionShares) > 0 &&
		questionShares[selectedAnswer] < e.params.MinorityShare {
		minority = e.params.MinorityMultiplier
	}

	delta := base*minority + peer + streakScore

	p.ReputationScore = clamp(p.ReputationScore+delta, 0, e.params.MaxScore)
	p.Streak = streak
	p.LastScoredAt = time.Now().Unix()

	e.logger.WithFields(logrus.Fields{
		"pubkey":   p.PubKey,
		"accuracy": accuracy,
		"delta":    delta,
		"score":    p.ReputationScore,
	}).Debug("Reputation update")

	return p.ReputationScore
}

// Decay returns the score after hoursElapsed of inactivity:
// score * (1-DecayRate)^(hours/WindowHours). It is applied lazily when the
// reputation is read, never on a timer. Decay(score, 0) == score, and the
// result is monotonically non-increasing in hoursElapsed.
func (e *Engine) Decay(score float64, hoursElapsed float64) float64 {
	if hoursElapsed <= 0 {
		return score
	}
	return score * math.Pow(1-e.params.DecayRate, hoursElapsed/e.params.WindowHours)
}

// DecayedScore applies Decay to a profile using its LastScoredAt timestamp.
func (e *Engine) DecayedScore(p *Profile, now time.Time) float64 {
	if p.LastScoredAt == 0 {
		return p.ReputationScore
	}
	hours := now.Sub(time.Unix(p.LastScoredAt, 0)).Hours()
	return e.Decay(p.ReputationScore, hours)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
