package reputation

// Archetype is a categorical label derived from accuracy, speed, volume, and
// social-score metrics.
type Archetype string

const (
	// Aces answer fast, accurately, and often.
	Aces Archetype = "Aces"
	// Strategists are accurate but deliberate.
	Strategists Archetype = "Strategists"
	// Socials engage with peers more than with the material.
	Socials Archetype = "Socials"
	// Learners are steadily improving mid-range performers.
	Learners Archetype = "Learners"
	// Explorers is the default bucket.
	Explorers Archetype = "Explorers"
)

// CalculateArchetype classifies a profile. It is an ordered decision table:
// the first matching rule wins.
func CalculateArchetype(accuracy float64, avgResponseMs float64, questionsAnswered int, socialScore float64) Archetype {
	switch {
	case accuracy >= 0.9 && avgResponseMs < 3000 && questionsAnswered >= 50:
		return Aces
	case accuracy >= 0.85 && avgResponseMs >= 5000 && avgResponseMs <= 8000 && questionsAnswered >= 30:
		return Strategists
	case socialScore >= 0.8:
		return Socials
	case accuracy >= 0.6 && accuracy <= 0.8 && questionsAnswered >= 20:
		return Learners
	default:
		return Explorers
	}
}
