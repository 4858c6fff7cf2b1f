package reputation

import "testing"

func TestCalculateArchetype(t *testing.T) {
	testCases := []struct {
		name              string
		accuracy          float64
		avgResponseMs     float64
		questionsAnswered int
		socialScore       float64
		want              Archetype
	}{
		{"fast accurate prolific", 0.95, 2500, 75, 0.6, Aces},
		{"accurate but deliberate", 0.88, 6000, 40, 0.1, Strategists},
		{"highly social", 0.4, 10000, 5, 0.9, Socials},
		{"mid-range improver", 0.7, 4000, 25, 0.2, Learners},
		{"newcomer", 0.5, 5000, 5, 0.2, Explorers},
		{"accurate but low volume", 0.95, 2500, 10, 0.2, Explorers},
		{"ace beats social", 0.95, 2500, 75, 0.9, Aces},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateArchetype(tc.accuracy, tc.avgResponseMs, tc.questionsAnswered, tc.socialScore)
			if got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}
