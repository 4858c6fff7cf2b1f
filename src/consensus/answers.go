package consensus

import (
	"encoding/json"
	"io/ioutil"
)

// AnswerSource supplies reference answers for curriculum questions. The
// curriculum loader is a collaborator outside the core; the miner only needs
// this lookup.
type AnswerSource interface {
	ReferenceAnswer(questionID string) (string, bool)
}

// StaticAnswers is an in-memory AnswerSource backed by a map.
type StaticAnswers map[string]string

// ReferenceAnswer implements AnswerSource.
func (s StaticAnswers) ReferenceAnswer(questionID string) (string, bool) {
	answer, ok := s[questionID]
	return answer, ok
}

// LoadStaticAnswers reads a JSON file mapping question ids to reference
// answers, as produced by the curriculum tooling.
func LoadStaticAnswers(path string) (StaticAnswers, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	answers := StaticAnswers{}
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, err
	}

	return answers, nil
}
