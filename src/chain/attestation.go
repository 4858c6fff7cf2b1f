package chain

import (
	"bytes"
	"fmt"

	"github.com/ugorji/go/codec"
)

// Attestation records a validator's judgement of a submitted answer against
// a reference answer. Attestations are produced during mining (or while
// importing a foreign chain fragment) and are owned by the block that embeds
// them; they are never mutated.
type Attestation struct {
	ValidatorPubKey string
	QuestionID      string
	SubmittedAnswer string
	ReferenceAnswer string
	Timestamp       int64
	Confidence      float64 // in [0,1]
	IsMatch         bool
}

// Key returns a unique identifier for map-style bookkeeping.
func (a *Attestation) Key() string {
	return fmt.Sprintf("%s-%s-%d", a.QuestionID, a.ValidatorPubKey, a.Timestamp)
}

// Marshal - canonical json encoding
func (a *Attestation) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(a); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (a *Attestation) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(a)
}
