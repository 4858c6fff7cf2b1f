package chain

import (
	"bytes"
	"regexp"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/ugorji/go/codec"

	"github.com/robjohncolson/apstat-chain/src/common"
	"github.com/robjohncolson/apstat-chain/src/crypto"
)

// TransactionType ...
type TransactionType uint8

const (
	// CREATE_USER announces a new profile on the chain.
	CREATE_USER TransactionType = iota
	// ATTESTATION submits an answer to a curriculum question.
	ATTESTATION
)

// String ...
func (t TransactionType) String() string {
	switch t {
	case CREATE_USER:
		return "CREATE_USER"
	case ATTESTATION:
		return "ATTESTATION"
	default:
		return "Unknown TransactionType"
	}
}

// AnswerType discriminates the two answer payload variants.
type AnswerType uint8

const (
	// MULTIPLE_CHOICE answers carry the hash of the selected option.
	MULTIPLE_CHOICE AnswerType = iota
	// FREE_RESPONSE answers carry the text and a self-assessed rubric score.
	FREE_RESPONSE
)

// String ...
func (t AnswerType) String() string {
	switch t {
	case MULTIPLE_CHOICE:
		return "MULTIPLE_CHOICE"
	case FREE_RESPONSE:
		return "FREE_RESPONSE"
	default:
		return "Unknown AnswerType"
	}
}

// Answer is the payload of an ATTESTATION transaction. Type selects the
// variant: MULTIPLE_CHOICE populates Hash and Choice, FREE_RESPONSE populates
// Text and Score. The factory enforces that exactly one variant is set.
type Answer struct {
	Type   AnswerType
	Hash   string  // MULTIPLE_CHOICE: content hash of the selected option
	Choice string  // MULTIPLE_CHOICE: the selected option, A-E
	Text   string  // FREE_RESPONSE
	Score  float64 // FREE_RESPONSE: self-assessed rubric score in [1,5]
}

// Transaction is an immutable, signed submission record. It is created by
// the factory functions below and never mutated afterwards.
type Transaction struct {
	ID             string
	Type           TransactionType
	QuestionID     string
	Username       string  // CREATE_USER only
	Answer         *Answer // ATTESTATION only
	AttesterPubKey string
	Signature      string
	Timestamp      int64
}

var questionIDFormat = regexp.MustCompile(`^U\d+-L\d+-Q\d+$`)

// choices are the recognised multiple-choice options.
var choices = map[string]bool{"A": true, "B": true, "C": true, "D": true, "E": true}

// normalizeAnswerType maps the question-type strings accepted at the
// submission boundary onto an AnswerType.
func normalizeAnswerType(questionType string) (AnswerType, error) {
	switch strings.ToLower(strings.TrimSpace(questionType)) {
	case "multiple-choice", "mcq":
		return MULTIPLE_CHOICE, nil
	case "free-response", "frq":
		return FREE_RESPONSE, nil
	default:
		return 0, errUnknownQuestionType(questionType)
	}
}

// NewAttestationTx builds and signs an attestation transaction. For
// multiple-choice questions, answer is the selected option and score is
// ignored; the option is hashed with hasher before it is stored. For
// free-response questions, answer is the response text and score the
// self-assessed rubric score.
func NewAttestationTx(hasher crypto.Hasher, signer crypto.Signer, questionID string, questionType string, answer string, score float64) (*Transaction, error) {
	if !questionIDFormat.MatchString(questionID) {
		return nil, errInvalidQuestionID(questionID)
	}

	at, err := normalizeAnswerType(questionType)
	if err != nil {
		return nil, err
	}

	payload := &Answer{Type: at}

	switch at {
	case MULTIPLE_CHOICE:
		choice := strings.ToUpper(strings.TrimSpace(answer))
		if !choices[choice] {
			return nil, errInvalidChoice(answer)
		}
		payload.Choice = choice
		payload.Hash = common.EncodeToString(hasher.Hash([]byte(choice)))
	case FREE_RESPONSE:
		if strings.TrimSpace(answer) == "" {
			return nil, errEmptyAnswer()
		}
		if score < 1 || score > 5 {
			return nil, errScoreOutOfRange(score)
		}
		payload.Text = answer
		payload.Score = score
	}

	tx := &Transaction{
		ID:             xid.New().String(),
		Type:           ATTESTATION,
		QuestionID:     questionID,
		Answer:         payload,
		AttesterPubKey: signer.PublicKeyHex(),
		Timestamp:      time.Now().Unix(),
	}

	return signTx(tx, hasher, signer)
}

// NewCreateUserTx builds and signs a profile-announcement transaction.
func NewCreateUserTx(hasher crypto.Hasher, signer crypto.Signer, username string) (*Transaction, error) {
	if strings.TrimSpace(username) == "" {
		return nil, NewValidationError("username", "empty username")
	}

	tx := &Transaction{
		ID:             xid.New().String(),
		Type:           CREATE_USER,
		Username:       username,
		AttesterPubKey: signer.PublicKeyHex(),
		Timestamp:      time.Now().Unix(),
	}

	return signTx(tx, hasher, signer)
}

func signTx(tx *Transaction, hasher crypto.Hasher, signer crypto.Signer) (*Transaction, error) {
	digest, err := tx.SigningHash(hasher)
	if err != nil {
		return nil, err
	}

	sig, err := signer.Sign(digest)
	if err != nil {
		return nil, err
	}

	tx.Signature = sig

	return tx, nil
}

// SigningHash returns the content digest covered by the signature: the
// canonical encoding of the transaction with an empty Signature field.
func (t *Transaction) SigningHash(hasher crypto.Hasher) ([]byte, error) {
	unsigned := *t
	unsigned.Signature = ""

	raw, err := unsigned.Marshal()
	if err != nil {
		return nil, err
	}

	return hasher.Hash(raw), nil
}

// Verify checks the transaction's signature against its content and the
// attester's public key.
func (t *Transaction) Verify(hasher crypto.Hasher) bool {
	digest, err := t.SigningHash(hasher)
	if err != nil {
		return false
	}
	return crypto.Verify(t.AttesterPubKey, digest, t.Signature)
}

// Marshal - canonical json encoding
func (t *Transaction) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(t); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (t *Transaction) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(t)
}
