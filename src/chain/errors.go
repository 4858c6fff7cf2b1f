package chain

import "fmt"

// ValidationError is returned when a submission is rejected before being
// admitted to the mempool. Malformed input is never silently coerced.
type ValidationError struct {
	Field string
	msg   string
}

// NewValidationError ...
func NewValidationError(field string, format string, args ...interface{}) ValidationError {
	return ValidationError{
		Field: field,
		msg:   fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.msg)
}

// IsValidation checks that an error is of type ValidationError.
func IsValidation(err error) bool {
	_, ok := err.(ValidationError)
	return ok
}

func errInvalidQuestionID(id string) ValidationError {
	return NewValidationError("question_id", "%q does not match U<digits>-L<digits>-Q<digits>", id)
}

func errUnknownQuestionType(qt string) ValidationError {
	return NewValidationError("question_type", "unknown question type %q", qt)
}

func errScoreOutOfRange(score float64) ValidationError {
	return NewValidationError("score", "score %v outside [1,5]", score)
}

func errInvalidChoice(choice string) ValidationError {
	return NewValidationError("answer", "choice %q is not one of A-E", choice)
}

func errEmptyAnswer() ValidationError {
	return NewValidationError("answer", "empty answer")
}
