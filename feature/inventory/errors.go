package inventory

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a referenced user, piece, or scan does not exist.
// No mutation happens on this path.
var ErrNotFound = errors.New("not found")

// ErrNoDuplicates reports a trade on a piece whose duplicate count is
// already zero.
var ErrNoDuplicates = errors.New("no duplicates left to trade")

// ValidationError reports a malformed field. In batch processing the record
// carrying it is dropped with a warning and the rest of the batch continues.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationErrorf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a field validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
