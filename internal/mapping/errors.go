package mapping

import (
	"strings"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
)

// MalformedError lists every problem found in a classifier response.
type MalformedError struct {
	Problems []string
}

func (e *MalformedError) Error() string {
	if len(e.Problems) == 0 {
		return contact.ErrMalformedResponse.Error()
	}
	return contact.ErrMalformedResponse.Error() + ": " + strings.Join(e.Problems, "; ")
}

// Unwrap returns contact.ErrMalformedResponse.
func (e *MalformedError) Unwrap() error {
	return contact.ErrMalformedResponse
}

func malformed(problems ...string) *MalformedError {
	return &MalformedError{Problems: problems}
}
