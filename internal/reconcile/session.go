package reconcile

import (
	"fmt"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
)

// Session holds the classifier's original proposal next to the working copy
// being edited. Both are values; methods return a new Session.
type Session struct {
	Original *contact.MappingResult `json:"original"`
	Working  *contact.MappingResult `json:"working"`
}

// NewSession starts editing proposal.
func NewSession(proposal *contact.MappingResult) Session {
	return Session{Original: proposal.Clone(), Working: proposal.Clone()}
}

// SetTarget edits the working copy.
func (s Session) SetTarget(header string, target contact.TargetRef) (Session, error) {
	w, err := SetTarget(s.Working, header, target)
	if err != nil {
		return s, err
	}
	return Session{Original: s.Original, Working: w}, nil
}

// ProposeNewField edits the working copy.
func (s Session) ProposeNewField(header, label string) (Session, error) {
	w, err := ProposeNewField(s.Working, header, label)
	if err != nil {
		return s, err
	}
	return Session{Original: s.Original, Working: w}, nil
}

// Unmap edits the working copy.
func (s Session) Unmap(header string) (Session, error) {
	w, err := Unmap(s.Working, header)
	if err != nil {
		return s, err
	}
	return Session{Original: s.Original, Working: w}, nil
}

// Reset restores header to the original proposal.
func (s Session) Reset(header string) (Session, error) {
	original, ok := s.Original.Entry(header)
	if !ok {
		return s, fmt.Errorf("%w: %q", contact.ErrUnknownHeader, header)
	}
	w, err := ResetToProposal(s.Working, header, original)
	if err != nil {
		return s, err
	}
	return Session{Original: s.Original, Working: w}, nil
}

// Changed lists headers whose working target differs from the proposal, in
// header order.
func (s Session) Changed() []string {
	var changed []string
	for _, h := range s.Working.Headers {
		o, _ := s.Original.Entry(h)
		if !o.Target.Equal(s.Working.Entries[h].Target) {
			changed = append(changed, h)
		}
	}
	return changed
}
