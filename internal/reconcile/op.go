package reconcile

import (
	"fmt"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
)

// OpKind names a serializable reconciler edit.
type OpKind string

// Edit kinds accepted by Apply.
const (
	OpSetTarget OpKind = "set_target"
	OpNewField  OpKind = "new_field"
	OpUnmap     OpKind = "unmap"
	OpReset     OpKind = "reset"
)

// Op is one edit in wire form, as received over HTTP or MCP.
type Op struct {
	Kind   OpKind `json:"op" validate:"required,oneof=set_target new_field unmap reset"`
	Header string `json:"header" validate:"required"`
	Target string `json:"target,omitempty"`
	Label  string `json:"label,omitempty"`
}

// Apply performs op on the session.
func Apply(s Session, op Op) (Session, error) {
	switch op.Kind {
	case OpSetTarget:
		target, err := contact.ParseTarget(op.Target)
		if err != nil {
			return s, err
		}
		return s.SetTarget(op.Header, target)
	case OpNewField:
		return s.ProposeNewField(op.Header, op.Label)
	case OpUnmap:
		return s.Unmap(op.Header)
	case OpReset:
		return s.Reset(op.Header)
	default:
		return s, fmt.Errorf("unknown reconcile op %q", op.Kind)
	}
}

// ApplyAll performs ops in order, stopping at the first failure.
func ApplyAll(s Session, ops []Op) (Session, error) {
	for i, op := range ops {
		next, err := Apply(s, op)
		if err != nil {
			return s, fmt.Errorf("op %d (%s %q): %w", i, op.Kind, op.Header, err)
		}
		s = next
	}
	return s, nil
}
