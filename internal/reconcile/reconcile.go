// Package reconcile applies human corrections to a proposed mapping.
//
// Every operation is a pure function: it takes a mapping, returns an edited
// copy, and never touches the input. UnmappedHeaders is recomputed after
// each edit. A Session pairs the working copy with the original proposal so
// individual headers can be reset.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
)

// SetTarget points header at target. It fails with contact.ErrUnknownHeader
// when header is not part of result and with the target's validation error
// when target is unusable.
func SetTarget(result *contact.MappingResult, header string, target contact.TargetRef) (*contact.MappingResult, error) {
	entry, ok := result.Entry(header)
	if !ok {
		return nil, fmt.Errorf("%w: %q", contact.ErrUnknownHeader, header)
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	out := result.Clone()
	entry.Target = target
	out.Entries[header] = entry
	out.RecomputeUnmapped()
	return out, nil
}

// ProposeNewField points header at a new custom field labeled label. The
// label is trimmed; a blank label fails with contact.ErrEmptyLabel.
func ProposeNewField(result *contact.MappingResult, header, label string) (*contact.MappingResult, error) {
	if strings.TrimSpace(label) == "" {
		return nil, contact.ErrEmptyLabel
	}
	return SetTarget(result, header, contact.NewCustom(label))
}

// Unmap drops header from the import.
func Unmap(result *contact.MappingResult, header string) (*contact.MappingResult, error) {
	return SetTarget(result, header, contact.Unmapped())
}

// ResetToProposal restores header's entry, target and confidence, to
// original. original must describe the same header.
func ResetToProposal(result *contact.MappingResult, header string, original contact.MappingEntry) (*contact.MappingResult, error) {
	if _, ok := result.Entry(header); !ok {
		return nil, fmt.Errorf("%w: %q", contact.ErrUnknownHeader, header)
	}
	if original.Header != header {
		return nil, fmt.Errorf("%w: original entry is for %q, not %q", contact.ErrUnknownHeader, original.Header, header)
	}

	out := result.Clone()
	out.Entries[header] = original
	out.RecomputeUnmapped()
	return out, nil
}
