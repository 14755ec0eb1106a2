package contact

import (
	"fmt"
	"strings"
)

// Confidence thresholds shared by the engine and the heuristic classifier.
const (
	ConfidenceHigh   = 0.9
	ConfidenceMedium = 0.7
	ConfidenceLow    = 0.5
)

// MappingEntry assigns one header to a target.
type MappingEntry struct {
	Header     string    `json:"header"`
	Target     TargetRef `json:"target"`
	Confidence float64   `json:"confidence"`
}

// Band returns "high", "medium", "low" or "none" for the entry's confidence.
func (e MappingEntry) Band() string {
	switch {
	case e.Confidence >= ConfidenceHigh:
		return "high"
	case e.Confidence >= ConfidenceMedium:
		return "medium"
	case e.Confidence >= ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// MappingResult is the ordered header to entry mapping produced by the engine
// and edited by the reconciler. Headers holds the display order; Entries has
// exactly one entry per header.
type MappingResult struct {
	Headers         []string                `json:"headers"`
	Entries         map[string]MappingEntry `json:"entries"`
	UnmappedHeaders []string                `json:"unmappedHeaders"`
	Notes           string                  `json:"notes,omitempty"`
}

// NewMappingResult builds a result from entries in header order.
func NewMappingResult(entries []MappingEntry, notes string) (*MappingResult, error) {
	r := &MappingResult{
		Headers: make([]string, 0, len(entries)),
		Entries: make(map[string]MappingEntry, len(entries)),
		Notes:   notes,
	}
	for _, e := range entries {
		if _, dup := r.Entries[e.Header]; dup {
			return nil, fmt.Errorf("%w: duplicate header %q", ErrInvalidHeaders, e.Header)
		}
		r.Headers = append(r.Headers, e.Header)
		r.Entries[e.Header] = e
	}
	r.RecomputeUnmapped()
	return r, nil
}

// Entry returns the entry for header.
func (r *MappingResult) Entry(header string) (MappingEntry, bool) {
	e, ok := r.Entries[header]
	return e, ok
}

// OrderedEntries returns entries in header order.
func (r *MappingResult) OrderedEntries() []MappingEntry {
	out := make([]MappingEntry, 0, len(r.Headers))
	for _, h := range r.Headers {
		out = append(out, r.Entries[h])
	}
	return out
}

// RecomputeUnmapped rebuilds UnmappedHeaders as the headers whose target is
// Unmapped, in header order.
func (r *MappingResult) RecomputeUnmapped() {
	unmapped := make([]string, 0)
	for _, h := range r.Headers {
		if r.Entries[h].Target.IsUnmapped() {
			unmapped = append(unmapped, h)
		}
	}
	r.UnmappedHeaders = unmapped
}

// Clone returns a deep copy.
func (r *MappingResult) Clone() *MappingResult {
	if r == nil {
		return nil
	}
	c := &MappingResult{
		Headers:         append([]string(nil), r.Headers...),
		Entries:         make(map[string]MappingEntry, len(r.Entries)),
		UnmappedHeaders: append([]string(nil), r.UnmappedHeaders...),
		Notes:           r.Notes,
	}
	for k, v := range r.Entries {
		c.Entries[k] = v
	}
	return c
}

// Validate checks structural consistency: one entry per header, valid
// targets, confidence in [0,1].
func (r *MappingResult) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil mapping", ErrInvalidHeaders)
	}
	if len(r.Headers) != len(r.Entries) {
		return fmt.Errorf("%w: %d headers but %d entries", ErrInvalidHeaders, len(r.Headers), len(r.Entries))
	}
	seen := make(map[string]bool, len(r.Headers))
	for _, h := range r.Headers {
		if seen[h] {
			return fmt.Errorf("%w: duplicate header %q", ErrInvalidHeaders, h)
		}
		seen[h] = true
		e, ok := r.Entries[h]
		if !ok {
			return fmt.Errorf("%w: no entry for header %q", ErrInvalidHeaders, h)
		}
		if e.Header != h {
			return fmt.Errorf("%w: entry for %q names header %q", ErrInvalidHeaders, h, e.Header)
		}
		if err := e.Target.Validate(); err != nil {
			return fmt.Errorf("header %q: %w", h, err)
		}
		if e.Confidence < 0 || e.Confidence > 1 {
			return fmt.Errorf("header %q: confidence %v outside [0,1]", h, e.Confidence)
		}
	}
	return nil
}

// NewFieldLabels returns the distinct proposed labels in first-seen header
// order. Labels are compared with LabelKey.
func (r *MappingResult) NewFieldLabels() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, h := range r.Headers {
		t := r.Entries[h].Target
		if t.Kind != TargetNewCustom {
			continue
		}
		key := LabelKey(t.Label)
		if seen[key] {
			continue
		}
		seen[key] = true
		labels = append(labels, t.Label)
	}
	return labels
}

// DuplicateTargets returns target wire forms claimed by more than one
// header, with the claiming headers in header order.
func (r *MappingResult) DuplicateTargets() map[string][]string {
	claims := make(map[string][]string)
	for _, h := range r.Headers {
		t := r.Entries[h].Target
		if t.IsUnmapped() {
			continue
		}
		key := t.String()
		if t.Kind == TargetNewCustom {
			key = NewFieldPrefix + LabelKey(t.Label)
		}
		claims[key] = append(claims[key], h)
	}
	for k, hs := range claims {
		if len(hs) < 2 {
			delete(claims, k)
		}
	}
	return claims
}

// Summary renders a one-line description for logs.
func (r *MappingResult) Summary() string {
	var b strings.Builder
	mapped := len(r.Headers) - len(r.UnmappedHeaders)
	fmt.Fprintf(&b, "%d headers, %d mapped, %d unmapped", len(r.Headers), mapped, len(r.UnmappedHeaders))
	if n := len(r.NewFieldLabels()); n > 0 {
		fmt.Fprintf(&b, ", %d new fields", n)
	}
	return b.String()
}
