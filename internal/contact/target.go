package contact

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TargetKind discriminates the TargetRef variants.
type TargetKind int

// Target kinds.
const (
	TargetUnmapped TargetKind = iota
	TargetCore
	TargetExistingCustom
	TargetNewCustom
)

// String returns the lower-case kind name.
func (k TargetKind) String() string {
	switch k {
	case TargetCore:
		return "core"
	case TargetExistingCustom:
		return "existing"
	case TargetNewCustom:
		return "new"
	default:
		return "unmapped"
	}
}

// Wire tokens of the target grammar.
const (
	UnmappedToken  = "unmapped"
	NewFieldPrefix = "NEW:"
)

// TargetRef is where a header's values go. Only the member matching Kind is
// meaningful. The zero value is Unmapped.
type TargetRef struct {
	Kind    TargetKind
	Core    CoreAttribute
	FieldID string
	Label   string
}

// Core targets a core attribute.
func Core(attr CoreAttribute) TargetRef {
	return TargetRef{Kind: TargetCore, Core: attr}
}

// ExistingCustom targets a stored custom field.
func ExistingCustom(fieldID string) TargetRef {
	return TargetRef{Kind: TargetExistingCustom, FieldID: fieldID}
}

// NewCustom targets a custom field that does not exist yet.
func NewCustom(label string) TargetRef {
	return TargetRef{Kind: TargetNewCustom, Label: strings.TrimSpace(label)}
}

// Unmapped drops the header.
func Unmapped() TargetRef {
	return TargetRef{}
}

// IsUnmapped reports whether the target drops the header.
func (t TargetRef) IsUnmapped() bool {
	return t.Kind == TargetUnmapped
}

// Key returns the attribute key records use for this target: the core name
// or the field id. New and unmapped targets have no key.
func (t TargetRef) Key() string {
	switch t.Kind {
	case TargetCore:
		return string(t.Core)
	case TargetExistingCustom:
		return t.FieldID
	default:
		return ""
	}
}

// Validate checks that the variant's payload is usable.
func (t TargetRef) Validate() error {
	switch t.Kind {
	case TargetUnmapped:
		return nil
	case TargetCore:
		if !t.Core.Valid() {
			return fmt.Errorf("%w: unknown core attribute %q", ErrInvalidTarget, t.Core)
		}
	case TargetExistingCustom:
		if strings.TrimSpace(t.FieldID) == "" {
			return fmt.Errorf("%w: empty field id", ErrInvalidTarget)
		}
	case TargetNewCustom:
		if strings.TrimSpace(t.Label) == "" {
			return ErrEmptyLabel
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidTarget, t.Kind)
	}
	return nil
}

// Equal compares two targets. New-field labels compare by LabelKey.
func (t TargetRef) Equal(o TargetRef) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TargetCore:
		return t.Core == o.Core
	case TargetExistingCustom:
		return t.FieldID == o.FieldID
	case TargetNewCustom:
		return LabelKey(t.Label) == LabelKey(o.Label)
	default:
		return true
	}
}

// String renders the wire form.
func (t TargetRef) String() string {
	switch t.Kind {
	case TargetCore:
		return string(t.Core)
	case TargetExistingCustom:
		return t.FieldID
	case TargetNewCustom:
		return NewFieldPrefix + t.Label
	default:
		return UnmappedToken
	}
}

// ParseTarget parses the wire form. Any token that is not a core attribute,
// "unmapped" or a NEW: proposal is read as an existing field id; callers that
// know the field set must check it.
func ParseTarget(s string) (TargetRef, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return TargetRef{}, fmt.Errorf("%w: empty target", ErrInvalidTarget)
	case strings.EqualFold(s, UnmappedToken):
		return Unmapped(), nil
	case len(s) >= len(NewFieldPrefix) && strings.EqualFold(s[:len(NewFieldPrefix)], NewFieldPrefix):
		label := strings.TrimSpace(s[len(NewFieldPrefix):])
		if label == "" {
			return TargetRef{}, fmt.Errorf("%w: %q", ErrEmptyLabel, s)
		}
		return NewCustom(label), nil
	}
	if attr, ok := ParseCoreAttribute(s); ok {
		return Core(attr), nil
	}
	return ExistingCustom(s), nil
}

// MarshalJSON encodes the wire form.
func (t TargetRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes the wire form.
func (t *TargetRef) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTarget(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
