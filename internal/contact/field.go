package contact

import (
	"fmt"
	"strings"
)

// FieldType is the value type of a contact attribute.
type FieldType string

// Supported field types.
const (
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypePhone    FieldType = "phone"
	FieldTypeEmail    FieldType = "email"
	FieldTypeDatetime FieldType = "datetime"
)

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypePhone, FieldTypeEmail, FieldTypeDatetime:
		return true
	}
	return false
}

// CoreAttribute names one of the five fixed contact attributes.
type CoreAttribute string

// Core attributes. These are implicit and never stored as field definitions.
const (
	FirstName CoreAttribute = "firstName"
	LastName  CoreAttribute = "lastName"
	Phone     CoreAttribute = "phone"
	Email     CoreAttribute = "email"
	AgentUID  CoreAttribute = "agentUid"
)

var coreAttributes = []CoreAttribute{FirstName, LastName, Phone, Email, AgentUID}

var coreTypes = map[CoreAttribute]FieldType{
	FirstName: FieldTypeText,
	LastName:  FieldTypeText,
	Phone:     FieldTypePhone,
	Email:     FieldTypeEmail,
	AgentUID:  FieldTypeText,
}

// CoreAttributes returns the core attributes in canonical order.
func CoreAttributes() []CoreAttribute {
	out := make([]CoreAttribute, len(coreAttributes))
	copy(out, coreAttributes)
	return out
}

// ParseCoreAttribute returns the core attribute with the given name, ignoring
// case.
func ParseCoreAttribute(name string) (CoreAttribute, bool) {
	for _, attr := range coreAttributes {
		if strings.EqualFold(name, string(attr)) {
			return attr, true
		}
	}
	return "", false
}

// Type returns the value type of the core attribute.
func (a CoreAttribute) Type() FieldType {
	return coreTypes[a]
}

// Valid reports whether a names a core attribute.
func (a CoreAttribute) Valid() bool {
	_, ok := coreTypes[a]
	return ok
}

// CustomFieldDef describes a contact attribute. Core definitions are
// synthesized by CoreFieldDefs and never persisted.
type CustomFieldDef struct {
	ID    string    `json:"id"`
	Label string    `json:"label" validate:"required"`
	Type  FieldType `json:"type"`
	Core  bool      `json:"core"`
}

// Validate checks the definition for a usable label and type.
func (d CustomFieldDef) Validate() error {
	if strings.TrimSpace(d.Label) == "" {
		return ErrEmptyLabel
	}
	if !d.Type.Valid() {
		return fmt.Errorf("unsupported field type %q", d.Type)
	}
	return nil
}

// CoreFieldDefs returns definitions for the five core attributes.
func CoreFieldDefs() []CustomFieldDef {
	defs := make([]CustomFieldDef, 0, len(coreAttributes))
	for _, a := range coreAttributes {
		defs = append(defs, CustomFieldDef{ID: string(a), Label: string(a), Type: a.Type(), Core: true})
	}
	return defs
}

// LabelKey is the comparison key for field labels: trimmed and lower-cased.
// Two proposals with the same key denote the same field.
func LabelKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Agent is an entry of the user directory used to resolve agentUid values.
type Agent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AgentDirectory maps agent email to agent id.
type AgentDirectory map[string]string

// NewAgentDirectory indexes agents by email. Later duplicates lose.
func NewAgentDirectory(agents []Agent) AgentDirectory {
	dir := make(AgentDirectory, len(agents))
	for _, a := range agents {
		email := strings.TrimSpace(a.Email)
		if email == "" {
			continue
		}
		if _, exists := dir[email]; !exists {
			dir[email] = a.ID
		}
	}
	return dir
}
