package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
)

// Classifier answers a mapping request with the raw response text.
type Classifier interface {
	Classify(ctx context.Context, req Request) (string, error)
	Name() string
}

// Request is what a classifier receives: the ordered headers plus a system
// prompt carrying the structured spec.
type Request struct {
	Headers      []string    `json:"headers"`
	SystemPrompt string      `json:"systemPrompt"`
	Spec         RequestSpec `json:"-"`
}

// RequestSpec is the structured part of the request. Classifiers that do not
// use a language model read it directly.
type RequestSpec struct {
	CoreAttributes  []AttributeSpec  `json:"coreAttributes"`
	KnownFields     []FieldSpec      `json:"knownFields"`
	Rules           []string         `json:"rules"`
	ConfidenceBands []ConfidenceBand `json:"confidenceBands"`
}

// AttributeSpec describes one core attribute.
type AttributeSpec struct {
	Name string            `json:"name"`
	Type contact.FieldType `json:"type"`
}

// FieldSpec describes one existing custom field.
type FieldSpec struct {
	Label string            `json:"label"`
	Type  contact.FieldType `json:"type"`
	ID    string            `json:"id"`
}

// ConfidenceBand is a half-open confidence interval [Min, Max).
type ConfidenceBand struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Meaning string  `json:"meaning"`
}

// MatchingRules are the rules every classifier must honor, in priority order.
var MatchingRules = []string{
	"Compare headers ignoring case, whitespace, underscores and punctuation.",
	"Treat synonyms as equivalent (mobile = phone, location = address, surname = lastName).",
	"Prefer a core attribute over any custom field.",
	"Prefer an existing custom field over proposing a new one; propose NEW:<label> only when no existing field, core or custom, is equivalent.",
	"Map a header to unmapped when it is not interpretable or not contact-related (order ids, transaction timestamps).",
	"Any confidence below 0.5 must be mapped to unmapped.",
}

// ConfidenceBands lists the bands in descending order.
var ConfidenceBands = []ConfidenceBand{
	{Name: "high", Min: contact.ConfidenceHigh, Max: 1, Meaning: "clear match"},
	{Name: "medium", Min: contact.ConfidenceMedium, Max: contact.ConfidenceHigh, Meaning: "partial match"},
	{Name: "low", Min: contact.ConfidenceLow, Max: contact.ConfidenceMedium, Meaning: "uncertain"},
	{Name: "none", Min: 0, Max: contact.ConfidenceLow, Meaning: "must be unmapped"},
}

// BuildRequest assembles the request for headers against the known fields.
// Core definitions in known are skipped; they are always listed.
func BuildRequest(headers []string, known []contact.CustomFieldDef) (Request, error) {
	spec := RequestSpec{
		CoreAttributes:  make([]AttributeSpec, 0, 5),
		KnownFields:     make([]FieldSpec, 0, len(known)),
		Rules:           MatchingRules,
		ConfidenceBands: ConfidenceBands,
	}
	for _, a := range contact.CoreAttributes() {
		spec.CoreAttributes = append(spec.CoreAttributes, AttributeSpec{Name: string(a), Type: a.Type()})
	}
	for _, f := range known {
		if f.Core {
			continue
		}
		spec.KnownFields = append(spec.KnownFields, FieldSpec{Label: f.Label, Type: f.Type, ID: f.ID})
	}

	prompt, err := renderSystemPrompt(spec)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Headers:      append([]string(nil), headers...),
		SystemPrompt: prompt,
		Spec:         spec,
	}, nil
}

// UserMessage renders the headers as the user turn of a chat request.
func (r Request) UserMessage() string {
	data, _ := json.Marshal(struct {
		Headers []string `json:"headers"`
	}{Headers: r.Headers})
	return string(data)
}

func renderSystemPrompt(spec RequestSpec) (string, error) {
	specJSON, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode request spec: %w", err)
	}

	var b strings.Builder
	b.WriteString("You map spreadsheet column headers onto contact attributes.\n")
	b.WriteString("The user message lists the headers. Map every header exactly once.\n\n")
	b.WriteString("Specification:\n")
	b.Write(specJSON)
	b.WriteString("\n\nmappedTo must be one of: a core attribute name, an existing field id, ")
	b.WriteString(contact.NewFieldPrefix + "<label>, or " + contact.UnmappedToken + ".\n")
	b.WriteString("Respond with a single JSON object and nothing else:\n")
	b.WriteString(`{"mapping": {"<header>": {"mappedTo": "<target>", "confidence": <0..1>}}, "unmappedHeaders": ["<header>"], "notes": "<short rationale>"}`)
	b.WriteString("\n")
	return b.String(), nil
}
