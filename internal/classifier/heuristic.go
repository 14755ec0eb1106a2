package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
	"github.com/fyrsmithlabs/contactimport/internal/mapping"
)

// coreAliases lists header spellings per core attribute, already normalized.
var coreAliases = map[contact.CoreAttribute][]string{
	contact.FirstName: {"firstname", "fname", "givenname", "forename", "first", "name"},
	contact.LastName:  {"lastname", "lname", "surname", "familyname", "last"},
	contact.Phone: {"phone", "phonenumber", "mobile", "mobilenumber", "mobilephone", "cell",
		"cellphone", "cellnumber", "telephone", "tel", "contactnumber", "phoneno"},
	contact.Email: {"email", "emailaddress", "mail", "contactemail", "emailid"},
	contact.AgentUID: {"agent", "agentemail", "assignedagent", "agentassigned", "owner",
		"assignedto", "salesrep", "rep", "accountmanager", "agentuid"},
}

// coreFragments are substrings that suggest a core attribute when no alias
// matches exactly. Kept to four letters or more to avoid accidental hits.
var coreFragments = []struct {
	fragment string
	attr     contact.CoreAttribute
}{
	{"email", contact.Email},
	{"phone", contact.Phone},
	{"mobile", contact.Phone},
	{"firstname", contact.FirstName},
	{"lastname", contact.LastName},
	{"surname", contact.LastName},
	{"agent", contact.AgentUID},
}

// nonContact are fragments of headers that describe transactions rather
// than people.
var nonContact = []string{"order", "transaction", "invoice", "sku", "timestamp", "createdat", "updatedat", "payment", "amount"}

var nonContactExact = map[string]bool{"id": true, "rowid": true, "row": true, "index": true, "uuid": true}

// HeuristicClassifier maps headers with an alias table. It needs no network
// and is deterministic.
type HeuristicClassifier struct{}

// NewHeuristic creates a heuristic classifier.
func NewHeuristic() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// Name returns "heuristic".
func (h *HeuristicClassifier) Name() string { return ProviderHeuristic }

// Classify answers from req.Spec in the classifier response format.
func (h *HeuristicClassifier) Classify(ctx context.Context, req mapping.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fields := make(map[string]string, len(req.Spec.KnownFields))
	for _, f := range req.Spec.KnownFields {
		fields[mapping.NormalizeHeader(f.Label)] = f.ID
	}

	resp := mapping.Response{
		Mapping:         make(map[string]mapping.ResponseEntry, len(req.Headers)),
		UnmappedHeaders: []string{},
		Notes:           "alias table match",
	}
	for _, header := range req.Headers {
		entry := h.match(header, fields)
		resp.Mapping[header] = entry
		if entry.MappedTo == contact.UnmappedToken {
			resp.UnmappedHeaders = append(resp.UnmappedHeaders, header)
		}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("encode heuristic response: %w", err)
	}
	return string(data), nil
}

func (h *HeuristicClassifier) match(header string, fields map[string]string) mapping.ResponseEntry {
	norm := mapping.NormalizeHeader(header)
	if norm == "" {
		return mapping.ResponseEntry{MappedTo: contact.UnmappedToken, Confidence: contact.ConfidenceHigh}
	}

	for _, attr := range contact.CoreAttributes() {
		for _, alias := range coreAliases[attr] {
			if norm == alias {
				return mapping.ResponseEntry{MappedTo: string(attr), Confidence: 0.95}
			}
		}
	}
	if id, ok := fields[norm]; ok {
		return mapping.ResponseEntry{MappedTo: id, Confidence: contact.ConfidenceHigh}
	}

	if nonContactExact[norm] {
		return mapping.ResponseEntry{MappedTo: contact.UnmappedToken, Confidence: contact.ConfidenceHigh}
	}
	for _, frag := range nonContact {
		if strings.Contains(norm, frag) {
			return mapping.ResponseEntry{MappedTo: contact.UnmappedToken, Confidence: contact.ConfidenceMedium}
		}
	}

	for _, f := range coreFragments {
		if strings.Contains(norm, f.fragment) {
			return mapping.ResponseEntry{MappedTo: string(f.attr), Confidence: 0.75}
		}
	}
	labels := make([]string, 0, len(fields))
	for label := range fields {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		if len(label) >= 4 && strings.Contains(norm, label) {
			return mapping.ResponseEntry{MappedTo: fields[label], Confidence: contact.ConfidenceMedium}
		}
	}

	label := h.label(header)
	if label == "" {
		return mapping.ResponseEntry{MappedTo: contact.UnmappedToken, Confidence: contact.ConfidenceHigh}
	}
	return mapping.ResponseEntry{MappedTo: contact.NewFieldPrefix + label, Confidence: 0.6}
}

// label turns "customer_name" into "Customer Name".
func (h *HeuristicClassifier) label(header string) string {
	words := strings.FieldsFunc(header, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return cases.Title(language.Und).String(strings.Join(words, " "))
}

var _ mapping.Classifier = (*HeuristicClassifier)(nil)
