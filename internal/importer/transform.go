package importer

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
)

// placeholders are cell values treated as empty, compared case-insensitively.
var placeholders = map[string]bool{
	"null":      true,
	"undefined": true,
	"-":         true,
}

// IsBlank reports whether a cell value carries no data.
func IsBlank(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || placeholders[strings.ToLower(v)]
}

type column struct {
	header string
	target contact.TargetRef
}

// transformer turns rows into attributes using a resolved mapping. Columns
// are applied in header order, so with duplicate targets the later header
// wins.
type transformer struct {
	columns []column
	agents  contact.AgentDirectory
}

func newTransformer(resolved *contact.MappingResult, agents contact.AgentDirectory) *transformer {
	t := &transformer{agents: agents}
	for _, e := range resolved.OrderedEntries() {
		if e.Target.IsUnmapped() {
			continue
		}
		t.columns = append(t.columns, column{header: e.Header, target: e.Target})
	}
	return t
}

// rowResult is the transformed form of one row.
type rowResult struct {
	attrs contact.Attributes
	// agentMisses counts agentUid values with no directory entry.
	agentMisses int
}

func (t *transformer) transform(row map[string]string) rowResult {
	var r rowResult
	for _, col := range t.columns {
		raw, ok := row[col.header]
		if !ok || IsBlank(raw) {
			continue
		}
		// Cell values are stored verbatim; only the agent lookup trims.
		value := raw
		if col.target.Kind == contact.TargetCore && col.target.Core == contact.AgentUID {
			id, found := t.agents[strings.TrimSpace(raw)]
			if !found {
				r.agentMisses++
				continue
			}
			value = id
		}
		r.attrs.Set(col.target, value)
	}
	return r
}

// validate applies the validation policy to transformed attributes.
func validate(policy string, attrs *contact.Attributes) error {
	var required []contact.CoreAttribute
	switch policy {
	case ValidationStrict:
		required = []contact.CoreAttribute{contact.FirstName, contact.LastName, contact.Email, contact.Phone}
	default:
		_, hasEmail := attrs.Core.Get(contact.Email)
		_, hasPhone := attrs.Core.Get(contact.Phone)
		if !hasEmail && !hasPhone {
			return fmt.Errorf("%w: no email or phone", contact.ErrRowRejected)
		}
		return nil
	}

	var missing []string
	for _, attr := range required {
		if _, ok := attrs.Core.Get(attr); !ok {
			missing = append(missing, string(attr))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", contact.ErrRowRejected, strings.Join(missing, ", "))
	}
	return nil
}
