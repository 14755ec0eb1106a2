package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
	"github.com/fyrsmithlabs/contactimport/internal/mapping"
)

func TestHeuristicClassifier_ThroughEngine(t *testing.T) {
	headers := []string{
		"First_Name", "SURNAME", "E-Mail Address", "Mobile Number", "agent_assigned",
		"Company", "Order ID", "customer_name", "Work Email", "ID",
	}
	known := []contact.CustomFieldDef{{ID: "fld_company", Label: "Company", Type: contact.FieldTypeText}}

	result, err := mapping.NewEngine(NewHeuristic()).ProposeMapping(context.Background(), headers, known)
	require.NoError(t, err)

	want := map[string]contact.TargetRef{
		"First_Name":     contact.Core(contact.FirstName),
		"SURNAME":        contact.Core(contact.LastName),
		"E-Mail Address": contact.Core(contact.Email),
		"Mobile Number":  contact.Core(contact.Phone),
		"agent_assigned": contact.Core(contact.AgentUID),
		"Company":        contact.ExistingCustom("fld_company"),
		"Order ID":       contact.Unmapped(),
		"customer_name":  contact.NewCustom("Customer Name"),
		"Work Email":     contact.Core(contact.Email),
		"ID":             contact.Unmapped(),
	}
	for h, target := range want {
		assert.Equal(t, target, result.Entries[h].Target, h)
	}
	assert.ElementsMatch(t, []string{"Order ID", "ID"}, result.UnmappedHeaders)
	assert.Equal(t, "high", result.Entries["E-Mail Address"].Band())
	assert.Equal(t, "low", result.Entries["customer_name"].Band())
}

func TestHeuristicClassifier_Deterministic(t *testing.T) {
	req, err := mapping.BuildRequest([]string{"phone", "notes", "city"}, []contact.CustomFieldDef{
		{ID: "f1", Label: "City", Type: contact.FieldTypeText},
	})
	require.NoError(t, err)

	h := NewHeuristic()
	first, err := h.Classify(context.Background(), req)
	require.NoError(t, err)
	second, err := h.Classify(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, first, second)
}

func TestHeuristicClassifier_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHeuristic().Classify(ctx, mapping.Request{Headers: []string{"a"}})
	assert.ErrorIs(t, err, context.Canceled)
}
