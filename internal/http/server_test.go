package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contactimport/internal/classifier"
	"github.com/fyrsmithlabs/contactimport/internal/contact"
	"github.com/fyrsmithlabs/contactimport/internal/importer"
	"github.com/fyrsmithlabs/contactimport/internal/logging"
	"github.com/fyrsmithlabs/contactimport/internal/mapping"
	"github.com/fyrsmithlabs/contactimport/internal/reconcile"
	"github.com/fyrsmithlabs/contactimport/internal/store"
)

type testEnv struct {
	server *Server
	store  *store.MemoryStore
}

func setupTestServer(t *testing.T, c mapping.Classifier) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	reg := prometheus.NewRegistry()
	executor, err := importer.NewExecutor(st, importer.DefaultConfig(), importer.WithMetrics(importer.NewMetrics(reg)))
	require.NoError(t, err)

	server, err := NewServer(Deps{
		Engine:   mapping.NewEngine(c),
		Executor: executor,
		Fields:   st,
		Gatherer: reg,
		Logger:   logging.NewNop(),
	}, nil)
	require.NoError(t, err)
	return &testEnv{server: server, store: st}
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.server.echo.ServeHTTP(rec, req)
	return rec
}

type errClassifier struct{ err error }

func (e errClassifier) Name() string { return "failing" }
func (e errClassifier) Classify(context.Context, mapping.Request) (string, error) {
	return "", e.err
}

type rawClassifier struct{ raw string }

func (r rawClassifier) Name() string { return "raw" }
func (r rawClassifier) Classify(context.Context, mapping.Request) (string, error) {
	return r.raw, nil
}

func TestNewServer(t *testing.T) {
	st := store.NewMemoryStore()
	executor, err := importer.NewExecutor(st, importer.DefaultConfig())
	require.NoError(t, err)
	deps := Deps{
		Engine:   mapping.NewEngine(classifier.NewHeuristic()),
		Executor: executor,
		Fields:   st,
		Logger:   logging.NewNop(),
	}

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(deps, nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 9191, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		d := deps
		d.Logger = nil
		_, err := NewServer(d, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when engine is nil", func(t *testing.T) {
		d := deps
		d.Engine = nil
		_, err := NewServer(d, nil)
		assert.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	env := setupTestServer(t, classifier.NewHeuristic())
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "heuristic", resp.Classifier)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandleListFields(t *testing.T) {
	env := setupTestServer(t, classifier.NewHeuristic())
	_, err := env.store.CreateField(context.Background(), contact.CustomFieldDef{Label: "Company", Type: contact.FieldTypeText})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/fields", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FieldsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Core, 5)
	require.Len(t, resp.Custom, 1)
	assert.Equal(t, "Company", resp.Custom[0].Label)
}

func TestHandleProposeMapping(t *testing.T) {
	t.Run("maps headers", func(t *testing.T) {
		env := setupTestServer(t, classifier.NewHeuristic())
		rec := env.do(t, http.MethodPost, "/api/v1/mappings", ProposeMappingRequest{
			Headers: []string{"customer_name", "contact_email", "mobile_number", "agent_assigned", "order_id"},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp ProposeMappingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		m := resp.Mapping
		require.NotNil(t, m)
		assert.Equal(t, contact.NewCustom("Customer Name"), m.Entries["customer_name"].Target)
		assert.Equal(t, contact.Core(contact.Email), m.Entries["contact_email"].Target)
		assert.Equal(t, contact.Core(contact.Phone), m.Entries["mobile_number"].Target)
		assert.Equal(t, contact.Core(contact.AgentUID), m.Entries["agent_assigned"].Target)
		assert.Equal(t, []string{"order_id"}, m.UnmappedHeaders)
	})

	tests := []struct {
		name   string
		c      mapping.Classifier
		body   interface{}
		status int
	}{
		{"empty headers", classifier.NewHeuristic(), ProposeMappingRequest{Headers: []string{}}, http.StatusBadRequest},
		{"blank header", classifier.NewHeuristic(), ProposeMappingRequest{Headers: []string{"a", ""}}, http.StatusBadRequest},
		{"duplicate header", classifier.NewHeuristic(), ProposeMappingRequest{Headers: []string{"a", "a"}}, http.StatusBadRequest},
		{"classifier down", errClassifier{errors.New("connection refused")}, ProposeMappingRequest{Headers: []string{"a"}}, http.StatusServiceUnavailable},
		{"classifier malformed", rawClassifier{"not json"}, ProposeMappingRequest{Headers: []string{"a"}}, http.StatusBadGateway},
		{"invalid json", classifier.NewHeuristic(), "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestServer(t, tt.c)
			rec := env.do(t, http.MethodPost, "/api/v1/mappings", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func proposal(t *testing.T) *contact.MappingResult {
	t.Helper()
	m, err := contact.NewMappingResult([]contact.MappingEntry{
		{Header: "Email", Target: contact.Core(contact.Email), Confidence: 0.95},
		{Header: "Org", Target: contact.NewCustom("Organisation"), Confidence: 0.6},
		{Header: "Ref", Target: contact.Unmapped(), Confidence: 0.9},
	}, "")
	require.NoError(t, err)
	return m
}

func TestHandleReconcile(t *testing.T) {
	env := setupTestServer(t, classifier.NewHeuristic())
	original := proposal(t)

	rec := env.do(t, http.MethodPost, "/api/v1/mappings/reconcile", ReconcileRequest{
		Original: original,
		Ops: []reconcile.Op{
			{Kind: reconcile.OpSetTarget, Header: "Ref", Target: "lastName"},
			{Kind: reconcile.OpNewField, Header: "Org", Label: "Company"},
			{Kind: reconcile.OpUnmap, Header: "Email"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session reconcile.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, contact.Core(contact.LastName), session.Working.Entries["Ref"].Target)
	assert.Equal(t, contact.NewCustom("Company"), session.Working.Entries["Org"].Target)
	assert.Equal(t, []string{"Email"}, session.Working.UnmappedHeaders)
	assert.Equal(t, original.Entries, session.Original.Entries)

	// Continue editing from the returned working copy.
	rec = env.do(t, http.MethodPost, "/api/v1/mappings/reconcile", ReconcileRequest{
		Original: session.Original,
		Working:  session.Working,
		Ops:      []reconcile.Op{{Kind: reconcile.OpReset, Header: "Email"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, contact.Core(contact.Email), session.Working.Entries["Email"].Target)
	assert.Equal(t, contact.NewCustom("Company"), session.Working.Entries["Org"].Target)
}

func TestHandleReconcile_Errors(t *testing.T) {
	env := setupTestServer(t, classifier.NewHeuristic())
	tests := []struct {
		name string
		ops  []reconcile.Op
		want string
	}{
		{"unknown header", []reconcile.Op{{Kind: reconcile.OpUnmap, Header: "Nope"}}, "unknown header"},
		{"empty label", []reconcile.Op{{Kind: reconcile.OpNewField, Header: "Org", Label: "  "}}, "empty field label"},
		{"bad op", []reconcile.Op{{Kind: "rename", Header: "Org"}}, "validation failed"},
		{"no ops", nil, "validation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/mappings/reconcile", ReconcileRequest{
				Original: proposal(t),
				Ops:      tt.ops,
			})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestHandleImport(t *testing.T) {
	env := setupTestServer(t, classifier.NewHeuristic())
	ctx := context.Background()
	_, err := env.store.CreateAgent(ctx, contact.Agent{ID: "U1", Email: "agent@company.com"})
	require.NoError(t, err)

	m, err := contact.NewMappingResult([]contact.MappingEntry{
		{Header: "customer_name", Target: contact.NewCustom("CompanyName"), Confidence: 0.8},
		{Header: "contact_email", Target: contact.Core(contact.Email), Confidence: 0.95},
		{Header: "agent_assigned", Target: contact.Core(contact.AgentUID), Confidence: 0.9},
	}, "")
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/imports", ImportRequest{
		Rows: []map[string]string{
			{"customer_name": "Acme", "contact_email": "a@acme.com", "agent_assigned": "agent@company.com"},
			{"customer_name": "Acme", "contact_email": "a@acme.com"},
			{"customer_name": "NoContact"},
		},
		Mapping: m,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result importer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, contact.ImportStats{Total: 3, Created: 1, Merged: 1, Errors: 1}, result.Stats)
	require.Len(t, result.FieldsCreated, 1)
	assert.Equal(t, "CompanyName", result.FieldsCreated[0].Label)
	require.Len(t, result.RowErrors, 1)
	assert.Equal(t, 2, result.RowErrors[0].Row)

	all, err := env.store.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "U1", all[0].Data["agentUid"])
	assert.Equal(t, "Acme", all[0].Data[result.FieldsCreated[0].ID])

	metrics := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), `contactimport_rows_total{outcome="created"} 1`)
}

func TestHandleImport_Errors(t *testing.T) {
	env := setupTestServer(t, classifier.NewHeuristic())
	m, err := contact.NewMappingResult([]contact.MappingEntry{
		{Header: "Email", Target: contact.Core(contact.Email), Confidence: 0.95},
		{Header: "Company", Target: contact.ExistingCustom("missing"), Confidence: 0.9},
	}, "")
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/imports", ImportRequest{Rows: []map[string]string{}, Mapping: m})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown field")

	rec = env.do(t, http.MethodPost, "/api/v1/imports", map[string]interface{}{"rows": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "mapping")
}

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{contact.ErrClassifierUnavailable, http.StatusServiceUnavailable},
		{&mapping.MalformedError{Problems: []string{"x"}}, http.StatusBadGateway},
		{contact.ErrUnknownHeader, http.StatusBadRequest},
		{contact.ErrDuplicateTarget, http.StatusBadRequest},
		{contact.ErrInvalidMapping, http.StatusBadRequest},
		{contact.ErrFieldMaterialization, http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(strings.ReplaceAll(tt.err.Error(), " ", "_"), func(t *testing.T) {
			assert.Equal(t, tt.status, toHTTPError(tt.err).Code)
		})
	}
}
