package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
	"github.com/fyrsmithlabs/contactimport/internal/logging"
	"github.com/fyrsmithlabs/contactimport/internal/store"
)

func entry(header string, target contact.TargetRef) contact.MappingEntry {
	return contact.MappingEntry{Header: header, Target: target, Confidence: 0.95}
}

func newMapping(t *testing.T, entries ...contact.MappingEntry) *contact.MappingResult {
	t.Helper()
	m, err := contact.NewMappingResult(entries, "")
	require.NoError(t, err)
	return m
}

func basicMapping(t *testing.T) *contact.MappingResult {
	return newMapping(t,
		entry("First", contact.Core(contact.FirstName)),
		entry("Last", contact.Core(contact.LastName)),
		entry("Email", contact.Core(contact.Email)),
		entry("Phone", contact.Core(contact.Phone)),
	)
}

func newExecutor(t *testing.T, st Store, cfg Config, opts ...Option) *Executor {
	t.Helper()
	x, err := NewExecutor(st, cfg, opts...)
	require.NoError(t, err)
	return x
}

func TestExecute_DisjointIdentitiesAllCreated(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	x := newExecutor(t, st, DefaultConfig())

	rows := make([]map[string]string, 0, 25)
	for i := 0; i < 25; i++ {
		rows = append(rows, map[string]string{
			"First": fmt.Sprintf("Name%d", i),
			"Email": fmt.Sprintf("user%d@example.com", i),
		})
	}

	res, err := x.Execute(ctx, rows, basicMapping(t), contact.AgentDirectory{})
	require.NoError(t, err)
	assert.Equal(t, contact.ImportStats{Total: 25, Created: 25}, res.Stats)
	assert.NotEmpty(t, res.ImportID)
	assert.Empty(t, res.RowErrors)

	all, err := st.ListContacts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 25)
}

func TestExecute_MergeByEmailKeepsUnrelatedAttributes(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	existing, err := st.CreateContact(ctx, map[string]string{
		"email":     "ann@example.com",
		"firstName": "Ann",
		"lastName":  "Old",
		"custom-1":  "keep me",
	})
	require.NoError(t, err)

	x := newExecutor(t, st, DefaultConfig())
	res, err := x.Execute(ctx, []map[string]string{
		{"Email": "ann@example.com", "Last": "New", "Phone": "555-0100"},
	}, basicMapping(t), contact.AgentDirectory{})
	require.NoError(t, err)
	assert.Equal(t, contact.ImportStats{Total: 1, Merged: 1}, res.Stats)

	got, err := st.GetContact(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"email":     "ann@example.com",
		"firstName": "Ann",
		"lastName":  "New",
		"phone":     "555-0100",
		"custom-1":  "keep me",
	}, got.Data)

	all, err := st.ListContacts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestExecute_DedupeFallsBackToPhone(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	existing, err := st.CreateContact(ctx, map[string]string{"phone": "555-0100"})
	require.NoError(t, err)

	x := newExecutor(t, st, DefaultConfig())
	res, err := x.Execute(ctx, []map[string]string{
		{"Email": "new@example.com", "Phone": "555-0100"},
	}, basicMapping(t), contact.AgentDirectory{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Merged)

	got, err := st.GetContact(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Data["email"])
}

func TestExecute_DedupeIsExactAndFirstMatchWins(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	first, err := st.CreateContact(ctx, map[string]string{"email": "dup@example.com"})
	require.NoError(t, err)
	second, err := st.CreateContact(ctx, map[string]string{"email": "dup@example.com"})
	require.NoError(t, err)

	x := newExecutor(t, st, DefaultConfig())
	res, err := x.Execute(ctx, []map[string]string{
		{"Email": "dup@example.com", "First": "Merged"},
		{"Email": "DUP@example.com"},
	}, basicMapping(t), contact.AgentDirectory{})
	require.NoError(t, err)
	assert.Equal(t, contact.ImportStats{Total: 2, Created: 1, Merged: 1}, res.Stats)

	got, err := st.GetContact(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Merged", got.Data["firstName"])
	got, err = st.GetContact(ctx, second.ID)
	require.NoError(t, err)
	assert.NotContains(t, got.Data, "firstName")
}

func TestExecute_RowRejection(t *testing.T) {
	tests := []struct {
		name       string
		validation string
		row        map[string]string
		wantErrors int
		wantReason string
	}{
		{
			name:       "reachable without email or phone",
			validation: ValidationReachable,
			row:        map[string]string{"First": "Ann", "Last": "Lee"},
			wantErrors: 1,
			wantReason: "no email or phone",
		},
		{
			name:       "reachable with phone only",
			validation: ValidationReachable,
			row:        map[string]string{"Phone": "555"},
		},
		{
			name:       "strict missing names",
			validation: ValidationStrict,
			row:        map[string]string{"Email": "a@x.com", "Phone": "555"},
			wantErrors: 1,
			wantReason: "missing firstName, lastName",
		},
		{
			name:       "strict complete",
			validation: ValidationStrict,
			row:        map[string]string{"First": "A", "Last": "B", "Email": "a@x.com", "Phone": "555"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := store.NewMemoryStore()
			cfg := DefaultConfig()
			cfg.Validation = tt.validation
			x := newExecutor(t, st, cfg)

			res, err := x.Execute(ctx, []map[string]string{tt.row}, basicMapping(t), contact.AgentDirectory{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantErrors, res.Stats.Errors)

			all, err := st.ListContacts(ctx)
			require.NoError(t, err)
			if tt.wantErrors > 0 {
				assert.Empty(t, all)
				require.Len(t, res.RowErrors, 1)
				assert.Equal(t, 0, res.RowErrors[0].Row)
				assert.Contains(t, res.RowErrors[0].Reason, tt.wantReason)
			} else {
				assert.Len(t, all, 1)
				assert.Equal(t, 1, res.Stats.Created)
			}
		})
	}
}

func TestExecute_NewFieldCreation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	_, err := st.CreateAgent(ctx, contact.Agent{ID: "U1", Name: "Agent", Email: "agent@company.com"})
	require.NoError(t, err)

	m := newMapping(t,
		entry("customer_name", contact.NewCustom("CompanyName")),
		entry("contact_email", contact.Core(contact.Email)),
		entry("mobile_number", contact.Core(contact.Phone)),
		entry("agent_assigned", contact.Core(contact.AgentUID)),
	)
	rows := []map[string]string{
		{"customer_name": "Acme", "contact_email": "a@acme.com", "mobile_number": "555-1", "agent_assigned": "agent@company.com"},
		{"customer_name": "Globex", "contact_email": "b@globex.com", "mobile_number": "555-2", "agent_assigned": "agent@company.com"},
	}

	x := newExecutor(t, st, DefaultConfig())
	res, err := x.Execute(ctx, rows, m, nil)
	require.NoError(t, err)
	assert.Equal(t, contact.ImportStats{Total: 2, Created: 2}, res.Stats)

	fields, err := st.ListFields(ctx)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "CompanyName", fields[0].Label)
	assert.Equal(t, contact.FieldTypeText, fields[0].Type)
	assert.False(t, fields[0].Core)
	assert.Equal(t, fields, res.FieldsCreated)

	// The resolved mapping points at the created field; the input is untouched.
	assert.Equal(t, contact.ExistingCustom(fields[0].ID), res.Mapping.Entries["customer_name"].Target)
	assert.Equal(t, contact.TargetNewCustom, m.Entries["customer_name"].Target.Kind)

	all, err := st.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Acme", all[0].Data[fields[0].ID])
	assert.Equal(t, "Globex", all[1].Data[fields[0].ID])
	assert.Equal(t, "U1", all[0].Data["agentUid"])
}

func TestExecute_IdenticalNewLabelsCollapse(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newMapping(t,
		entry("Email", contact.Core(contact.Email)),
		entry("company", contact.NewCustom("Company")),
		entry("employer", contact.NewCustom(" company ")),
	)

	x := newExecutor(t, st, DefaultConfig())
	res, err := x.Execute(ctx, []map[string]string{
		{"Email": "a@x.com", "company": "Acme", "employer": "Initech"},
	}, m, contact.AgentDirectory{})
	require.NoError(t, err)

	fields, err := st.ListFields(ctx)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Len(t, res.FieldsCreated, 1)

	all, err := st.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Initech", all[0].Data[fields[0].ID], "later header wins")
}

func TestExecute_NewLabelReusesExistingField(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	company, err := st.CreateField(ctx, contact.CustomFieldDef{Label: "Company", Type: contact.FieldTypeText})
	require.NoError(t, err)

	m := newMapping(t,
		entry("Email", contact.Core(contact.Email)),
		entry("org", contact.NewCustom("COMPANY")),
	)
	x := newExecutor(t, st, DefaultConfig())
	res, err := x.Execute(ctx, []map[string]string{{"Email": "a@x.com", "org": "Acme"}}, m, contact.AgentDirectory{})
	require.NoError(t, err)
	assert.Empty(t, res.FieldsCreated)

	fields, err := st.ListFields(ctx)
	require.NoError(t, err)
	assert.Len(t, fields, 1)

	all, err := st.ListContacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme", all[0].Data[company.ID])
}

func TestExecute_DuplicateTargetPolicy(t *testing.T) {
	m := func(t *testing.T) *contact.MappingResult {
		return newMapping(t,
			entry("Email", contact.Core(contact.Email)),
			entry("Work Email", contact.Core(contact.Email)),
			entry("Notes", contact.NewCustom("Notes")),
		)
	}
	row := map[string]string{"Email": "home@x.com", "Work Email": "work@x.com"}

	t.Run("last wins", func(t *testing.T) {
		ctx := context.Background()
		st := store.NewMemoryStore()
		x := newExecutor(t, st, DefaultConfig())
		_, err := x.Execute(ctx, []map[string]string{row}, m(t), contact.AgentDirectory{})
		require.NoError(t, err)

		all, err := st.ListContacts(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "work@x.com", all[0].Data["email"])
	})

	t.Run("reject", func(t *testing.T) {
		ctx := context.Background()
		st := store.NewMemoryStore()
		cfg := DefaultConfig()
		cfg.DuplicateTargets = DuplicateReject
		x := newExecutor(t, st, cfg)

		res, err := x.Execute(ctx, []map[string]string{row}, m(t), contact.AgentDirectory{})
		require.ErrorIs(t, err, contact.ErrDuplicateTarget)
		assert.Nil(t, res)
		assert.Contains(t, err.Error(), "email <- Email, Work Email")

		fields, err := st.ListFields(ctx)
		require.NoError(t, err)
		assert.Empty(t, fields, "no field is created before the policy check")
	})
}

func TestExecute_AgentResolution(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newMapping(t,
		entry("Email", contact.Core(contact.Email)),
		entry("agent_assigned", contact.Core(contact.AgentUID)),
	)
	dir := contact.AgentDirectory{"agent@company.com": "U1"}

	x := newExecutor(t, st, DefaultConfig())
	res, err := x.Execute(ctx, []map[string]string{
		{"Email": "a@x.com", "agent_assigned": "  agent@company.com "},
		{"Email": "b@x.com", "agent_assigned": "stranger@company.com"},
	}, m, dir)
	require.NoError(t, err)
	assert.Equal(t, contact.ImportStats{Total: 2, Created: 2}, res.Stats)

	all, err := st.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "U1", all[0].Data["agentUid"])
	assert.NotContains(t, all[1].Data, "agentUid")
}

func TestExecute_PlaceholdersNeverPopulate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	x := newExecutor(t, st, DefaultConfig())

	res, err := x.Execute(ctx, []map[string]string{
		{"Email": "a@x.com", "First": "-", "Last": "null", "Phone": "undefined"},
		{"Email": "b@x.com", "First": "", "Last": "NULL", "Phone": "  "},
	}, basicMapping(t), contact.AgentDirectory{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.Created)

	all, err := st.ListContacts(ctx)
	require.NoError(t, err)
	for _, rec := range all {
		assert.Len(t, rec.Data, 1)
		assert.Contains(t, rec.Data, "email")
	}
}

func TestExecute_EmptyRowsAreSkipped(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newMapping(t,
		entry("Email", contact.Core(contact.Email)),
		entry("Order ID", contact.Unmapped()),
	)
	x := newExecutor(t, st, DefaultConfig())

	res, err := x.Execute(ctx, []map[string]string{
		{"Email": "a@x.com", "Order ID": "1"},
		{"Email": "-", "Order ID": "2"},
		{"Unknown Column": "x"},
	}, m, contact.AgentDirectory{})
	require.NoError(t, err)
	assert.Equal(t, contact.ImportStats{Total: 3, Created: 1, Skipped: 2}, res.Stats)
	assert.Equal(t, res.Stats.Total, res.Stats.Processed())
}

func TestExecute_UnknownExistingField(t *testing.T) {
	x := newExecutor(t, store.NewMemoryStore(), DefaultConfig())
	m := newMapping(t,
		entry("Email", contact.Core(contact.Email)),
		entry("Company", contact.ExistingCustom("missing-id")),
	)
	res, err := x.Execute(context.Background(), nil, m, contact.AgentDirectory{})
	require.ErrorIs(t, err, contact.ErrInvalidTarget)
	assert.Nil(t, res)
}

func TestExecute_InvalidMapping(t *testing.T) {
	x := newExecutor(t, store.NewMemoryStore(), DefaultConfig())

	_, err := x.Execute(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, contact.ErrInvalidMapping)

	bad := &contact.MappingResult{
		Headers: []string{"A"},
		Entries: map[string]contact.MappingEntry{"A": {Header: "A", Confidence: 1.5}},
	}
	_, err = x.Execute(context.Background(), nil, bad, nil)
	assert.ErrorIs(t, err, contact.ErrInvalidMapping)
}

// faultyStore fails selected operations.
type faultyStore struct {
	*store.MemoryStore
	failCreateField bool
	failEmail       string
}

func (f *faultyStore) CreateField(ctx context.Context, def contact.CustomFieldDef) (contact.CustomFieldDef, error) {
	if f.failCreateField {
		return contact.CustomFieldDef{}, errors.New("disk full")
	}
	return f.MemoryStore.CreateField(ctx, def)
}

func (f *faultyStore) CreateContact(ctx context.Context, data map[string]string) (contact.ContactRecord, error) {
	if f.failEmail != "" && data["email"] == f.failEmail {
		return contact.ContactRecord{}, errors.New("write conflict")
	}
	return f.MemoryStore.CreateContact(ctx, data)
}

func TestExecute_FieldMaterializationFailureIsFatal(t *testing.T) {
	st := &faultyStore{MemoryStore: store.NewMemoryStore(), failCreateField: true}
	m := newMapping(t,
		entry("Email", contact.Core(contact.Email)),
		entry("Company", contact.NewCustom("Company")),
	)
	x := newExecutor(t, st, DefaultConfig())

	res, err := x.Execute(context.Background(), []map[string]string{{"Email": "a@x.com"}}, m, contact.AgentDirectory{})
	require.ErrorIs(t, err, contact.ErrFieldMaterialization)
	assert.Nil(t, res)

	all, err := st.ListContacts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestExecute_RowFailureDoesNotAbort(t *testing.T) {
	st := &faultyStore{MemoryStore: store.NewMemoryStore(), failEmail: "bad@x.com"}
	x := newExecutor(t, st, DefaultConfig())

	res, err := x.Execute(context.Background(), []map[string]string{
		{"Email": "a@x.com"},
		{"Email": "bad@x.com"},
		{"Email": "c@x.com"},
	}, basicMapping(t), contact.AgentDirectory{})
	require.NoError(t, err)
	assert.Equal(t, contact.ImportStats{Total: 3, Created: 2, Errors: 1}, res.Stats)
	require.Len(t, res.RowErrors, 1)
	assert.Equal(t, 1, res.RowErrors[0].Row)
	assert.Contains(t, res.RowErrors[0].Reason, "write conflict")
}

func TestExecute_RowErrorsCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRowErrors = 3
	x := newExecutor(t, store.NewMemoryStore(), cfg)

	rows := make([]map[string]string, 10)
	for i := range rows {
		rows[i] = map[string]string{"First": "nobody"}
	}
	res, err := x.Execute(context.Background(), rows, basicMapping(t), contact.AgentDirectory{})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Stats.Errors)
	assert.Len(t, res.RowErrors, 3)
}

type recordingProgress struct {
	mu       sync.Mutex
	chunks   []Progress
	finished *Result
	onChunk  func(Progress)
}

func (r *recordingProgress) ChunkDone(_ context.Context, p Progress) {
	r.mu.Lock()
	r.chunks = append(r.chunks, p)
	r.mu.Unlock()
	if r.onChunk != nil {
		r.onChunk(p)
	}
}

func (r *recordingProgress) Finished(_ context.Context, res *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = res
}

func emailRows(n int) []map[string]string {
	rows := make([]map[string]string, n)
	for i := range rows {
		rows[i] = map[string]string{"Email": fmt.Sprintf("u%d@x.com", i)}
	}
	return rows
}

func TestExecute_ChunkedProgress(t *testing.T) {
	progress := &recordingProgress{}
	cfg := DefaultConfig()
	x := newExecutor(t, store.NewMemoryStore(), cfg, WithProgress(progress))

	res, err := x.Execute(context.Background(), emailRows(250), basicMapping(t), contact.AgentDirectory{})
	require.NoError(t, err)
	assert.Equal(t, 250, res.Stats.Created)

	require.Len(t, progress.chunks, 3)
	assert.Equal(t, []int{100, 200, 250}, []int{
		progress.chunks[0].Processed, progress.chunks[1].Processed, progress.chunks[2].Processed,
	})
	for i, p := range progress.chunks {
		assert.Equal(t, i+1, p.Chunk)
		assert.Equal(t, 3, p.Chunks)
		assert.Equal(t, 250, p.Total)
		assert.Equal(t, res.ImportID, p.ImportID)
	}
	assert.Same(t, res, progress.finished)
}

func TestExecute_BatchSizeDoesNotChangeOutcome(t *testing.T) {
	rows := emailRows(30)
	rows = append(rows, emailRows(10)...)

	var stats []contact.ImportStats
	for _, size := range []int{1, 7, 100} {
		cfg := DefaultConfig()
		cfg.BatchSize = size
		x := newExecutor(t, store.NewMemoryStore(), cfg)
		res, err := x.Execute(context.Background(), rows, basicMapping(t), contact.AgentDirectory{})
		require.NoError(t, err)
		stats = append(stats, res.Stats)
	}
	for _, s := range stats {
		assert.Equal(t, contact.ImportStats{Total: 40, Created: 30, Merged: 10}, s)
	}
}

func TestExecute_ConcurrentChunkSerializesSameIdentity(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	cfg := DefaultConfig()
	cfg.Concurrency = 8
	x := newExecutor(t, st, cfg)

	var rows []map[string]string
	for i := 0; i < 20; i++ {
		rows = append(rows,
			map[string]string{"Email": "same@x.com", "First": fmt.Sprintf("v%d", i)},
			map[string]string{"Email": fmt.Sprintf("other%d@x.com", i)},
		)
	}
	// Linked through the phone of an earlier row.
	rows = append(rows, map[string]string{"Phone": "555", "Email": "same@x.com"})
	rows = append(rows, map[string]string{"Phone": "555"})

	res, err := x.Execute(ctx, rows, basicMapping(t), contact.AgentDirectory{})
	require.NoError(t, err)
	assert.Equal(t, 21, res.Stats.Created)
	assert.Equal(t, 21, res.Stats.Merged)

	found, err := st.FindContacts(ctx, "email", "same@x.com")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "v19", found[0].Data["firstName"], "same-identity rows apply in row order")
	assert.Equal(t, "555", found[0].Data["phone"])
}

func TestExecute_CancelBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	progress := &recordingProgress{onChunk: func(p Progress) {
		if p.Chunk == 1 {
			cancel()
		}
	}}
	cfg := DefaultConfig()
	cfg.BatchSize = 10
	x := newExecutor(t, store.NewMemoryStore(), cfg, WithProgress(progress))

	res, err := x.Execute(ctx, emailRows(35), basicMapping(t), contact.AgentDirectory{})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 35, res.Stats.Total)
	assert.Equal(t, 10, res.Stats.Created)
	assert.Len(t, progress.chunks, 1)
	assert.Nil(t, progress.finished)
}

func TestExecute_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	st := &faultyStore{MemoryStore: store.NewMemoryStore(), failEmail: "bad@x.com"}
	m := newMapping(t,
		entry("Email", contact.Core(contact.Email)),
		entry("Company", contact.NewCustom("Company")),
	)
	x := newExecutor(t, st, DefaultConfig(), WithMetrics(metrics))

	_, err := x.Execute(context.Background(), []map[string]string{
		{"Email": "a@x.com", "Company": "Acme"},
		{"Email": "a@x.com"},
		{"Email": "bad@x.com"},
		{"Company": "-"},
	}, m, contact.AgentDirectory{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Rows.WithLabelValues(outcomeCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Rows.WithLabelValues(outcomeMerged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Rows.WithLabelValues(outcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Rows.WithLabelValues(outcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FieldsCreated))

	st.failCreateField = true
	m2 := newMapping(t, entry("Other", contact.NewCustom("Other")))
	_, err = x.Execute(context.Background(), nil, m2, contact.AgentDirectory{})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Runs.WithLabelValues("failed")))
}

func TestExecute_LogsCarryNoContactValues(t *testing.T) {
	logger := logging.NewTestLogger()
	x := newExecutor(t, store.NewMemoryStore(), DefaultConfig(),
		WithLogger(logger.Logger),
		WithProgress(LoggingProgress{Logger: logger.Logger}),
	)

	res, err := x.Execute(context.Background(), []map[string]string{
		{"Email": "secret.person@example.com", "Phone": "555-867-5309"},
		{"First": "Nameless"},
	}, basicMapping(t), contact.AgentDirectory{})
	require.NoError(t, err)

	logger.AssertLogged(t, zapcore.InfoLevel, "import started")
	logger.AssertLogged(t, zapcore.InfoLevel, "import finished")
	logger.AssertField(t, "import finished", "import.id", res.ImportID)
	logger.AssertField(t, "import finished", "created", int64(1))
	logger.AssertNoValue(t, "secret.person@example.com")
	logger.AssertNoValue(t, "555-867-5309")
	logger.AssertNoValue(t, "Nameless")
}

func TestNewExecutor_Validation(t *testing.T) {
	_, err := NewExecutor(nil, DefaultConfig())
	assert.Error(t, err)

	_, err = NewExecutor(store.NewMemoryStore(), Config{Validation: "loose"})
	assert.Error(t, err)

	_, err = NewExecutor(store.NewMemoryStore(), Config{DuplicateTargets: "merge"})
	assert.Error(t, err)

	x, err := NewExecutor(store.NewMemoryStore(), Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), x.cfg)
}
