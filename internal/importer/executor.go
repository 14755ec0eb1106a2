package importer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
	"github.com/fyrsmithlabs/contactimport/internal/logging"
	"github.com/fyrsmithlabs/contactimport/internal/store"
)

const instrumentationName = "github.com/fyrsmithlabs/contactimport/internal/importer"

const (
	outcomeCreated = "created"
	outcomeMerged  = "merged"
	outcomeError   = "error"
	outcomeSkipped = "skipped"
)

// Store is the part of the schema store an import needs.
type Store interface {
	store.FieldStore
	store.ContactStore
	store.AgentStore
}

// RowError explains why one row was counted as an error.
type RowError struct {
	// Row is the zero-based index into the input rows.
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Result is the outcome of one import run.
type Result struct {
	ImportID string              `json:"importId"`
	Stats    contact.ImportStats `json:"stats"`
	// RowErrors holds at most Config.MaxRowErrors entries, in row order.
	RowErrors     []RowError               `json:"rowErrors,omitempty"`
	FieldsCreated []contact.CustomFieldDef `json:"fieldsCreated,omitempty"`
	// Mapping is the mapping rows were transformed with, with every new
	// field resolved to its id.
	Mapping *contact.MappingResult `json:"mapping"`
}

// Executor runs imports against a Store.
type Executor struct {
	store    Store
	cfg      Config
	logger   *logging.Logger
	tracer   trace.Tracer
	metrics  *Metrics
	progress ProgressReporter
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l *logging.Logger) Option {
	return func(x *Executor) {
		if l != nil {
			x.logger = l
		}
	}
}

// WithMetrics records Prometheus metrics for every run.
func WithMetrics(m *Metrics) Option {
	return func(x *Executor) { x.metrics = m }
}

// WithProgress sets the progress reporter.
func WithProgress(p ProgressReporter) Option {
	return func(x *Executor) {
		if p != nil {
			x.progress = p
		}
	}
}

// NewExecutor creates an executor. Zero config values take their defaults.
func NewExecutor(st Store, cfg Config, opts ...Option) (*Executor, error) {
	if st == nil {
		return nil, errors.New("importer: store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	x := &Executor{
		store:    st,
		cfg:      cfg.withDefaults(),
		logger:   logging.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
		progress: NopProgress{},
	}
	for _, opt := range opts {
		opt(x)
	}
	x.logger = x.logger.Named("importer")
	return x, nil
}

// Execute imports rows using mapping. Rows are keyed by source header.
// When agents is nil the directory is built from the store's agents.
//
// The input mapping is not modified. Fatal errors (invalid mapping, unknown
// field ids, duplicate targets under the reject policy, field creation
// failures) return a nil Result. Cancellation between chunks returns the
// partial Result along with the context error.
func (x *Executor) Execute(ctx context.Context, rows []map[string]string, mapping *contact.MappingResult, agents contact.AgentDirectory) (*Result, error) {
	importID := uuid.NewString()
	ctx = logging.WithImportID(ctx, importID)
	ctx, span := x.tracer.Start(ctx, "import.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("import.id", importID),
		attribute.Int("rows", len(rows)),
		attribute.Int("batch_size", x.cfg.BatchSize),
	)

	start := time.Now()
	res, err := x.execute(ctx, importID, rows, mapping, agents)

	outcome := "ok"
	fields := 0
	if res != nil {
		fields = len(res.FieldsCreated)
	}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "cancelled"
	default:
		outcome = "failed"
	}
	x.metrics.observeRun(outcome, time.Since(start).Seconds(), fields)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		x.logger.Error(ctx, "import failed", zap.String("outcome", outcome), zap.Error(err))
		return res, err
	}
	span.SetAttributes(
		attribute.Int("created", res.Stats.Created),
		attribute.Int("merged", res.Stats.Merged),
		attribute.Int("errors", res.Stats.Errors),
		attribute.Int("skipped", res.Stats.Skipped),
	)
	return res, nil
}

func (x *Executor) execute(ctx context.Context, importID string, rows []map[string]string, mapping *contact.MappingResult, agents contact.AgentDirectory) (*Result, error) {
	if mapping == nil {
		return nil, fmt.Errorf("%w: mapping is required", contact.ErrInvalidMapping)
	}
	if err := mapping.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", contact.ErrInvalidMapping, err)
	}

	fields, err := x.store.ListFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list fields: %w", contact.ErrFieldMaterialization, err)
	}
	resolved, err := resolveExisting(mapping, fields)
	if err != nil {
		return nil, err
	}
	if err := checkDuplicates(x.cfg.DuplicateTargets, resolved); err != nil {
		return nil, err
	}
	created, err := x.materialize(ctx, resolved)
	if err != nil {
		return nil, err
	}

	if agents == nil {
		list, err := x.store.ListAgents(ctx)
		if err != nil {
			return nil, fmt.Errorf("load agent directory: %w", err)
		}
		agents = contact.NewAgentDirectory(list)
	}

	res := &Result{
		ImportID:      importID,
		Stats:         contact.ImportStats{Total: len(rows)},
		FieldsCreated: created,
		Mapping:       resolved,
	}
	x.logger.Info(ctx, "import started",
		zap.Int("rows", len(rows)),
		zap.String("mapping", resolved.Summary()),
		zap.Int("fields_created", len(created)),
		zap.Int("concurrency", x.cfg.Concurrency),
	)

	tr := newTransformer(resolved, agents)
	size := x.cfg.BatchSize
	chunks := (len(rows) + size - 1) / size
	var agentMisses int
	for c := 0; c < chunks; c++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		lo := c * size
		hi := min(lo+size, len(rows))

		stats, rowErrs, misses := x.processChunk(ctx, tr, rows[lo:hi], lo)
		res.Stats.Add(stats)
		agentMisses += misses
		for _, re := range rowErrs {
			if len(res.RowErrors) >= x.cfg.MaxRowErrors {
				break
			}
			res.RowErrors = append(res.RowErrors, re)
		}
		x.metrics.observeStats(stats.Created, stats.Merged, stats.Errors, stats.Skipped)

		x.progress.ChunkDone(ctx, Progress{
			ImportID:  importID,
			Chunk:     c + 1,
			Chunks:    chunks,
			Processed: res.Stats.Processed(),
			Total:     res.Stats.Total,
			Stats:     res.Stats,
		})
	}
	// A cancellation inside the last chunk leaves rows unprocessed.
	if err := ctx.Err(); err != nil && res.Stats.Processed() < res.Stats.Total {
		return res, err
	}

	if agentMisses > 0 {
		x.logger.Debug(ctx, "agent values without directory entry dropped", zap.Int("count", agentMisses))
	}
	x.progress.Finished(ctx, res)
	return res, nil
}

type rowOutcome struct {
	kind string
	err  error
}

// processChunk transforms, validates and writes one chunk. base is the
// index of the chunk's first row. Rows not attempted because ctx ended get
// no outcome.
func (x *Executor) processChunk(ctx context.Context, tr *transformer, rows []map[string]string, base int) (contact.ImportStats, []RowError, int) {
	ctx, span := x.tracer.Start(ctx, "import.chunk")
	defer span.End()
	span.SetAttributes(attribute.Int("first_row", base), attribute.Int("rows", len(rows)))

	outcomes := make([]rowOutcome, len(rows))
	pending := make([]*contact.Attributes, len(rows))
	misses := 0
	for i, row := range rows {
		rr := tr.transform(row)
		misses += rr.agentMisses
		if rr.attrs.Len() == 0 {
			outcomes[i] = rowOutcome{kind: outcomeSkipped}
			continue
		}
		if err := validate(x.cfg.Validation, &rr.attrs); err != nil {
			outcomes[i] = rowOutcome{kind: outcomeError, err: err}
			continue
		}
		attrs := rr.attrs
		pending[i] = &attrs
	}

	if x.cfg.Concurrency <= 1 {
		for i, attrs := range pending {
			if attrs == nil {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			outcomes[i] = x.writeRow(ctx, attrs)
		}
	} else {
		var written atomic.Int64
		g := new(errgroup.Group)
		g.SetLimit(x.cfg.Concurrency)
		for _, group := range identityGroups(pending) {
			g.Go(func() error {
				for _, i := range group {
					if pending[i] == nil {
						continue
					}
					if ctx.Err() != nil {
						return nil
					}
					outcomes[i] = x.writeRow(ctx, pending[i])
					written.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()
		span.SetAttributes(attribute.Int64("written", written.Load()))
	}

	var (
		stats contact.ImportStats
		errs  []RowError
	)
	for i, o := range outcomes {
		switch o.kind {
		case outcomeCreated:
			stats.Created++
		case outcomeMerged:
			stats.Merged++
		case outcomeSkipped:
			stats.Skipped++
		case outcomeError:
			stats.Errors++
			errs = append(errs, RowError{Row: base + i, Reason: o.err.Error()})
			x.logger.Debug(ctx, "row failed", zap.Int("row", base+i), zap.Error(o.err))
		}
	}
	return stats, errs, misses
}

// writeRow deduplicates and then creates or merges.
func (x *Executor) writeRow(ctx context.Context, attrs *contact.Attributes) rowOutcome {
	existing, err := x.findExisting(ctx, attrs)
	if err != nil {
		return rowOutcome{kind: outcomeError, err: err}
	}
	doc := attrs.Document()
	if existing == nil {
		if _, err := x.store.CreateContact(ctx, doc); err != nil {
			return rowOutcome{kind: outcomeError, err: fmt.Errorf("create contact: %w", err)}
		}
		return rowOutcome{kind: outcomeCreated}
	}
	if _, err := x.store.MergeContact(ctx, existing.ID, doc); err != nil {
		return rowOutcome{kind: outcomeError, err: fmt.Errorf("merge contact %s: %w", existing.ID, err)}
	}
	return rowOutcome{kind: outcomeMerged}
}

// findExisting looks up by exact email, then by exact phone. The first
// match wins.
func (x *Executor) findExisting(ctx context.Context, attrs *contact.Attributes) (*contact.ContactRecord, error) {
	for _, attr := range []contact.CoreAttribute{contact.Email, contact.Phone} {
		v, ok := attrs.Core.Get(attr)
		if !ok {
			continue
		}
		found, err := x.store.FindContacts(ctx, string(attr), v)
		if err != nil {
			return nil, fmt.Errorf("find by %s: %w", attr, err)
		}
		if len(found) > 0 {
			return &found[0], nil
		}
	}
	return nil, nil
}
