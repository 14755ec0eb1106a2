package mapping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
	"github.com/fyrsmithlabs/contactimport/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/contactimport/internal/mapping"

// Engine proposes mappings through a Classifier.
type Engine struct {
	classifier Classifier
	timeout    time.Duration
	logger     *logging.Logger
	tracer     trace.Tracer

	proposals metric.Int64Counter
	coerced   metric.Int64Counter
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds each classifier call. Expiry surfaces as
// contact.ErrClassifierUnavailable. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine. A nil classifier is allowed; every proposal
// then fails with contact.ErrClassifierUnavailable.
func NewEngine(c Classifier, opts ...Option) *Engine {
	e := &Engine{
		classifier: c,
		logger:     logging.NewNop(),
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("mapping")
	e.initMetrics()
	return e
}

func (e *Engine) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error

	e.proposals, err = meter.Int64Counter(
		"contactimport.mapping.proposals_total",
		metric.WithDescription("Total number of mapping proposals by outcome"),
		metric.WithUnit("{proposal}"),
	)
	if err != nil {
		e.logger.Warn(context.Background(), "failed to create proposals counter", zap.Error(err))
	}

	e.coerced, err = meter.Int64Counter(
		"contactimport.mapping.coerced_total",
		metric.WithDescription("Headers forced to unmapped for low confidence"),
		metric.WithUnit("{header}"),
	)
	if err != nil {
		e.logger.Warn(context.Background(), "failed to create coerced counter", zap.Error(err))
	}
}

// ClassifierName returns the configured classifier's name, or "none".
func (e *Engine) ClassifierName() string {
	if e.classifier == nil {
		return "none"
	}
	return e.classifier.Name()
}

// ProposeMapping maps headers onto the core attributes and known fields.
//
// The result has exactly one entry per header. Entries below the low
// confidence band are unmapped and UnmappedHeaders is recomputed from the
// entries rather than copied from the classifier. An empty header list
// returns an empty result without calling the classifier.
//
// Errors: contact.ErrInvalidHeaders for blank or duplicate headers,
// contact.ErrClassifierUnavailable when the classifier is missing, fails, or
// misses the deadline, and *MalformedError for unusable output.
func (e *Engine) ProposeMapping(ctx context.Context, headers []string, known []contact.CustomFieldDef) (*contact.MappingResult, error) {
	ctx, span := e.tracer.Start(ctx, "mapping.propose")
	defer span.End()
	span.SetAttributes(
		attribute.Int("headers", len(headers)),
		attribute.Int("known_fields", len(known)),
		attribute.String("classifier", e.ClassifierName()),
	)

	result, err := e.propose(ctx, headers, known)
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, contact.ErrClassifierUnavailable):
		outcome = "unavailable"
	case errors.Is(err, contact.ErrMalformedResponse):
		outcome = "malformed"
	default:
		outcome = "invalid"
	}
	if e.proposals != nil {
		e.proposals.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn(ctx, "mapping proposal failed", zap.String("outcome", outcome), zap.Error(err))
		return nil, err
	}

	e.logger.Info(ctx, "mapping proposed",
		zap.String("summary", result.Summary()),
		zap.Int("headers", len(result.Headers)),
		zap.Int("unmapped", len(result.UnmappedHeaders)),
	)
	return result, nil
}

func (e *Engine) propose(ctx context.Context, headers []string, known []contact.CustomFieldDef) (*contact.MappingResult, error) {
	if problems := ValidateHeaders(headers); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %v", contact.ErrInvalidHeaders, problems)
	}
	if len(headers) == 0 {
		return contact.NewMappingResult(nil, "")
	}
	if e.classifier == nil {
		return nil, fmt.Errorf("%w: no classifier configured", contact.ErrClassifierUnavailable)
	}

	req, err := BuildRequest(headers, known)
	if err != nil {
		return nil, err
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := e.classifier.Classify(callCtx, req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, classifyError(callCtx, err)
	}
	e.logger.Debug(ctx, "classifier answered",
		zap.String("classifier", e.classifier.Name()),
		zap.Duration("elapsed", elapsed),
		zap.Int("response_bytes", len(raw)),
	)

	result, report, err := ParseResponse(raw, headers, known)
	if err != nil {
		return nil, err
	}
	if n := len(report.Coerced); n > 0 {
		if e.coerced != nil {
			e.coerced.Add(ctx, int64(n))
		}
		e.logger.Debug(ctx, "low-confidence headers unmapped", zap.Strings("headers", report.Coerced))
	}
	if report.UnmappedMismatch(result) {
		e.logger.Debug(ctx, "classifier unmappedHeaders disagreed with entries; using entries",
			zap.Int("reported", len(report.ReportedUnmapped)),
			zap.Int("recomputed", len(result.UnmappedHeaders)),
		)
	}
	return result, nil
}

// classifyError folds classifier failures into ErrClassifierUnavailable.
// Malformed output reported by the classifier itself passes through.
func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, contact.ErrMalformedResponse) || errors.Is(err, contact.ErrClassifierUnavailable) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", contact.ErrClassifierUnavailable, ctxErr)
	}
	return fmt.Errorf("%w: %w", contact.ErrClassifierUnavailable, err)
}
