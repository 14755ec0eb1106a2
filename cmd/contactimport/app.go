package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contactimport/internal/classifier"
	"github.com/fyrsmithlabs/contactimport/internal/config"
	"github.com/fyrsmithlabs/contactimport/internal/events"
	"github.com/fyrsmithlabs/contactimport/internal/importer"
	"github.com/fyrsmithlabs/contactimport/internal/logging"
	"github.com/fyrsmithlabs/contactimport/internal/mapping"
	"github.com/fyrsmithlabs/contactimport/internal/store"
	"github.com/fyrsmithlabs/contactimport/internal/telemetry"
)

// app holds the components every command shares.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	tel      *telemetry.Telemetry
	store    store.Store
	engine   *mapping.Engine
	executor *importer.Executor
	registry *prometheus.Registry

	closers []func(context.Context) error
}

// newApp loads configuration and wires the stores, classifier and executor.
//
// Initialization order:
//  1. Configuration (file + CONTACTIMPORT_* env)
//  2. Telemetry
//  3. Logger (stderr, plus the OTEL log bridge when log export is on;
//     stdout carries command output and MCP frames)
//  4. Schema store
//  5. Classifier and mapping engine
//  6. Progress events (NATS, optional) and the import executor
func newApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.LoadWithFile(path)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	logger, err := newLogger(cfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, tel: tel, registry: prometheus.NewRegistry()}
	a.closers = append(a.closers, tel.Shutdown)
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("reasons", h.Reasons))
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	storePath, err := config.ExpandHome(cfg.Store.SQLitePath)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	st, err := store.Open(cfg.Store.Driver, storePath)
	if err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}
	a.store = st
	a.closers = append(a.closers, func(context.Context) error { return st.Close() })
	logger.Debug(ctx, "store opened", zap.String("driver", cfg.Store.Driver))

	c, err := classifier.New(classifier.Config{
		Provider:           cfg.Classifier.Provider,
		APIKey:             cfg.Classifier.APIKey.Value(),
		BaseURL:            cfg.Classifier.BaseURL,
		Model:              cfg.Classifier.Model,
		Timeout:            cfg.Classifier.Timeout.Duration(),
		MaxRetries:         cfg.Classifier.MaxRetries,
		RateLimitPerMinute: cfg.Classifier.RateLimitPerMinute,
	}, logger)
	if err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("initializing classifier: %w", err)
	}
	a.engine = mapping.NewEngine(c,
		mapping.WithLogger(logger),
		mapping.WithTimeout(cfg.Classifier.Timeout.Duration()),
	)

	progress := importer.MultiProgress{importer.LoggingProgress{Logger: logger}}
	if cfg.Events.Enabled {
		nc, err := events.Connect(cfg.Events.NATSURL)
		if err != nil {
			_ = a.close(ctx)
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			return nc.Drain()
		})
		progress = append(progress, events.NewNATSPublisher(nc, cfg.Events.SubjectPrefix, logger))
		logger.Info(ctx, "progress events enabled", zap.String("subject_prefix", cfg.Events.SubjectPrefix))
	}

	a.executor, err = importer.NewExecutor(st, importer.Config{
		BatchSize:        cfg.Import.BatchSize,
		Validation:       cfg.Import.Validation,
		DuplicateTargets: cfg.Import.DuplicateTargets,
		Concurrency:      cfg.Import.Concurrency,
	},
		importer.WithLogger(logger),
		importer.WithMetrics(importer.NewMetrics(a.registry)),
		importer.WithProgress(progress),
	)
	if err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("initializing importer: %w", err)
	}
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func newLogger(cfg *config.Config, otelProvider log.LoggerProvider) (*logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	logCfg := logging.NewDefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Logging.Format
	logCfg.Output = logging.OutputConfig{Stderr: true, OTEL: otelProvider != nil}
	logCfg.Fields["version"] = version
	return logging.NewLogger(logCfg, otelProvider)
}

func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.Endpoint = cfg.Telemetry.Endpoint
	tc.Protocol = cfg.Telemetry.Protocol
	if tc.Protocol == "http" {
		tc.Protocol = telemetry.ProtocolHTTP
	}
	tc.Insecure = cfg.Telemetry.Insecure
	tc.SampleRate = cfg.Telemetry.SampleRate
	tc.MetricsEnabled = cfg.Telemetry.Metrics
	tc.LogsEnabled = cfg.Telemetry.Logs
	tc.ExportInterval = cfg.Telemetry.ExportInterval.Duration()
	tc.ServiceVersion = version
	tc.ShutdownTimeout = cfg.Server.ShutdownTimeout.Duration()
	return tc
}
