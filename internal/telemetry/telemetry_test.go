package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
	"github.com/fyrsmithlabs/contactimport/internal/importer"
	"github.com/fyrsmithlabs/contactimport/internal/logging"
	"github.com/fyrsmithlabs/contactimport/internal/store"
)

func TestConfig_Validate(t *testing.T) {
	enabled := func(mut func(*Config)) *Config {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		mut(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"defaults", NewDefaultConfig(), ""},
		{"enabled defaults", enabled(func(*Config) {}), ""},
		{"disabled skips checks", &Config{Endpoint: ""}, ""},
		{"missing endpoint", enabled(func(c *Config) { c.Endpoint = "" }), "endpoint is required"},
		{"missing service", enabled(func(c *Config) { c.ServiceName = "" }), "service_name is required"},
		{"bad protocol", enabled(func(c *Config) { c.Protocol = "udp" }), "unknown protocol"},
		{"insecure remote", enabled(func(c *Config) { c.Endpoint = "collector.example.com:4317" }), "insecure connections"},
		{"secure remote", enabled(func(c *Config) {
			c.Endpoint = "https://collector.example.com:4318"
			c.Insecure = false
			c.Protocol = ProtocolHTTP
		}), ""},
		{"insecure loopback ip", enabled(func(c *Config) { c.Endpoint = "127.0.0.1:4317" }), ""},
		{"insecure ipv6 loopback", enabled(func(c *Config) { c.Endpoint = "[::1]:4317" }), ""},
		{"sample rate", enabled(func(c *Config) { c.SampleRate = 1.5 }), "sample_rate"},
		{"export interval", enabled(func(c *Config) { c.ExportInterval = 0 }), "export_interval"},
		{"shutdown timeout", enabled(func(c *Config) { c.ShutdownTimeout = 0 }), "shutdown_timeout"},
		{"nil", nil, "config is nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())
	assert.Nil(t, tel.LoggerProvider())

	health := tel.Health()
	assert.True(t, health.Healthy)
	assert.False(t, health.Degraded)

	require.NoError(t, tel.ForceFlush(context.Background()))
	require.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestNew_InvalidConfig(t *testing.T) {
	tel, err := New(context.Background(), &Config{Enabled: true})
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.Meter("test")
		_ = tel.IsEnabled()
		_ = tel.LoggerProvider()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
	})

	health := tel.Health()
	assert.False(t, health.Healthy)
	assert.True(t, health.Degraded)
}

// restoreGlobals puts back the global providers New replaces.
func restoreGlobals(t *testing.T) {
	prevTP := otel.GetTracerProvider()
	prevMP := otel.GetMeterProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func TestNew_ExportsImportSpans(t *testing.T) {
	restoreGlobals(t)
	ctx := context.Background()

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.MetricsEnabled = false
	exp := tracetest.NewInMemoryExporter()

	tel, err := New(ctx, cfg, WithTraceExporter(exp))
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	assert.False(t, tel.Health().Degraded)

	st := store.NewMemoryStore()
	x, err := importer.NewExecutor(st, importer.Config{BatchSize: 1})
	require.NoError(t, err)
	m, err := contact.NewMappingResult([]contact.MappingEntry{
		{Header: "Email", Target: contact.Core(contact.Email), Confidence: 0.9},
	}, "")
	require.NoError(t, err)

	_, err = x.Execute(ctx, []map[string]string{{"Email": "a@example.com"}, {"Email": "b@example.com"}}, m, contact.AgentDirectory{})
	require.NoError(t, err)
	require.NoError(t, tel.ForceFlush(ctx))

	counts := map[string]int{}
	for _, s := range exp.GetSpans() {
		counts[s.Name]++
	}
	assert.Equal(t, 1, counts["import.execute"])
	assert.Equal(t, 2, counts["import.chunk"])

	require.NoError(t, tel.Shutdown(ctx))
}

func TestTestTelemetry_Spans(t *testing.T) {
	tt := NewTestTelemetry()
	tracer := tt.Tracer("test")

	_, span := tracer.Start(context.Background(), "mapping.propose")
	span.SetAttributes(
		attribute.String("classifier", "heuristic"),
		attribute.Int64("headers", 4),
		attribute.Float64("ratio", 0.5),
		attribute.Bool("ok", true),
	)
	span.End()

	tt.AssertSpanExists(t, "mapping.propose")
	tt.AssertSpanAttribute(t, "mapping.propose", "classifier", "heuristic")
	tt.AssertSpanAttribute(t, "mapping.propose", "headers", int64(4))
	tt.AssertSpanAttribute(t, "mapping.propose", "ratio", 0.5)
	tt.AssertSpanAttribute(t, "mapping.propose", "ok", true)
	assert.Nil(t, tt.SpanByName("missing"))
}

func TestTestTelemetry_Metric(t *testing.T) {
	tt := NewTestTelemetry()

	counter, err := tt.Meter("test").Int64Counter("contactimport.test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
	counter.Add(context.Background(), 2)

	m, ok := tt.Metric(t, "contactimport.test.counter")
	require.True(t, ok)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)

	_, ok = tt.Metric(t, "missing")
	assert.False(t, ok)
}

func TestTestTelemetry_InstallGlobal(t *testing.T) {
	tt := NewTestTelemetry()
	tt.InstallGlobal(t)

	_, span := otel.Tracer("global").Start(context.Background(), "via-global")
	span.End()
	tt.AssertSpanExists(t, "via-global")
}

func TestTelemetry_ShutdownWithTimeout(t *testing.T) {
	tt := NewTestTelemetry()
	tt.config.ShutdownTimeout = 100 * time.Millisecond

	_, span := tt.Tracer("test").Start(context.Background(), "s")
	span.End()

	require.NoError(t, tt.Shutdown(context.Background()))
	assert.False(t, tt.Health().Healthy)
}

type logRecorder struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (r *logRecorder) Export(_ context.Context, records []sdklog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.records = append(r.records, rec.Clone())
	}
	return nil
}

func (r *logRecorder) Shutdown(context.Context) error   { return nil }
func (r *logRecorder) ForceFlush(context.Context) error { return nil }

func (r *logRecorder) bodies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Body().AsString())
	}
	return out
}

func TestNew_LoggerProviderBridgesZap(t *testing.T) {
	restoreGlobals(t)
	ctx := context.Background()

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.MetricsEnabled = false
	cfg.LogsEnabled = true
	rec := &logRecorder{}

	tel, err := New(ctx, cfg, WithTraceExporter(tracetest.NewInMemoryExporter()), WithLogExporter(rec))
	require.NoError(t, err)
	require.NotNil(t, tel.LoggerProvider())

	logCfg := logging.NewDefaultConfig()
	logCfg.Output = logging.OutputConfig{OTEL: true}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	require.NoError(t, err)

	logger.Info(ctx, "import completed")
	logger.Debug(ctx, "below configured level")
	require.NoError(t, tel.ForceFlush(ctx))

	assert.Equal(t, []string{"import completed"}, rec.bodies())
	require.NoError(t, tel.Shutdown(ctx))
}

func TestNew_LogsDisabled(t *testing.T) {
	restoreGlobals(t)

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.MetricsEnabled = false

	tel, err := New(context.Background(), cfg, WithTraceExporter(tracetest.NewInMemoryExporter()))
	require.NoError(t, err)
	assert.Nil(t, tel.LoggerProvider())
	require.NoError(t, tel.Shutdown(context.Background()))
}
