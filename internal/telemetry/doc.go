// Package telemetry sets up OpenTelemetry tracing and metrics export.
//
// Spans (mapping.propose, import.execute, import.chunk) and OTEL metrics
// (HTTP requests, MCP tool calls, classifier proposals) are recorded against
// the global providers. New installs OTLP-backed providers when telemetry is
// enabled; otherwise the global no-op providers stay in place.
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
// Telemetry failures never stop the process. A provider that cannot be built
// leaves the instance degraded and the corresponding signal disabled.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
