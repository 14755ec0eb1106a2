// Package logging provides structured logging for contactimport.
//
// Logger wraps zap with context-aware methods. Every call pulls correlation
// fields out of the context:
//   - trace_id / span_id when an OpenTelemetry span is active
//   - import.id for the import run (WithImportID)
//   - request.id for the HTTP request (WithRequestID)
//
// # Usage
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithImportID(ctx, importID)
//	logger.Info(ctx, "chunk processed", zap.Int("created", stats.Created))
//
// # Redaction
//
// The stdout encoder masks credential fields (api_key, authorization, token)
// and contact identity fields (email, phone). Contact values must never be
// logged through other keys; log counts and ids instead.
//
// # Sampling
//
// Debug through Warn are sampled per tick when sampling is enabled. Error and
// above always pass.
package logging
