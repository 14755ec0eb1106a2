package importer

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
	"github.com/fyrsmithlabs/contactimport/internal/logging"
)

// Progress describes an import after one chunk.
type Progress struct {
	ImportID  string              `json:"importId"`
	Chunk     int                 `json:"chunk"`
	Chunks    int                 `json:"chunks"`
	Processed int                 `json:"processed"`
	Total     int                 `json:"total"`
	Stats     contact.ImportStats `json:"stats"`
}

// ProgressReporter observes a running import. Implementations must not
// block for long; the next chunk waits for ChunkDone to return.
type ProgressReporter interface {
	ChunkDone(ctx context.Context, p Progress)
	Finished(ctx context.Context, r *Result)
}

// NopProgress discards progress.
type NopProgress struct{}

// ChunkDone implements ProgressReporter.
func (NopProgress) ChunkDone(context.Context, Progress) {}

// Finished implements ProgressReporter.
func (NopProgress) Finished(context.Context, *Result) {}

// LoggingProgress writes progress to a logger at debug and the completion
// summary at info.
type LoggingProgress struct {
	Logger *logging.Logger
}

// ChunkDone implements ProgressReporter.
func (l LoggingProgress) ChunkDone(ctx context.Context, p Progress) {
	l.Logger.Debug(ctx, "import chunk done",
		zap.Int("chunk", p.Chunk),
		zap.Int("chunks", p.Chunks),
		zap.Int("processed", p.Processed),
		zap.Int("total", p.Total),
	)
}

// Finished implements ProgressReporter.
func (l LoggingProgress) Finished(ctx context.Context, r *Result) {
	l.Logger.Info(ctx, "import finished",
		zap.Int("total", r.Stats.Total),
		zap.Int("created", r.Stats.Created),
		zap.Int("merged", r.Stats.Merged),
		zap.Int("errors", r.Stats.Errors),
		zap.Int("skipped", r.Stats.Skipped),
	)
}

// MultiProgress fans out to several reporters in order.
type MultiProgress []ProgressReporter

// ChunkDone implements ProgressReporter.
func (m MultiProgress) ChunkDone(ctx context.Context, p Progress) {
	for _, r := range m {
		r.ChunkDone(ctx, p)
	}
}

// Finished implements ProgressReporter.
func (m MultiProgress) Finished(ctx context.Context, res *Result) {
	for _, r := range m {
		r.Finished(ctx, res)
	}
}
