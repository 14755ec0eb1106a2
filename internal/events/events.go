// Package events publishes import progress to NATS.
//
// Subjects:
//
//	{prefix}.imports.{import_id}.progress   after every chunk
//	{prefix}.imports.{import_id}.completed  once the run finishes
//
// Payloads are JSON. Publishing is best effort: failures are logged and never
// affect the import.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contactimport/internal/contact"
	"github.com/fyrsmithlabs/contactimport/internal/importer"
	"github.com/fyrsmithlabs/contactimport/internal/logging"
)

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// ProgressEvent is published after each chunk.
type ProgressEvent struct {
	ImportID  string              `json:"importId"`
	Chunk     int                 `json:"chunk"`
	Chunks    int                 `json:"chunks"`
	Processed int                 `json:"processed"`
	Total     int                 `json:"total"`
	Percent   int                 `json:"percent"`
	Stats     contact.ImportStats `json:"stats"`
	Timestamp time.Time           `json:"timestamp"`
}

// CompletedEvent is published when an import finishes.
type CompletedEvent struct {
	ImportID      string              `json:"importId"`
	Stats         contact.ImportStats `json:"stats"`
	FieldsCreated int                 `json:"fieldsCreated"`
	RowErrors     int                 `json:"rowErrors"`
	Timestamp     time.Time           `json:"timestamp"`
}

// NATSPublisher implements importer.ProgressReporter.
type NATSPublisher struct {
	conn   Conn
	prefix string
	logger *logging.Logger
	now    func() time.Time
}

// NewNATSPublisher publishes on conn under prefix.
func NewNATSPublisher(conn Conn, prefix string, logger *logging.Logger) *NATSPublisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	if prefix == "" {
		prefix = "contactimport"
	}
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.Named("events"),
		now:    time.Now,
	}
}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("contactimport"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// ProgressSubject returns the progress subject for importID.
func (p *NATSPublisher) ProgressSubject(importID string) string {
	return fmt.Sprintf("%s.imports.%s.progress", p.prefix, importID)
}

// CompletedSubject returns the completion subject for importID.
func (p *NATSPublisher) CompletedSubject(importID string) string {
	return fmt.Sprintf("%s.imports.%s.completed", p.prefix, importID)
}

// ChunkDone implements importer.ProgressReporter.
func (p *NATSPublisher) ChunkDone(ctx context.Context, pr importer.Progress) {
	percent := 100
	if pr.Total > 0 {
		percent = pr.Processed * 100 / pr.Total
	}
	p.publish(ctx, p.ProgressSubject(pr.ImportID), ProgressEvent{
		ImportID:  pr.ImportID,
		Chunk:     pr.Chunk,
		Chunks:    pr.Chunks,
		Processed: pr.Processed,
		Total:     pr.Total,
		Percent:   percent,
		Stats:     pr.Stats,
		Timestamp: p.now(),
	})
}

// Finished implements importer.ProgressReporter.
func (p *NATSPublisher) Finished(ctx context.Context, r *importer.Result) {
	p.publish(ctx, p.CompletedSubject(r.ImportID), CompletedEvent{
		ImportID:      r.ImportID,
		Stats:         r.Stats,
		FieldsCreated: len(r.FieldsCreated),
		RowErrors:     r.Stats.Errors,
		Timestamp:     p.now(),
	})
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn(ctx, "marshal event failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn(ctx, "publish event failed", zap.String("subject", subject), zap.Error(err))
	}
}

var _ importer.ProgressReporter = (*NATSPublisher)(nil)
