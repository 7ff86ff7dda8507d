// Package queue dispatches ingestion jobs over NATS so uploads return
// immediately while documents are processed in the background.
package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// SubjectIngest carries document ingestion jobs.
const SubjectIngest = "textsonar.ingest"

// IngestJob asks a worker to process one uploaded document.
type IngestJob struct {
	DocumentID string `json:"documentId"`
	FilePath   string `json:"filePath"`
}

// Queue is a thin typed wrapper over a NATS connection.
type Queue struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// Connect dials the NATS server at url.
func Connect(url string, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return &Queue{nc: nc, logger: logger}, nil
}

// PublishIngest enqueues an ingestion job for the given document.
func (q *Queue) PublishIngest(job IngestJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode ingest job: %w", err)
	}
	if err := q.nc.Publish(SubjectIngest, data); err != nil {
		return fmt.Errorf("publish ingest job: %w", err)
	}
	q.logger.Info("Enqueued ingestion", "document", job.DocumentID)
	return nil
}

// SubscribeIngest registers a queue-group handler for ingestion jobs, so
// multiple workers share the subject without duplicate processing.
// Malformed messages are logged and dropped.
func (q *Queue) SubscribeIngest(handler func(IngestJob)) (*nats.Subscription, error) {
	return q.nc.QueueSubscribe(SubjectIngest, "ingest-workers", func(msg *nats.Msg) {
		var job IngestJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			q.logger.Error("Dropping malformed ingest job", "error", err)
			return
		}
		handler(job)
	})
}

// Close drains in-flight messages and closes the connection.
func (q *Queue) Close() {
	if err := q.nc.Drain(); err != nil {
		q.logger.Warn("NATS drain failed", "error", err)
		q.nc.Close()
	}
}
