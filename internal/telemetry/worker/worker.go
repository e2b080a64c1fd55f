// Package worker moves telemetry events from Kafka to Loki.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	pushTimeout    = 10 * time.Second
	readRetryDelay = time.Second
)

// MessageReader is the part of *kafka.Reader the worker uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Pusher delivers one raw event; *loki.Client implements it.
type Pusher interface {
	PushEventJSON(ctx context.Context, raw []byte) error
}

// Worker consumes messages until its context is cancelled.
type Worker struct {
	reader MessageReader
	pusher Pusher
	logger *slog.Logger
}

// New returns a Worker. logger may be nil.
func New(reader MessageReader, pusher Pusher, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{reader: reader, pusher: pusher, logger: logger}
}

// NewKafkaReader returns a consumer-group reader for topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// Run reads and pushes messages one at a time. Read and push failures are logged and skipped;
// Run returns nil once ctx is done. Processed reports how many messages were pushed successfully.
func (w *Worker) Run(ctx context.Context) (processed int, err error) {
	for {
		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return processed, nil
			}
			w.logger.WarnContext(ctx, "worker: kafka read failed", "error", err)
			select {
			case <-ctx.Done():
				return processed, nil
			case <-time.After(readRetryDelay):
			}
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := w.pusher.PushEventJSON(pushCtx, msg.Value); err != nil {
			w.logger.WarnContext(ctx, "worker: loki push failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		} else {
			processed++
		}
		cancel()
	}
}
