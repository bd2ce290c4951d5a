// Package sqs implements the queue consumer that drives the export pipeline.
// It long-polls the queue in batches, unwraps notification envelopes,
// dispatches each job on its own goroutine and applies the acknowledgement
// policy: poison and permanently-unroutable messages are deleted, transient
// failures are left for redrive.
package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"goa.design/clue/log"

	"github.com/sifthub/exporter/export"
	sqsclient "github.com/sifthub/exporter/features/queue/sqs/clients/sqs"
	"github.com/sifthub/exporter/telemetry"
)

// receiveBackoff is how long the poll loop sleeps after a receive error
// before trying again.
const receiveBackoff = 5 * time.Second

type (
	// Handler processes one decoded export job.
	Handler interface {
		Handle(ctx context.Context, job *export.Job) error
	}

	// BatchItemFailure identifies one message that must stay on the queue.
	BatchItemFailure struct {
		ItemIdentifier string `json:"itemIdentifier"`
	}

	// BatchResult reports the partial-failure outcome of one receive batch.
	BatchResult struct {
		BatchItemFailures []BatchItemFailure `json:"batchItemFailures"`
	}

	// Options configures the consumer.
	Options struct {
		// Client is the queue client. Required.
		Client sqsclient.Client
		// Handler routes decoded jobs. Required.
		Handler Handler
		// Logger defaults to the Clue logger.
		Logger telemetry.Logger
		// Metrics defaults to the OTEL-backed recorder.
		Metrics telemetry.Metrics
	}

	// Consumer owns the poll loop.
	Consumer struct {
		client  sqsclient.Client
		handler Handler
		logger  telemetry.Logger
		metrics telemetry.Metrics
	}

	// envelope is the notification wrapper some producers put around the job.
	// A non-empty Message means the job JSON is nested one level down.
	envelope struct {
		Message           string `json:"Message"`
		MessageAttributes map[string]struct {
			Value string `json:"Value"`
		} `json:"MessageAttributes"`
	}

	// eventTypeProbe extracts the event type when the body is the bare job.
	eventTypeProbe struct {
		EventType string `json:"event_type"`
	}
)

// NewConsumer validates the options and returns a consumer.
func NewConsumer(opts Options) (*Consumer, error) {
	if opts.Client == nil {
		return nil, errors.New("queue client is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("handler is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewClueLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewClueMetrics()
	}
	return &Consumer{
		client:  opts.Client,
		handler: opts.Handler,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Run polls the queue until ctx is cancelled. In-flight messages from the
// final batch are drained before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info(ctx, "queue consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info(ctx, "queue consumer stopped")
			return ctx.Err()
		default:
		}

		msgs, err := c.client.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info(ctx, "queue consumer stopped")
				return ctx.Err()
			}
			c.logger.Error(ctx, "receive failed", "err", err.Error())
			c.metrics.IncCounter("exporter.queue.receive_errors", 1)
			select {
			case <-time.After(receiveBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		result := c.ProcessBatch(ctx, msgs)
		if n := len(result.BatchItemFailures); n > 0 {
			c.logger.Warn(ctx, "batch completed with failures",
				"received", len(msgs), "failed", n)
		}
	}
}

// ProcessBatch dispatches every message of one receive batch on its own
// goroutine and reports the messages that must stay queued for redrive.
func (c *Consumer) ProcessBatch(ctx context.Context, msgs []sqsclient.Message) BatchResult {
	batchID := uuid.NewString()
	ctx = log.With(ctx, log.KV{K: "batch_id", V: batchID})
	c.logger.Debug(ctx, "processing batch", "messages", len(msgs))
	c.metrics.IncCounter("exporter.queue.messages.received", float64(len(msgs)))

	var (
		mu       sync.Mutex
		failures []BatchItemFailure
		wg       sync.WaitGroup
	)
	for _, msg := range msgs {
		wg.Add(1)
		go func(msg sqsclient.Message) {
			defer wg.Done()
			if retry := c.processMessage(ctx, msg); retry {
				mu.Lock()
				failures = append(failures, BatchItemFailure{ItemIdentifier: msg.ID})
				mu.Unlock()
			}
		}(msg)
	}
	wg.Wait()
	return BatchResult{BatchItemFailures: failures}
}

// processMessage runs one message through decode, route and acknowledge.
// It reports whether the message must be left on the queue for redrive.
func (c *Consumer) processMessage(ctx context.Context, msg sqsclient.Message) bool {
	ctx = log.With(ctx, log.KV{K: "message_id", V: msg.ID})

	job, eventType, err := decodeJob(msg)
	if err != nil {
		// Poison: the message can never succeed, so take it off the queue.
		c.logger.Warn(ctx, "dropping poison message", "err", err.Error())
		c.metrics.IncCounter("exporter.queue.messages.poison", 1)
		c.delete(ctx, msg)
		return false
	}
	ctx = log.With(ctx, log.KV{K: "event_id", V: job.EventID})
	c.logger.Info(ctx, "message decoded", "event_type", eventType)

	jobCtx, cancel := context.WithTimeout(ctx, time.Duration(c.client.VisibilityTimeout())*time.Second)
	defer cancel()

	err = c.handler.Handle(jobCtx, job)
	if err == nil {
		c.metrics.IncCounter("exporter.queue.messages.succeeded", 1)
		c.delete(ctx, msg)
		return false
	}
	if export.Acknowledgeable(err) {
		// Permanently unroutable: redriving would fail identically.
		c.logger.Warn(ctx, "acknowledging failed message",
			"kind", string(export.KindOf(err)), "err", err.Error())
		c.metrics.IncCounter("exporter.queue.messages.acked_failed", 1)
		c.delete(ctx, msg)
		return false
	}
	c.logger.Error(ctx, "message left for redrive",
		"kind", string(export.KindOf(err)), "err", err.Error())
	c.metrics.IncCounter("exporter.queue.messages.redriven", 1)
	return true
}

func (c *Consumer) delete(ctx context.Context, msg sqsclient.Message) {
	if err := c.client.Delete(ctx, msg.ReceiptHandle); err != nil {
		// The message resurfaces after the visibility timeout and is
		// reprocessed; the pipeline is idempotent over audit and storage.
		c.logger.Error(ctx, "delete failed", "err", err.Error())
		c.metrics.IncCounter("exporter.queue.delete_errors", 1)
	}
}

// decodeJob unwraps the optional notification envelope and validates the job.
func decodeJob(msg sqsclient.Message) (*export.Job, string, error) {
	body := msg.Body
	eventType := msg.Attributes["event_type"]

	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, "", export.InvalidMessage("undecodable message body: %v", err)
	}
	if env.Message != "" {
		body = env.Message
		if attr, ok := env.MessageAttributes["event_type"]; ok {
			eventType = attr.Value
		}
	} else {
		var probe eventTypeProbe
		if err := json.Unmarshal([]byte(msg.Body), &probe); err == nil && probe.EventType != "" {
			eventType = probe.EventType
		}
	}

	var job export.Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return nil, "", export.InvalidMessage("undecodable job payload: %v", err)
	}
	if err := job.Validate(); err != nil {
		return nil, "", err
	}
	return &job, eventType, nil
}
