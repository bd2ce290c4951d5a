package export

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/sifthub/exporter/telemetry"
)

type (
	// RouterOptions configures the job router.
	RouterOptions struct {
		// Builders resolves (module, type, subType) to a report builder. Required.
		Builders *BuilderRegistry
		// Sinks resolves the delivery mode to a sink. Required.
		Sinks *SinkRegistry
		// Audit records status transitions. Required.
		Audit AuditStore
		// Notifier publishes completion events. Required.
		Notifier Notifier
		// Logger defaults to the Clue logger.
		Logger telemetry.Logger
		// Metrics defaults to the OTEL-backed recorder.
		Metrics telemetry.Metrics
		// Tracer defaults to the OTEL-backed tracer.
		Tracer telemetry.Tracer
		// Clock overrides time.Now for tests.
		Clock func() time.Time
	}

	// Router owns a job for its lifetime: it drives the audit state machine,
	// dispatches to the builder and sink, and emits the completion
	// notification. Every failure path writes exactly one FAILED transition
	// before the error propagates to the consumer.
	Router struct {
		builders *BuilderRegistry
		sinks    *SinkRegistry
		audit    AuditStore
		notifier Notifier
		logger   telemetry.Logger
		metrics  telemetry.Metrics
		tracer   telemetry.Tracer
		clock    func() time.Time
	}
)

// NewRouter validates the options and returns a router.
func NewRouter(opts RouterOptions) (*Router, error) {
	if opts.Builders == nil {
		return nil, errors.New("builder registry is required")
	}
	if opts.Sinks == nil {
		return nil, errors.New("sink registry is required")
	}
	if opts.Audit == nil {
		return nil, errors.New("audit store is required")
	}
	if opts.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewClueLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewClueMetrics()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewClueTracer()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Router{
		builders: opts.Builders,
		sinks:    opts.Sinks,
		audit:    opts.Audit,
		notifier: opts.Notifier,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		clock:    clock,
	}, nil
}

// Handle runs one job pipeline to its terminal state. The returned error is
// nil on success; otherwise it carries the domain kind the consumer uses for
// its acknowledge decision.
func (r *Router) Handle(ctx context.Context, job *Job) error {
	ctx, span := r.tracer.Start(ctx, "export.job")
	defer span.End()

	start := r.clock()
	r.logger.Info(ctx, "processing export job",
		"event_id", job.EventID, "client_id", job.ClientID,
		"module", string(job.Module), "type", job.Type, "sub_type", job.SubType,
		"mode", string(job.Mode))

	builder, ok := r.builders.Lookup(job.Module, job.Type, job.SubType)
	if !ok {
		return r.fail(ctx, job, span, UnsupportedReport(
			"no report builder for module %q type %q subType %q", job.Module, job.Type, job.SubType))
	}
	sink, ok := r.sinks.Lookup(job.Mode)
	if !ok {
		return r.fail(ctx, job, span, UnsupportedReport("no delivery sink for mode %q", job.Mode))
	}

	r.markAudit(ctx, job, StatusProcessing, AuditFields{})

	handle, err := builder.Build(ctx, job)
	if err != nil {
		return r.fail(ctx, job, span, err)
	}

	delivery, err := sink.Deliver(ctx, DeliveryInput{Handle: handle}, builder.Filename(job), job)
	if err != nil {
		return r.fail(ctx, job, span, err)
	}
	if !delivery.Success {
		return r.fail(ctx, job, span, StorageWrite("delivery reported failure", nil))
	}

	total := int(r.clock().Sub(start).Seconds())
	r.markAudit(ctx, job, StatusSuccess, AuditFields{
		TotalTime: &total,
		Bucket:    delivery.Bucket,
		URL:       delivery.URL,
	})
	r.metrics.IncCounter("exporter.jobs.succeeded", 1)
	r.metrics.RecordTimer("exporter.job.duration", r.clock().Sub(start), "module", string(job.Module))

	// Only the download sink produces a URL-bearing success event; email mode
	// stays silent on success until real email delivery lands.
	if job.Mode == ModeDownload {
		r.notify(ctx, job, StatusSuccess, delivery.URL)
	}

	span.SetStatus(codes.Ok, "")
	r.logger.Info(ctx, "export job completed", "event_id", job.EventID, "total_time_s", total)
	return nil
}

func (r *Router) fail(ctx context.Context, job *Job, span telemetry.Span, err error) error {
	r.logger.Error(ctx, "export job failed",
		"event_id", job.EventID, "client_id", job.ClientID, "kind", string(KindOf(err)), "err", err.Error())
	r.markAudit(ctx, job, StatusFailed, AuditFields{})
	r.notify(ctx, job, StatusFailed, "")
	r.metrics.IncCounter("exporter.jobs.failed", 1, "kind", string(KindOf(err)))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// markAudit performs one status transition. A write error or a zero-row match
// is logged but never fails the job: the row may have been reaped, and the
// producer owns its creation.
func (r *Router) markAudit(ctx context.Context, job *Job, status Status, fields AuditFields) {
	ok, err := r.audit.Update(ctx, job.EventID, job.ClientID, status, fields)
	if err != nil {
		r.logger.Error(ctx, "audit update failed",
			"event_id", job.EventID, "status", string(status), "err", err.Error())
		return
	}
	if !ok {
		r.logger.Warn(ctx, "no audit row matched",
			"event_id", job.EventID, "client_id", job.ClientID, "status", string(status))
	}
}

// notify publishes a completion event. Notifier errors never fail the job.
func (r *Router) notify(ctx context.Context, job *Job, status Status, url string) {
	if err := r.notifier.PublishExport(ctx, job, status, url); err != nil {
		r.logger.Error(ctx, "notification publish failed",
			"event_id", job.EventID, "status", string(status), "err", err.Error())
		return
	}
	r.metrics.IncCounter("exporter.notifications.published", 1, "status", string(status))
}
