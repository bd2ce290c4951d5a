package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sifthub/exporter/export"
	sqsclient "github.com/sifthub/exporter/features/queue/sqs/clients/sqs"
	"github.com/sifthub/exporter/telemetry"
)

type (
	fakeQueue struct {
		mu      sync.Mutex
		deleted []string
	}

	fakeHandler struct {
		mu   sync.Mutex
		jobs []*export.Job
		err  error
	}
)

func (q *fakeQueue) Receive(context.Context) ([]sqsclient.Message, error) { return nil, nil }

func (q *fakeQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, receiptHandle)
	return nil
}

func (q *fakeQueue) VisibilityTimeout() int32 { return 300 }

func (q *fakeQueue) deletedHandles() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deleted...)
}

func (h *fakeHandler) Handle(_ context.Context, job *export.Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs = append(h.jobs, job)
	return h.err
}

func (h *fakeHandler) handled() []*export.Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*export.Job(nil), h.jobs...)
}

func newTestConsumer(t *testing.T, queue *fakeQueue, handler *fakeHandler) *Consumer {
	t.Helper()
	c, err := NewConsumer(Options{
		Client:  queue,
		Handler: handler,
		Logger:  telemetry.NewNopLogger(),
		Metrics: telemetry.NewNopMetrics(),
	})
	require.NoError(t, err)
	return c
}

func jobBody(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(export.Job{
		EventID:  "evt-1",
		Mode:     export.ModeDownload,
		Module:   export.ModuleInsights,
		Type:     export.TypeResponseGeneration,
		SubType:  export.SubTypeFrequentAskedQuestions,
		UserID:   7,
		ClientID: 42,
	})
	require.NoError(t, err)
	return string(raw)
}

func TestProcessBatchSuccessDeletes(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	handler := &fakeHandler{}
	c := newTestConsumer(t, queue, handler)

	result := c.ProcessBatch(context.Background(), []sqsclient.Message{
		{ID: "m1", ReceiptHandle: "rh1", Body: jobBody(t)},
	})

	assert.Empty(t, result.BatchItemFailures)
	assert.Equal(t, []string{"rh1"}, queue.deletedHandles())
	require.Len(t, handler.handled(), 1)
	assert.Equal(t, "evt-1", handler.handled()[0].EventID)
}

func TestProcessBatchTransientFailureRedrives(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	handler := &fakeHandler{err: export.Upstream("fetch", errors.New("503"))}
	c := newTestConsumer(t, queue, handler)

	result := c.ProcessBatch(context.Background(), []sqsclient.Message{
		{ID: "m1", ReceiptHandle: "rh1", Body: jobBody(t)},
	})

	require.Len(t, result.BatchItemFailures, 1)
	assert.Equal(t, "m1", result.BatchItemFailures[0].ItemIdentifier)
	assert.Empty(t, queue.deletedHandles())
}

func TestProcessBatchAcknowledgeableFailureDeletes(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	handler := &fakeHandler{err: export.UnsupportedReport("no builder")}
	c := newTestConsumer(t, queue, handler)

	result := c.ProcessBatch(context.Background(), []sqsclient.Message{
		{ID: "m1", ReceiptHandle: "rh1", Body: jobBody(t)},
	})

	assert.Empty(t, result.BatchItemFailures)
	assert.Equal(t, []string{"rh1"}, queue.deletedHandles())
}

func TestProcessBatchPoisonMessageDeletedWithoutDispatch(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	handler := &fakeHandler{}
	c := newTestConsumer(t, queue, handler)

	result := c.ProcessBatch(context.Background(), []sqsclient.Message{
		{ID: "m1", ReceiptHandle: "rh1", Body: "not json at all"},
		{ID: "m2", ReceiptHandle: "rh2", Body: `{"eventId":""}`},
	})

	assert.Empty(t, result.BatchItemFailures)
	assert.ElementsMatch(t, []string{"rh1", "rh2"}, queue.deletedHandles())
	assert.Empty(t, handler.handled())
}

func TestProcessBatchMixedOutcomes(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	handler := &fakeHandler{err: export.Upstream("fetch", errors.New("503"))}
	c := newTestConsumer(t, queue, handler)

	result := c.ProcessBatch(context.Background(), []sqsclient.Message{
		{ID: "m1", ReceiptHandle: "rh1", Body: jobBody(t)},
		{ID: "m2", ReceiptHandle: "rh2", Body: "oops"},
		{ID: "m3", ReceiptHandle: "rh3", Body: jobBody(t)},
	})

	ids := make([]string, len(result.BatchItemFailures))
	for i, f := range result.BatchItemFailures {
		ids[i] = f.ItemIdentifier
	}
	assert.ElementsMatch(t, []string{"m1", "m3"}, ids)
	assert.Equal(t, []string{"rh2"}, queue.deletedHandles())
}

func TestBatchResultWireFormat(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(BatchResult{BatchItemFailures: []BatchItemFailure{{ItemIdentifier: "m1"}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"batchItemFailures":[{"itemIdentifier":"m1"}]}`, string(raw))
}

func TestDecodeJobBareBody(t *testing.T) {
	t.Parallel()

	body := `{"eventId":"evt-2","mode":"download","module":"usageLogs","type":"answer","user_id":1,"clientId":2,"event_type":"REPORT_EXPORT"}`
	job, eventType, err := decodeJob(sqsclient.Message{ID: "m1", Body: body})
	require.NoError(t, err)
	assert.Equal(t, "evt-2", job.EventID)
	assert.Equal(t, "REPORT_EXPORT", eventType)
}

func TestDecodeJobNotificationEnvelope(t *testing.T) {
	t.Parallel()

	inner := jobBody(t)
	env := map[string]any{
		"Message": inner,
		"MessageAttributes": map[string]any{
			"event_type": map[string]any{"Value": "REPORT_EXPORT"},
		},
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	job, eventType, err := decodeJob(sqsclient.Message{ID: "m1", Body: string(raw)})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", job.EventID)
	assert.Equal(t, "REPORT_EXPORT", eventType)
}

func TestDecodeJobEnvelopeWithBadInnerPayload(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(map[string]any{"Message": "not json"})
	require.NoError(t, err)

	_, _, err = decodeJob(sqsclient.Message{ID: "m1", Body: string(raw)})
	require.Error(t, err)
	assert.Equal(t, export.KindInvalidMessage, export.KindOf(err))
}

func TestDecodeJobAttributeFallback(t *testing.T) {
	t.Parallel()

	job, eventType, err := decodeJob(sqsclient.Message{
		ID:         "m1",
		Body:       jobBody(t),
		Attributes: map[string]string{"event_type": "REPORT_EXPORT"},
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", job.EventID)
	assert.Equal(t, "REPORT_EXPORT", eventType)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	c := newTestConsumer(t, queue, &fakeHandler{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
