package usage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sifthub/exporter/export"
	"github.com/sifthub/exporter/features/analytics"
	"github.com/sifthub/exporter/telemetry"
)

type usageServer struct {
	mu      sync.Mutex
	entries []LogEntry
	paths   []string
}

func (s *usageServer) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/analytics-service/usage-logs/answer/list", func(w http.ResponseWriter, r *http.Request) {
		req := s.record(t, r)
		start := (req.Page - 1) * req.PageSize
		end := start + req.PageSize
		if start > len(s.entries) {
			start = len(s.entries)
		}
		if end > len(s.entries) {
			end = len(s.entries)
		}
		writeEnvelope(t, w, s.entries[start:end])
	})
	mux.HandleFunc("/api/v1/analytics-service/usage-logs/teammate/list", func(w http.ResponseWriter, r *http.Request) {
		s.record(t, r)
		writeEnvelope(t, w, []TeammateEntry{
			{Title: "Security review", ThreadCount: 4, AverageTime: 2.5, TxConsumed: 120,
				Meta: Meta{Created: 1746297000000, CreatedBy: CreatedBy{FullName: "Dana Ops"}}},
		})
	})
	mux.HandleFunc("/api/v1/analytics-service/usage-logs/answer/stats", func(w http.ResponseWriter, r *http.Request) {
		s.record(t, r)
		writeEnvelope(t, w, AnswerStats{Total: 250, Answered: 200, NoInformation: 50, TxConsumed: 9000})
	})
	mux.HandleFunc("/api/v1/analytics-service/usage-logs/autofill/stats", func(w http.ResponseWriter, r *http.Request) {
		s.record(t, r)
		writeEnvelope(t, w, AutofillStats{TotalRuns: 12, TotalDocuments: 5, TotalQuestions: 300, TotalQuestionsAnswered: 280, AverageResponseTime: 1.75})
	})
	mux.HandleFunc("/api/v1/analytics-service/usage-logs/teammate/stats", func(w http.ResponseWriter, r *http.Request) {
		s.record(t, r)
		writeEnvelope(t, w, TeammateStats{ThreadCount: 9, AverageTime: 3.25, TxConsumed: 400})
	})
	return mux
}

func (s *usageServer) record(t *testing.T, r *http.Request) analytics.Request {
	t.Helper()
	var req analytics.Request
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	s.mu.Lock()
	s.paths = append(s.paths, r.URL.Path)
	s.mu.Unlock()
	return req
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"status": 200,
		"data":   data,
	}))
}

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Options{
		HTTP:    srv.Client(),
		BaseURL: srv.URL,
		Logger:  telemetry.NewNopLogger(),
	})
	require.NoError(t, err)
	return c
}

func TestSegment(t *testing.T) {
	t.Parallel()

	type testCase struct {
		typ     string
		want    string
		wantErr bool
	}
	cases := []testCase{
		{typ: export.TypeAnswer, want: SegmentAnswer},
		{typ: export.TypeAutofill, want: SegmentAutofill},
		{typ: export.TypeAITeammate, want: SegmentTeammate},
		{typ: "projectCollaboration", wantErr: true},
		{typ: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.typ, func(t *testing.T) {
			t.Parallel()

			got, err := Segment(tc.typ)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLogsStreamsBareArrayPages(t *testing.T) {
	t.Parallel()

	fake := &usageServer{entries: make([]LogEntry, 150)}
	for i := range fake.entries {
		fake.entries[i] = LogEntry{
			Question: "Q",
			Status:   "ANSWERED",
			Sources:  []Source{{URL: "https://docs.example.com"}},
			Meta:     Meta{Created: 1746297000000, CreatedBy: CreatedBy{FullName: "Dana Ops"}},
		}
	}
	c := newTestClient(t, fake.handler(t))

	stream := c.Logs(SegmentAnswer, nil, nil)
	var got []LogEntry
	for stream.Next(context.Background()) {
		got = append(got, stream.Page()...)
	}
	require.NoError(t, stream.Err())
	assert.Len(t, got, 150)
	assert.Equal(t, "https://docs.example.com", got[0].Sources[0].URL)
	assert.Len(t, fake.paths, 2)
}

func TestTeammateLogs(t *testing.T) {
	t.Parallel()

	fake := &usageServer{}
	c := newTestClient(t, fake.handler(t))

	stream := c.TeammateLogs(nil, nil)
	require.True(t, stream.Next(context.Background()))
	entries := stream.Page()
	require.Len(t, entries, 1)
	assert.Equal(t, "Security review", entries[0].Title)
	assert.Equal(t, 4, entries[0].ThreadCount)
	assert.Equal(t, "Dana Ops", entries[0].Meta.CreatedBy.FullName)
	assert.False(t, stream.Next(context.Background()))
	require.NoError(t, stream.Err())
	assert.Equal(t, []string{"/api/v1/analytics-service/usage-logs/teammate/list"}, fake.paths)
}

func TestStats(t *testing.T) {
	t.Parallel()

	fake := &usageServer{}
	c := newTestClient(t, fake.handler(t))
	ctx := context.Background()

	answer, err := c.AnswerStats(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 250, answer.Total)
	assert.Equal(t, 200, answer.Answered)
	assert.Equal(t, 50, answer.NoInformation)
	assert.Equal(t, 9000, answer.TxConsumed)

	autofill, err := c.AutofillStats(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, autofill.TotalRuns)
	assert.Equal(t, 1.75, autofill.AverageResponseTime)

	teammate, err := c.TeammateStats(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 9, teammate.ThreadCount)
	assert.Equal(t, 3.25, teammate.AverageTime)
}

func TestStatsErrorPropagates(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":503,"message":"unavailable"}`))
	})
	c := newTestClient(t, handler)

	_, err := c.AnswerStats(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, export.KindTransientUpstream, export.KindOf(err))
}
