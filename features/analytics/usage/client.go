// Package usage implements the HTTP client for the usage-log analytics
// service: paged list streams plus one stats call per report type. The
// AITeammate report type rides the "teammate" path segment and its own row
// and stats shapes.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sifthub/exporter/export"
	"github.com/sifthub/exporter/features/analytics"
	"github.com/sifthub/exporter/httpclient"
	"github.com/sifthub/exporter/telemetry"
)

const endpointTemplate = "/api/v1/analytics-service/usage-logs/%s/%s"

type (
	// Client exposes the usage-log service reads used by the usage builders.
	Client interface {
		// Logs streams answer or autofill log pages for the given path segment.
		Logs(segment string, filter, pageFilter *export.Filter) *analytics.Stream[LogEntry]
		// TeammateLogs streams AITeammate conversation pages.
		TeammateLogs(filter, pageFilter *export.Filter) *analytics.Stream[TeammateEntry]
		// AnswerStats fetches the answer summary counters.
		AnswerStats(ctx context.Context, filter, pageFilter *export.Filter) (*AnswerStats, error)
		// AutofillStats fetches the autofill summary counters.
		AutofillStats(ctx context.Context, filter, pageFilter *export.Filter) (*AutofillStats, error)
		// TeammateStats fetches the AITeammate summary counters.
		TeammateStats(ctx context.Context, filter, pageFilter *export.Filter) (*TeammateStats, error)
	}

	// Source is one cited source of a generated answer.
	Source struct {
		URL string `json:"url"`
	}

	// CreatedBy identifies the user who triggered a log entry.
	CreatedBy struct {
		FullName string `json:"fullName"`
	}

	// Meta carries the entry timestamp (epoch milliseconds) and author.
	Meta struct {
		Created   int64     `json:"created"`
		CreatedBy CreatedBy `json:"createdBy"`
	}

	// LogEntry is one answer or autofill usage-log row.
	LogEntry struct {
		Question        string   `json:"question"`
		UserInstruction string   `json:"userInstruction"`
		Answer          string   `json:"answer"`
		Sources         []Source `json:"sources"`
		Status          string   `json:"status"`
		Meta            Meta     `json:"meta"`
		InitiatedFrom   string   `json:"initiatedFrom"`
		TxConsumed      int      `json:"txConsumed"`
	}

	// TeammateEntry is one AITeammate conversation row.
	TeammateEntry struct {
		Title       string  `json:"title"`
		Meta        Meta    `json:"meta"`
		ThreadCount int     `json:"threadCount"`
		AverageTime float64 `json:"averageTime"`
		TxConsumed  int     `json:"txConsumed"`
	}

	// AnswerStats is the answer summary payload.
	AnswerStats struct {
		Total         int `json:"total"`
		Answered      int `json:"answered"`
		NoInformation int `json:"noInformation"`
		TxConsumed    int `json:"txConsumed"`
	}

	// AutofillStats is the autofill summary payload.
	AutofillStats struct {
		TotalRuns              int     `json:"totalRuns"`
		TotalDocuments         int     `json:"totalDocuments"`
		TotalQuestions         int     `json:"totalQuestions"`
		TotalQuestionsAnswered int     `json:"totalQuestionsAnswered"`
		AverageResponseTime    float64 `json:"averageResponseTime"`
	}

	// TeammateStats is the AITeammate summary payload.
	TeammateStats struct {
		ThreadCount int     `json:"threadCount"`
		AverageTime float64 `json:"averageTime"`
		TxConsumed  int     `json:"txConsumed"`
	}

	// Options configures the usage-log client.
	Options struct {
		// HTTP is the shared HTTP client. Required.
		HTTP httpclient.Doer
		// BaseURL is the service origin. Required.
		BaseURL string
		// Logger defaults to the Clue logger.
		Logger telemetry.Logger
	}

	client struct {
		http    httpclient.Doer
		baseURL string
		logger  telemetry.Logger
	}
)

// Path segments accepted by Logs and used internally by the teammate calls.
const (
	SegmentAnswer   = "answer"
	SegmentAutofill = "autofill"
	SegmentTeammate = "teammate"
)

// Segment maps a report type to its endpoint path segment.
func Segment(typ string) (string, error) {
	switch typ {
	case export.TypeAnswer:
		return SegmentAnswer, nil
	case export.TypeAutofill:
		return SegmentAutofill, nil
	case export.TypeAITeammate:
		return SegmentTeammate, nil
	}
	return "", fmt.Errorf("unknown usage-log type %q", typ)
}

// New validates the options and returns a client.
func New(opts Options) (Client, error) {
	if opts.HTTP == nil {
		return nil, errors.New("http client is required")
	}
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewClueLogger()
	}
	return &client{http: opts.HTTP, baseURL: opts.BaseURL, logger: logger}, nil
}

func (c *client) Logs(segment string, filter, pageFilter *export.Filter) *analytics.Stream[LogEntry] {
	endpoint := fmt.Sprintf(endpointTemplate, segment, "list")
	return analytics.NewStream(func(ctx context.Context, page, pageSize int) ([]LogEntry, error) {
		data, err := c.post(ctx, endpoint, analytics.Request{
			Filter: filter, PageFilter: pageFilter, Page: page, PageSize: pageSize,
		})
		if err != nil {
			return nil, err
		}
		var entries []LogEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, export.Upstream("decode usage log page", err)
		}
		return entries, nil
	}, analytics.BatchSize, c.logger)
}

func (c *client) TeammateLogs(filter, pageFilter *export.Filter) *analytics.Stream[TeammateEntry] {
	endpoint := fmt.Sprintf(endpointTemplate, SegmentTeammate, "list")
	return analytics.NewStream(func(ctx context.Context, page, pageSize int) ([]TeammateEntry, error) {
		data, err := c.post(ctx, endpoint, analytics.Request{
			Filter: filter, PageFilter: pageFilter, Page: page, PageSize: pageSize,
		})
		if err != nil {
			return nil, err
		}
		var entries []TeammateEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, export.Upstream("decode teammate log page", err)
		}
		return entries, nil
	}, analytics.BatchSize, c.logger)
}

func (c *client) AnswerStats(ctx context.Context, filter, pageFilter *export.Filter) (*AnswerStats, error) {
	var stats AnswerStats
	if err := c.stats(ctx, SegmentAnswer, filter, pageFilter, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *client) AutofillStats(ctx context.Context, filter, pageFilter *export.Filter) (*AutofillStats, error) {
	var stats AutofillStats
	if err := c.stats(ctx, SegmentAutofill, filter, pageFilter, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *client) TeammateStats(ctx context.Context, filter, pageFilter *export.Filter) (*TeammateStats, error) {
	var stats TeammateStats
	if err := c.stats(ctx, SegmentTeammate, filter, pageFilter, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// stats issues one stats call; the payload never carries page parameters.
func (c *client) stats(ctx context.Context, segment string, filter, pageFilter *export.Filter, out any) error {
	endpoint := fmt.Sprintf(endpointTemplate, segment, "stats")
	data, err := c.post(ctx, endpoint, analytics.Request{Filter: filter, PageFilter: pageFilter})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return export.Upstream("decode usage stats", err)
	}
	return nil
}

func (c *client) post(ctx context.Context, endpoint string, req analytics.Request) (json.RawMessage, error) {
	var env analytics.Envelope
	if err := httpclient.PostJSON(ctx, c.http, c.baseURL+endpoint, nil, req, &env); err != nil {
		return nil, export.Upstream(endpoint, err)
	}
	return env.Unwrap(endpoint)
}
