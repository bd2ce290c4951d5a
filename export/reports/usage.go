package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sifthub/exporter/export"
	"github.com/sifthub/exporter/features/analytics/usage"
	"github.com/sifthub/exporter/telemetry"
)

type (
	// UsageOptions configures a usage-log report builder.
	UsageOptions struct {
		// Usage is the analytics client. Required.
		Usage usage.Client
		// Store is the workbook store. Required.
		Store export.WorkbookStore
		// Type is the report type: answer, autofill or AITeammate. Required.
		Type string
		// Logger defaults to the Clue logger.
		Logger telemetry.Logger
		// Now overrides the filename clock for tests.
		Now func() time.Time
	}

	// UsageBuilder assembles a usage-log report: one Logs sheet streamed from
	// the list endpoint and one Summary sheet filled from the stats endpoint.
	UsageBuilder struct {
		usage  usage.Client
		store  export.WorkbookStore
		typ    string
		logger telemetry.Logger
		now    func() time.Time
	}
)

// NewUsageBuilder validates the options and returns a builder for one report
// type.
func NewUsageBuilder(opts UsageOptions) (*UsageBuilder, error) {
	if opts.Usage == nil {
		return nil, errors.New("usage client is required")
	}
	if opts.Store == nil {
		return nil, errors.New("workbook store is required")
	}
	if _, err := usage.Segment(opts.Type); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewClueLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &UsageBuilder{
		usage:  opts.Usage,
		store:  opts.Store,
		typ:    opts.Type,
		logger: logger,
		now:    now,
	}, nil
}

// Filename implements export.ReportBuilder.
func (b *UsageBuilder) Filename(job *export.Job) string {
	return UsageFilename(b.typ, DateRange(job.PageFilter), b.now())
}

// Build implements export.ReportBuilder.
func (b *UsageBuilder) Build(ctx context.Context, job *export.Job) (export.Handle, error) {
	dateRange := DateRange(job.PageFilter)
	key := artifactKey(job, UsageFilename(b.typ, dateRange, b.now()))

	if err := b.uploadSkeleton(ctx, key, dateRange); err != nil {
		return export.Handle{}, err
	}
	b.logger.Info(ctx, "workbook skeleton uploaded", "key", key, "type", b.typ)

	if err := b.appendLogs(ctx, job, key); err != nil {
		return export.Handle{}, err
	}
	if err := b.writeSummary(ctx, job, key); err != nil {
		return export.Handle{}, err
	}

	url, err := b.store.PresignGet(ctx, key, 0)
	if err != nil {
		return export.Handle{}, err
	}
	return export.Handle{Bucket: b.store.Bucket(), Key: key, PresignedURL: url}, nil
}

// logsSheet and summarySheet name the two sheets.
func (b *UsageBuilder) logsSheet() string    { return sheetTitle(b.display()+" Usage logs", "Logs") }
func (b *UsageBuilder) summarySheet() string { return sheetTitle(b.display()+" Usage logs", "Summary") }

// display renders the report type for sheet titles: the raw type with its
// first letter capitalized, so "answer" shows as "Answer" while "AITeammate"
// stays as is.
func (b *UsageBuilder) display() string {
	return strings.ToUpper(b.typ[:1]) + b.typ[1:]
}

func (b *UsageBuilder) uploadSkeleton(ctx context.Context, key, dateRange string) error {
	f := excelize.NewFile()
	defer f.Close()

	logsName := b.logsSheet()
	if _, err := f.NewSheet(logsName); err != nil {
		return export.StorageWrite("assemble workbook", err)
	}
	for cell, value := range map[string]string{
		"A1": b.display() + " Usage logs",
		"A2": "Date range - " + dateRange,
		"A4": filtersAppliedLabel,
		"A5": usersLabel,
		"A6": statusLabel,
		"A7": initiatedFromLabel,
	} {
		if err := f.SetCellValue(logsName, cell, value); err != nil {
			return export.StorageWrite("assemble workbook", err)
		}
	}
	if err := writeHeader(f, logsName, 8, fillGray, b.logColumns()...); err != nil {
		return export.StorageWrite("assemble workbook", err)
	}

	summaryName := b.summarySheet()
	if _, err := f.NewSheet(summaryName); err != nil {
		return export.StorageWrite("assemble workbook", err)
	}
	for cell, value := range map[string]string{
		"A1": b.display() + " Usage logs - Summary",
		"A2": "Date range - " + dateRange,
		"A4": filtersAppliedLabel,
		"A5": usersLabel,
	} {
		if err := f.SetCellValue(summaryName, cell, value); err != nil {
			return export.StorageWrite("assemble workbook", err)
		}
	}
	if err := writeHeader(f, summaryName, 6, fillPink, "Metric", "Value"); err != nil {
		return export.StorageWrite("assemble workbook", err)
	}
	for i, label := range b.metricLabels() {
		if err := setCell(f, summaryName, 1, 7+i, label); err != nil {
			return export.StorageWrite("assemble workbook", err)
		}
	}

	if err := dropDefaultSheet(f); err != nil {
		return export.StorageWrite("assemble workbook", err)
	}
	return uploadWorkbook(ctx, b.store, key, f)
}

// appendLogs streams list pages into the Logs sheet.
func (b *UsageBuilder) appendLogs(ctx context.Context, job *export.Job, key string) error {
	sheet := b.logsSheet()
	if b.typ == export.TypeAITeammate {
		stream := b.usage.TeammateLogs(job.Filter, job.PageFilter)
		for stream.Next(ctx) {
			page := stream.Page()
			rows := make([][]any, 0, len(page))
			for _, entry := range page {
				rows = append(rows, []any{
					entry.Title,
					formatMillis(entry.Meta.Created),
					entry.Meta.CreatedBy.FullName,
					entry.ThreadCount,
					entry.AverageTime,
					entry.TxConsumed,
				})
			}
			if err := appendPage(ctx, b.store, key, sheet, 9, rows); err != nil {
				return err
			}
			b.logger.Debug(ctx, "usage log page appended", "rows", len(rows))
		}
		return stream.Err()
	}

	segment, err := usage.Segment(b.typ)
	if err != nil {
		return err
	}
	stream := b.usage.Logs(segment, job.Filter, job.PageFilter)
	for stream.Next(ctx) {
		page := stream.Page()
		rows := make([][]any, 0, len(page))
		for _, entry := range page {
			rows = append(rows, []any{
				entry.Question,
				entry.UserInstruction,
				entry.Answer,
				joinSourceURLs(entry.Sources),
				entry.Status,
				formatMillis(entry.Meta.Created),
				entry.Meta.CreatedBy.FullName,
				entry.InitiatedFrom,
				entry.TxConsumed,
			})
		}
		if err := appendPage(ctx, b.store, key, sheet, 9, rows); err != nil {
			return err
		}
		b.logger.Debug(ctx, "usage log page appended", "rows", len(rows))
	}
	return stream.Err()
}

// writeSummary fetches the stats payload and fills the Summary value column.
func (b *UsageBuilder) writeSummary(ctx context.Context, job *export.Job, key string) error {
	var values []any
	switch b.typ {
	case export.TypeAnswer:
		stats, err := b.usage.AnswerStats(ctx, job.Filter, job.PageFilter)
		if err != nil {
			return err
		}
		values = []any{stats.Total, stats.Answered, stats.NoInformation, stats.TxConsumed}
	case export.TypeAutofill:
		stats, err := b.usage.AutofillStats(ctx, job.Filter, job.PageFilter)
		if err != nil {
			return err
		}
		values = []any{stats.TotalRuns, stats.TotalDocuments, stats.TotalQuestions,
			stats.TotalQuestionsAnswered, stats.AverageResponseTime}
	case export.TypeAITeammate:
		stats, err := b.usage.TeammateStats(ctx, job.Filter, job.PageFilter)
		if err != nil {
			return err
		}
		values = []any{stats.ThreadCount, stats.AverageTime, stats.TxConsumed}
	default:
		return fmt.Errorf("unknown usage-log type %q", b.typ)
	}

	sheet := b.summarySheet()
	return mutateWorkbook(ctx, b.store, key, func(f *excelize.File) error {
		for i, value := range values {
			if err := setCell(f, sheet, 2, 7+i, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// logColumns returns the Logs sheet header for the report type.
func (b *UsageBuilder) logColumns() []string {
	if b.typ == export.TypeAITeammate {
		return []string{"Conversations", "Date", "Owner", "No. of Turns",
			"Response time per response", "Transactions consumed"}
	}
	return []string{"Question", "Instruction", "Answer", "Sources", "Status",
		"Date", "User", "Initiated from", "Transactions consumed"}
}

// metricLabels returns the Summary sheet metric column for the report type.
func (b *UsageBuilder) metricLabels() []string {
	switch b.typ {
	case export.TypeAutofill:
		return []string{"Autofill runs", "Documents autofilled", "Total questions",
			"Questions answered", "Average response time"}
	case export.TypeAITeammate:
		return []string{"Total Conversations", "Average response time", "Transactions consumed"}
	}
	return []string{"Total questions asked", "Total questions answered",
		"No information found", "Transactions consumed"}
}

// joinSourceURLs renders an entry's cited sources as a comma-joined list.
func joinSourceURLs(sources []usage.Source) string {
	urls := make([]string, 0, len(sources))
	for _, s := range sources {
		urls = append(urls, s.URL)
	}
	return strings.Join(urls, ", ")
}
