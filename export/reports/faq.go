package reports

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sifthub/exporter/export"
	"github.com/sifthub/exporter/features/analytics/insights"
	"github.com/sifthub/exporter/telemetry"
)

// FAQ sheet base names; the status suffix is appended at build time.
const (
	topCategoriesSheet     = "Top question categories"
	categoryBreakdownSheet = "Detailed category breakdown"
	topQuestionsSheet      = "Top asked questions"
)

const groupingHint = "💡 Questions that are similar to each other have been grouped under a single FAQ"

const linkLabel = "View details ↗"

type (
	// FAQOptions configures the FAQ report builder.
	FAQOptions struct {
		// Insights is the analytics client. Required.
		Insights insights.Client
		// Store is the workbook store. Required.
		Store export.WorkbookStore
		// Logger defaults to the Clue logger.
		Logger telemetry.Logger
		// Now overrides the filename clock for tests.
		Now func() time.Time
	}

	// FAQBuilder assembles the frequently-asked-questions report: one sheet
	// of category distributions, one of sub-category breakdowns and one of
	// top questions, all suffixed by the status selection.
	FAQBuilder struct {
		insights insights.Client
		store    export.WorkbookStore
		logger   telemetry.Logger
		now      func() time.Time
	}

	// categoryRef remembers a category observed on the first sheet so its
	// sub-categories can be streamed in the same order.
	categoryRef struct {
		id   string
		name string
	}
)

// NewFAQBuilder validates the options and returns a builder.
func NewFAQBuilder(opts FAQOptions) (*FAQBuilder, error) {
	if opts.Insights == nil {
		return nil, errors.New("insights client is required")
	}
	if opts.Store == nil {
		return nil, errors.New("workbook store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewClueLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &FAQBuilder{insights: opts.Insights, store: opts.Store, logger: logger, now: now}, nil
}

// Filename implements export.ReportBuilder.
func (b *FAQBuilder) Filename(job *export.Job) string {
	return FAQFilename(SheetSuffix(job.Filter), b.now())
}

// Build implements export.ReportBuilder.
func (b *FAQBuilder) Build(ctx context.Context, job *export.Job) (export.Handle, error) {
	suffix := SheetSuffix(job.Filter)
	dateRange := DateRange(job.PageFilter)

	cards, err := b.insights.InfoCards(ctx, job.PageFilter)
	if err != nil {
		return export.Handle{}, err
	}
	denom := denominator(cards, suffix)

	key := artifactKey(job, FAQFilename(suffix, b.now()))
	if err := b.uploadSkeleton(ctx, key, suffix, dateRange); err != nil {
		return export.Handle{}, err
	}
	b.logger.Info(ctx, "workbook skeleton uploaded", "key", key, "suffix", suffix)

	categories, err := b.appendCategories(ctx, job, key, suffix, denom)
	if err != nil {
		return export.Handle{}, err
	}
	if err := b.appendSubCategories(ctx, job, key, suffix, denom, categories); err != nil {
		return export.Handle{}, err
	}
	if err := b.appendTopQuestions(ctx, job, key, suffix); err != nil {
		return export.Handle{}, err
	}

	url, err := b.store.PresignGet(ctx, key, 0)
	if err != nil {
		return export.Handle{}, err
	}
	return export.Handle{Bucket: b.store.Bucket(), Key: key, PresignedURL: url}, nil
}

// uploadSkeleton assembles the three empty sheets and uploads the workbook.
func (b *FAQBuilder) uploadSkeleton(ctx context.Context, key, suffix, dateRange string) error {
	f := excelize.NewFile()
	defer f.Close()

	categoriesName := sheetTitle(topCategoriesSheet, suffix)
	if _, err := f.NewSheet(categoriesName); err != nil {
		return export.StorageWrite("assemble workbook", err)
	}
	for cell, value := range map[string]string{
		"A1": topCategoriesSheet,
		"A2": "Date range - " + dateRange,
		"A4": filtersAppliedLabel,
		"A5": usersLabel,
		"A6": initiatedFromLabel,
	} {
		if err := f.SetCellValue(categoriesName, cell, value); err != nil {
			return export.StorageWrite("assemble workbook", err)
		}
	}
	if err := writeHeader(f, categoriesName, 8, fillGray,
		"Category", "Frequency (Questions asked)", "Distribution", "Trend", "Link"); err != nil {
		return export.StorageWrite("assemble workbook", err)
	}

	breakdownName := sheetTitle(categoryBreakdownSheet, suffix)
	if _, err := f.NewSheet(breakdownName); err != nil {
		return export.StorageWrite("assemble workbook", err)
	}
	for cell, value := range map[string]string{
		"A1": categoryBreakdownSheet,
		"A2": "Date range - " + dateRange,
		"A4": filtersAppliedLabel,
		"A5": usersLabel,
		"A6": initiatedFromLabel,
	} {
		if err := f.SetCellValue(breakdownName, cell, value); err != nil {
			return export.StorageWrite("assemble workbook", err)
		}
	}
	if err := writeHeader(f, breakdownName, 8, fillPink,
		"Subcategory", "Parent Category", "Frequency (Questions asked)", "Distribution", "Trend", "Link"); err != nil {
		return export.StorageWrite("assemble workbook", err)
	}

	questionsName := sheetTitle(topQuestionsSheet, suffix)
	if _, err := f.NewSheet(questionsName); err != nil {
		return export.StorageWrite("assemble workbook", err)
	}
	for cell, value := range map[string]string{
		"A1": topQuestionsSheet,
		"A3": groupingHint,
		"A5": "Date range - " + dateRange,
		"A6": filtersAppliedLabel,
		"A7": usersLabel,
	} {
		if err := f.SetCellValue(questionsName, cell, value); err != nil {
			return export.StorageWrite("assemble workbook", err)
		}
	}
	if err := writeHeader(f, questionsName, 9, fillLavender,
		"Question", "Frequency (Times asked)", "Link"); err != nil {
		return export.StorageWrite("assemble workbook", err)
	}
	if err := f.SetColWidth(questionsName, "A", "A", 80); err != nil {
		return export.StorageWrite("assemble workbook", err)
	}

	if err := dropDefaultSheet(f); err != nil {
		return export.StorageWrite("assemble workbook", err)
	}
	return uploadWorkbook(ctx, b.store, key, f)
}

// appendCategories streams category pages into the first sheet and returns
// the categories in observation order.
func (b *FAQBuilder) appendCategories(ctx context.Context, job *export.Job, key, suffix string, denom float64) ([]categoryRef, error) {
	sheet := sheetTitle(topCategoriesSheet, suffix)
	stream := b.insights.Categories(job.Filter, job.PageFilter)

	var refs []categoryRef
	for stream.Next(ctx) {
		page := stream.Page()
		rows := make([][]any, 0, len(page))
		for _, cat := range page {
			refs = append(refs, categoryRef{id: cat.ID, name: cat.Category})
			rows = append(rows, []any{
				cat.Category,
				frequency(denom, cat.Distribution),
				formatDistribution(cat.Distribution),
				formatTrend(cat.Trend, cat.Direction),
				linkLabel,
			})
		}
		if err := appendPage(ctx, b.store, key, sheet, 9, rows); err != nil {
			return nil, err
		}
		b.logger.Debug(ctx, "category page appended", "rows", len(rows))
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

// appendSubCategories streams each observed category's sub-categories into
// the breakdown sheet.
func (b *FAQBuilder) appendSubCategories(ctx context.Context, job *export.Job, key, suffix string, denom float64, categories []categoryRef) error {
	sheet := sheetTitle(categoryBreakdownSheet, suffix)
	for _, cat := range categories {
		stream := b.insights.SubCategories(cat.id, job.Filter, job.PageFilter)
		for stream.Next(ctx) {
			page := stream.Page()
			rows := make([][]any, 0, len(page))
			for _, sub := range page {
				rows = append(rows, []any{
					"→ " + sub.SubCategory,
					cat.name,
					frequency(denom, sub.Distribution),
					formatDistribution(sub.Distribution),
					formatTrend(sub.Trend, sub.Direction),
					linkLabel,
				})
			}
			if err := appendPage(ctx, b.store, key, sheet, 9, rows); err != nil {
				return err
			}
		}
		if err := stream.Err(); err != nil {
			return err
		}
	}
	return nil
}

// appendTopQuestions streams top-question pages into the third sheet.
func (b *FAQBuilder) appendTopQuestions(ctx context.Context, job *export.Job, key, suffix string) error {
	sheet := sheetTitle(topQuestionsSheet, suffix)
	stream := b.insights.TopQuestions(job.Filter, job.PageFilter)
	for stream.Next(ctx) {
		page := stream.Page()
		rows := make([][]any, 0, len(page))
		for _, q := range page {
			rows = append(rows, []any{q.Question, q.Frequency, linkLabel})
		}
		if err := appendPage(ctx, b.store, key, sheet, 10, rows); err != nil {
			return err
		}
	}
	return stream.Err()
}

// formatDistribution renders a percentage cell like "12.50%".
func formatDistribution(distribution float64) string {
	return fmt.Sprintf("%.2f%%", distribution)
}

// formatTrend renders a trend cell like "▲ 12%" or "▼ 3%".
func formatTrend(trend float64, direction string) string {
	symbol := "▼"
	if direction == "INCREASING" {
		symbol = "▲"
	}
	return fmt.Sprintf("%s %.0f%%", symbol, math.Abs(trend))
}
