package reports

import (
	"strconv"
	"strings"
	"time"

	"github.com/sifthub/exporter/export"
)

// dateLayout renders report dates like "May 3, 2025".
const dateLayout = "Jan 2, 2006"

// timestampLayout stamps artifact filenames and storage keys.
const timestampLayout = "20060102_150405"

// noDateRange is rendered when the page filter carries no parseable window.
const noDateRange = "Date range not specified"

// createdPath is the page-filter condition holding the export date window.
const createdPath = "meta.created"

// DateRange renders the export window from the page filter's created-range
// condition, e.g. "May 3, 2025 to Jun 2, 2025". The bounds are epoch
// milliseconds joined by the value delimiter.
func DateRange(pageFilter *export.Filter) string {
	cond, ok := pageFilter.Condition(createdPath)
	if !ok || cond.Data == "" {
		return noDateRange
	}
	startRaw, endRaw, ok := export.SplitRange(cond.Data)
	if !ok {
		return noDateRange
	}
	start, err := strconv.ParseInt(startRaw, 10, 64)
	if err != nil {
		return noDateRange
	}
	end, err := strconv.ParseInt(endRaw, 10, 64)
	if err != nil {
		return noDateRange
	}
	return formatMillis(start) + " to " + formatMillis(end)
}

// formatMillis renders an epoch-milliseconds timestamp as a UTC report date.
func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(dateLayout)
}

// underscored makes a date-range string filename-safe by joining its words
// with underscores.
func underscored(s string) string {
	return strings.ReplaceAll(s, " ", "_")
}

// timestampUTC stamps the given instant for filenames and keys.
func timestampUTC(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
