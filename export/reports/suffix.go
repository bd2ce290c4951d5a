package reports

import (
	"strings"

	"github.com/sifthub/exporter/export"
	"github.com/sifthub/exporter/features/analytics/insights"
)

// Sheet suffixes derived from the status filter.
const (
	SuffixAll        = "All"
	SuffixAnswered   = "Answered"
	SuffixUnanswered = "Unanswered"
)

// statusPath is the filter condition the suffix is derived from.
const statusPath = "status"

// SheetSuffix derives the FAQ sheet suffix from the status filter. The
// contains-checks run from the most to the least specific selection; anything
// unrecognized falls back to All.
func SheetSuffix(filter *export.Filter) string {
	cond, ok := filter.Condition(statusPath)
	if !ok || cond.Data == "" {
		return SuffixAll
	}
	switch {
	case strings.Contains(cond.Data, "ANSWERED"+export.ValueDelimiter+"NO_INFORMATION"+export.ValueDelimiter+"PARTIAL"):
		return SuffixAll
	case strings.Contains(cond.Data, "ANSWERED"+export.ValueDelimiter+"PARTIAL"):
		return SuffixAnswered
	case strings.Contains(cond.Data, "NO_INFORMATION"):
		return SuffixUnanswered
	}
	return SuffixAll
}

// denominator picks the frequency denominator matching the sheet suffix.
func denominator(cards *insights.InfoCards, suffix string) float64 {
	switch suffix {
	case SuffixAnswered:
		return cards.TotalQuestionsAnswered.Count
	case SuffixUnanswered:
		return cards.TotalQuestions.Count - cards.TotalQuestionsAnswered.Count
	}
	return cards.TotalQuestions.Count
}

// frequency converts a percentage distribution into an absolute question
// count, truncating like the consumer-facing dashboard does.
func frequency(denominator, distribution float64) int {
	return int(denominator * (distribution / 100))
}
