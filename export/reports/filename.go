package reports

import (
	"fmt"
	"time"
	"unicode"
)

// FAQFilename names the FAQ artifact, e.g.
// "Frequently_Asked_Questions_Report_All_20250503_142536.xlsx".
func FAQFilename(suffix string, now time.Time) string {
	return fmt.Sprintf("Frequently_Asked_Questions_Report_%s_%s.xlsx", suffix, timestampUTC(now))
}

// UsageFilename names a usage-log artifact, e.g.
// "Answer_Usage_logs_May_3,_2025_to_Jun_2,_2025_20250503_142536.xlsx".
func UsageFilename(typ, dateRange string, now time.Time) string {
	return fmt.Sprintf("%s_Usage_logs_%s_%s.xlsx", titleCase(typ), underscored(dateRange), timestampUTC(now))
}

// titleCase upper-cases the first letter of every alphabetic run and
// lower-cases the rest, so "answer" becomes "Answer" and "AITeammate"
// becomes "Aiteammate". Filenames have always used this casing; sheet titles
// keep the raw type.
func titleCase(s string) string {
	runes := []rune(s)
	prevLetter := false
	for i, r := range runes {
		if unicode.IsLetter(r) {
			if prevLetter {
				runes[i] = unicode.ToLower(r)
			} else {
				runes[i] = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
	}
	return string(runes)
}
