package transform

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Enrollment size buckets
const (
	EnrollmentSmall     = "small"
	EnrollmentMedium    = "medium"
	EnrollmentLarge     = "large"
	EnrollmentVeryLarge = "very-large"
)

// EnrollmentCategory buckets a participant count:
// small < 100 <= medium < 500 <= large < 1000 <= very-large
func EnrollmentCategory(count int) string {
	switch {
	case count < 100:
		return EnrollmentSmall
	case count < 500:
		return EnrollmentMedium
	case count < 1000:
		return EnrollmentLarge
	default:
		return EnrollmentVeryLarge
	}
}

// ctDateLayouts are the partial date forms ClinicalTrials.gov emits
var ctDateLayouts = []string{"2006-01-02", "2006-01", "2006"}

// ParseTrialDate parses a ClinicalTrials.gov date. The bool reports whether
// the day of month was present.
func ParseTrialDate(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	for i, layout := range ctDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, i == 0, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized date %q", s)
}

// MonthsBetween counts whole months from start to end. A day that has not
// yet been reached in the final month does not count as a full month.
func MonthsBetween(start, end time.Time, withDays bool) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if withDays && end.Day() < start.Day() {
		months--
	}
	return months
}

// DurationLabel renders a span of months as "N month(s)" under a year and
// "N year(s)" otherwise, years rounded down
func DurationLabel(months int) string {
	if months < 12 {
		return plural(months, "month")
	}
	return plural(months/12, "year")
}

// TrialDuration derives the duration label from two ClinicalTrials.gov
// dates. It returns nil when either date is missing or unparseable, or when
// the span is negative.
func TrialDuration(startDate, endDate string) *string {
	if startDate == "" || endDate == "" {
		return nil
	}
	start, startDays, err := ParseTrialDate(startDate)
	if err != nil {
		return nil
	}
	end, endDays, err := ParseTrialDate(endDate)
	if err != nil {
		return nil
	}
	months := MonthsBetween(start, end, startDays && endDays)
	if months < 0 {
		return nil
	}
	label := DurationLabel(months)
	return &label
}

// Domain returns the host of rawURL without a leading "www."
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
