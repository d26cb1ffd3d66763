// Package timeframe handles the date-string conventions shared by the whole
// query engine: request date normalization, parsing, and time bucketing.
//
// Engine-facing dates are strings of the form "YYYY-MM-DD HH:MM:SS",
// optionally suffixed with "Z" or "±HH:MM". Week buckets key to the Monday
// of the ISO week and month buckets to the first of the month, both here and
// in the SQL expressions built by the executor, so the two paths always
// agree on bucket keys.
package timeframe

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Bucket identifies a time-series grouping granularity.
type Bucket string

const (
	BucketDay   Bucket = "date"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
)

const (
	// DateTimeLayout is the canonical engine date-time layout.
	DateTimeLayout = "2006-01-02 15:04:05"
	// DateLayout is the date-only layout used by summary tables.
	DateLayout = "2006-01-02"
)

var (
	suffixPattern   = regexp.MustCompile(`(Z|[+-]\d{2}:\d{2})$`)
	dateOnlyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)
)

// SplitSuffix separates a trailing "Z" or "±HH:MM" timezone suffix from a
// date string. The suffix is preserved verbatim through normalization.
func SplitSuffix(value string) (string, string) {
	if m := suffixPattern.FindString(value); m != "" {
		return strings.TrimSuffix(value, m), m
	}
	return value, ""
}

// NormalizeStart normalizes a range-start date. Date-only values get
// "00:00:00" appended; "T" separators become spaces; timezone suffixes are
// kept as-is.
func NormalizeStart(value string) (string, error) {
	return normalize(value, "00:00:00")
}

// NormalizeEnd normalizes a range-end date. Date-only values get "23:59:59"
// appended.
func NormalizeEnd(value string) (string, error) {
	return normalize(value, "23:59:59")
}

func normalize(value, boundary string) (string, error) {
	base, suffix := SplitSuffix(strings.TrimSpace(value))
	base = strings.Replace(base, "T", " ", 1)

	switch {
	case dateOnlyPattern.MatchString(base):
		base = base + " " + boundary
	case dateTimePattern.MatchString(base):
		// already complete
	default:
		return "", fmt.Errorf("unrecognized date format: %q", value)
	}

	if _, err := time.Parse(DateTimeLayout, base); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", value, err)
	}
	return base + suffix, nil
}

// Parse converts a normalized engine date string into a time.Time. The
// timezone suffix, when present, is honored; otherwise UTC is assumed.
func Parse(value string) (time.Time, error) {
	base, suffix := SplitSuffix(value)
	if suffix == "" || suffix == "Z" {
		return time.Parse(DateTimeLayout, base)
	}
	return time.Parse(DateTimeLayout+"-07:00", base+suffix)
}

// DateOf returns the date portion (YYYY-MM-DD) of a normalized date string.
func DateOf(value string) string {
	if len(value) >= 10 {
		return value[:10]
	}
	return value
}

// WeekStart returns the Monday of the ISO week containing the given date
// (YYYY-MM-DD). This mirrors the sqlite expression used for raw-table week
// grouping.
func WeekStart(date string) (string, error) {
	t, err := time.Parse(DateLayout, DateOf(date))
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	weekday := int(t.Weekday())
	if weekday == 0 { // Sunday
		weekday = 7
	}
	return t.AddDate(0, 0, -(weekday - 1)).Format(DateLayout), nil
}

// MonthStart returns the first of the month for the given date (YYYY-MM-DD).
func MonthStart(date string) string {
	d := DateOf(date)
	if len(d) >= 7 {
		return d[:7] + "-01"
	}
	return d
}

// BucketKey maps a daily date to its bucket key for the given granularity.
func BucketKey(date string, bucket Bucket) (string, error) {
	switch bucket {
	case BucketWeek:
		return WeekStart(date)
	case BucketMonth:
		return MonthStart(date), nil
	default:
		return DateOf(date), nil
	}
}

// SQLBucketExpr returns the sqlite grouping expression for a bucket over the
// given column. The week expression lands on Monday, matching WeekStart.
func SQLBucketExpr(column string, bucket Bucket) string {
	switch bucket {
	case BucketWeek:
		return fmt.Sprintf("DATE(%s, '-' || ((STRFTIME('%%w', %s) + 6) %% 7) || ' days')", column, column)
	case BucketMonth:
		return fmt.Sprintf("STRFTIME('%%Y-%%m', %s)", column)
	default:
		return fmt.Sprintf("DATE(%s)", column)
	}
}

// EndsOn reports whether the date portion of a normalized date string equals
// the date of the supplied reference time.
func EndsOn(value string, day time.Time) bool {
	return DateOf(value) == day.Format(DateLayout)
}

// LastDays returns a normalized [from, to] range covering the past n days up
// to the end of the reference day.
func LastDays(n int, now time.Time) (string, string) {
	from := now.AddDate(0, 0, -n).Format(DateLayout) + " 00:00:00"
	to := now.Format(DateLayout) + " 23:59:59"
	return from, to
}
