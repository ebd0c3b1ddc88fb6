// Package dateutils provides the date parsing and formatting helpers used to
// read card exports and name output files.
package dateutils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Common date layouts
const (
	DateLayoutISO       = "2006-01-02"
	DateLayoutUS        = "01/02/2006"
	DateLayoutUSShort   = "1/2/2006"
	DateLayoutUSTwo     = "01/02/06"
	DateLayoutEuropean  = "02.01.2006"
	DateLayoutFull      = "2006-01-02 15:04:05"
	DateLayoutWithMonth = "Jan 2, 2006"

	// TimestampLayout is used in generated file names.
	TimestampLayout = "20060102T150405"
)

// CommonFormats lists the layouts tried by ParseDate, in order. Slash dates
// are read month first, as US card issuers export them.
var CommonFormats = []string{
	DateLayoutUS,
	DateLayoutUSShort,
	DateLayoutISO,
	DateLayoutUSTwo,
	DateLayoutFull,
	DateLayoutEuropean,
	DateLayoutWithMonth,
	"January 2, 2006",
	"2-Jan-2006",
	"2006/01/02",
	time.RFC3339,
}

var whitespace = regexp.MustCompile(`\s+`)

// ParseDate attempts to parse a date string using CommonFormats.
// Returns the parsed time and the detected layout.
func ParseDate(dateStr string) (time.Time, string, error) {
	dateStr = CleanDateString(dateStr)
	if dateStr == "" {
		return time.Time{}, "", fmt.Errorf("empty date")
	}

	for _, format := range CommonFormats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, format, nil
		}
	}

	return time.Time{}, "", fmt.Errorf("unable to parse date: %s", dateStr)
}

// ToISODate formats a time.Time value as an ISO date (YYYY-MM-DD)
func ToISODate(date time.Time) string {
	return date.Format(DateLayoutISO)
}

// FormatTimestamp renders t for use in file names.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// CleanDateString trims a date and collapses inner whitespace.
func CleanDateString(dateStr string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(dateStr), " ")
}

// StartOfMonth returns the first day of the month for a given date
func StartOfMonth(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
}

// EndOfMonth returns the last day of the month for a given date
func EndOfMonth(date time.Time) time.Time {
	return StartOfMonth(date).AddDate(0, 1, -1)
}

// Span returns the earliest and latest of dates, ignoring zero values.
func Span(dates []time.Time) (first, last time.Time) {
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if last.IsZero() || d.After(last) {
			last = d
		}
	}
	return first, last
}
