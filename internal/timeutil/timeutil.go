// Package timeutil holds the Moscow-time date arithmetic the report is built
// around. All business windows (report day, call window, order window) are
// defined in MSK, while the RetailCRM and UIS APIs exchange UTC timestamps.
package timeutil

import (
	"fmt"
	"time"
)

// MSK is the fixed Moscow timezone; the store operates without DST.
var MSK = time.FixedZone("MSK", 3*60*60)

const (
	crmLayout       = "2006-01-02 15:04:05"
	crmLayoutTZ     = "2006-01-02 15:04:05Z07:00"
	crmLayoutShort  = "2006-01-02 15:04"
	apiLayout       = "2006-01-02T15:04:05Z"
	filterLayout    = "2006-01-02 15:04:05"
	reportDayLayout = "2006-01-02"
)

// Yesterday returns the previous calendar day relative to now, at midnight MSK.
func Yesterday(now time.Time) time.Time {
	y := now.In(MSK).AddDate(0, 0, -1)
	return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, MSK)
}

// Day truncates t to midnight MSK.
func Day(t time.Time) time.Time {
	m := t.In(MSK)
	return time.Date(m.Year(), m.Month(), m.Day(), 0, 0, 0, 0, MSK)
}

// DayBounds returns the inclusive bounds of the report day in MSK:
// 00:00:00 through 23:59:59.999999.
func DayBounds(day time.Time) (time.Time, time.Time) {
	start := Day(day)
	end := start.Add(24*time.Hour - time.Microsecond)
	return start, end
}

// CallsWindow returns the telephony working window of the report day,
// 08:00 through 19:00 MSK.
func CallsWindow(day time.Time) (time.Time, time.Time) {
	start := Day(day)
	return start.Add(8 * time.Hour), start.Add(19 * time.Hour)
}

// OrdersWindow returns the order-processing working window of the report day,
// 09:00 through 19:59:59 MSK.
func OrdersWindow(day time.Time) (time.Time, time.Time) {
	start := Day(day)
	return start.Add(9 * time.Hour), start.Add(20*time.Hour - time.Second)
}

// EveningCutoff returns 19:00 MSK of the report day; chats with customer
// messages at or after this instant count as awaiting a reply.
func EveningCutoff(day time.Time) time.Time {
	return Day(day).Add(19 * time.Hour)
}

// ParseCRMTime parses the datetime formats RetailCRM returns: with seconds,
// with an explicit offset, ISO with T/Z, or without seconds. Naive values are
// taken as UTC.
func ParseCRMTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	for _, layout := range []string{crmLayout, crmLayoutTZ, apiLayout, crmLayoutShort} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}

// ParseISOTime parses an ISO-8601 timestamp, with or without fractional
// seconds, as the Bot API emits for message createdAt.
func ParseISOTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse iso datetime %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatAPI renders t for RetailCRM datetime filters (UTC, trailing Z).
func FormatAPI(t time.Time) string {
	return t.UTC().Format(apiLayout)
}

// FormatFilter renders t in the space-separated form the UIS API and the
// RetailCRM createdAt filters expect. The value keeps t's own zone.
func FormatFilter(t time.Time) string {
	return t.Format(filterLayout)
}

// FormatDay renders the date part only.
func FormatDay(t time.Time) string {
	return t.In(MSK).Format(reportDayLayout)
}

// ParseDay parses a YYYY-MM-DD report date as midnight MSK.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(reportDayLayout, s, MSK)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse report date %q: %w", s, err)
	}
	return t, nil
}
