package timeutil

import (
	"testing"
	"time"
)

func TestYesterday(t *testing.T) {
	// 01:30 MSK on July 22 -> report day July 21
	now := time.Date(2025, 7, 21, 22, 30, 0, 0, time.UTC)
	got := Yesterday(now)
	if got.Year() != 2025 || got.Month() != 7 || got.Day() != 21 {
		t.Fatalf("expected 2025-07-21, got %v", got)
	}
	if h, m, s := got.Clock(); h != 0 || m != 0 || s != 0 {
		t.Fatalf("expected midnight MSK, got %v", got)
	}
}

func TestDayBounds(t *testing.T) {
	day := time.Date(2025, 7, 14, 0, 0, 0, 0, MSK)
	start, end := DayBounds(day)
	if !start.Equal(day) {
		t.Fatalf("unexpected start: %v", start)
	}
	// 23:59:59.999999 MSK == 20:59:59.999999 UTC
	wantEnd := time.Date(2025, 7, 14, 20, 59, 59, 999999000, time.UTC)
	if !end.Equal(wantEnd) {
		t.Fatalf("expected end %v, got %v", wantEnd, end)
	}
}

func TestWorkingWindows(t *testing.T) {
	day := time.Date(2025, 7, 10, 0, 0, 0, 0, MSK)

	cs, ce := CallsWindow(day)
	if cs.Hour() != 8 || ce.Hour() != 19 {
		t.Fatalf("unexpected calls window: %v - %v", cs, ce)
	}

	os_, oe := OrdersWindow(day)
	if os_.Hour() != 9 {
		t.Fatalf("unexpected orders window start: %v", os_)
	}
	if oe.Hour() != 19 || oe.Minute() != 59 || oe.Second() != 59 {
		t.Fatalf("unexpected orders window end: %v", oe)
	}

	if EveningCutoff(day).Hour() != 19 {
		t.Fatalf("unexpected evening cutoff: %v", EveningCutoff(day))
	}
}

func TestParseCRMTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-07-14 09:15:30", time.Date(2025, 7, 14, 9, 15, 30, 0, time.UTC)},
		{"2025-07-14T09:15:30Z", time.Date(2025, 7, 14, 9, 15, 30, 0, time.UTC)},
		{"2025-07-14 09:15", time.Date(2025, 7, 14, 9, 15, 0, 0, time.UTC)},
		{"2025-07-14 12:15:30+03:00", time.Date(2025, 7, 14, 9, 15, 30, 0, time.UTC)},
	}
	for _, c := range cases {
		got, err := ParseCRMTime(c.in)
		if err != nil {
			t.Fatalf("ParseCRMTime(%q) failed: %v", c.in, err)
		}
		if !got.Equal(c.want) {
			t.Fatalf("ParseCRMTime(%q) = %v, want %v", c.in, got, c.want)
		}
	}
	if _, err := ParseCRMTime("nonsense"); err == nil {
		t.Fatal("expected error for garbage input")
	}
	if _, err := ParseCRMTime(""); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestParseISOTime(t *testing.T) {
	withFrac, err := ParseISOTime("2025-07-14T16:05:01.123456Z")
	if err != nil {
		t.Fatalf("fractional parse failed: %v", err)
	}
	plain, err := ParseISOTime("2025-07-14T16:05:01Z")
	if err != nil {
		t.Fatalf("plain parse failed: %v", err)
	}
	if withFrac.Truncate(time.Second) != plain {
		t.Fatalf("mismatch: %v vs %v", withFrac, plain)
	}
}

func TestFormatAPI(t *testing.T) {
	ts := time.Date(2025, 7, 14, 12, 0, 0, 0, MSK)
	if got := FormatAPI(ts); got != "2025-07-14T09:00:00Z" {
		t.Fatalf("unexpected FormatAPI output: %s", got)
	}
}

func TestFormatFilterKeepsZone(t *testing.T) {
	ts := time.Date(2025, 7, 14, 8, 0, 0, 0, MSK)
	if got := FormatFilter(ts); got != "2025-07-14 08:00:00" {
		t.Fatalf("unexpected FormatFilter output: %s", got)
	}
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2025-08-07")
	if err != nil {
		t.Fatalf("ParseDay failed: %v", err)
	}
	if d.Day() != 7 || d.Location() != MSK {
		t.Fatalf("unexpected day: %v", d)
	}
	if _, err := ParseDay("07.08.2025"); err == nil {
		t.Fatal("expected error for wrong layout")
	}
}
