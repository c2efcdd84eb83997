package cronexpr

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, expr string) *Schedule {
	t.Helper()
	s, err := Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", expr, err)
	}
	return s
}

func TestEnumerateEveryMinute(t *testing.T) {
	s := mustParse(t, "* * * * *")
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Minute)

	got, err := s.Enumerate(time.UTC, start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d firings, want 5: %v", len(got), got)
	}
	for i, want := 0, start; i < len(got); i, want = i+1, want.Add(time.Minute) {
		if !got[i].Equal(want) {
			t.Errorf("firing[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestEnumerateClosedIntervalEndpoints(t *testing.T) {
	// Mirrors the spec's worked example: firings exactly at midnight land
	// on both the start and end boundary of an inclusive window and must
	// both be reported.
	s := mustParse(t, "0 0 * * *")
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) // midnight, Jan 1
	end := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)   // midnight, Jan 2

	got, err := s.Enumerate(time.UTC, start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d firings, want 2: %v", len(got), got)
	}
	wantFirst := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	wantSecond := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if !got[0].Equal(wantFirst) || !got[1].Equal(wantSecond) {
		t.Fatalf("got %v, want [%v %v]", got, wantFirst, wantSecond)
	}
}

func TestEnumerateNoFirings(t *testing.T) {
	s := mustParse(t, "0 0 29 2 *") // Feb 29, only on leap years
	start := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2027, 12, 31, 23, 59, 0, 0, time.UTC)

	got, err := s.Enumerate(time.UTC, start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want none (2027 is not a leap year)", got)
	}
}

func TestEnumerateInvalidWindow(t *testing.T) {
	s := mustParse(t, "* * * * *")
	start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Minute)

	if _, err := s.Enumerate(time.UTC, start, end); err == nil {
		t.Fatal("expected error for end before start")
	}
}

func TestEnumerateDomDowORSemantics(t *testing.T) {
	// Both day-of-month and day-of-week restricted: OR, matching the 1st
	// of the month OR any Monday.
	s := mustParse(t, "0 12 1 * mon")
	// March 2026: the 1st is a Sunday, and Mondays fall on 2,9,16,23,30.
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC)

	got, err := s.Enumerate(time.UTC, start, end)
	if err != nil {
		t.Fatal(err)
	}
	wantDays := []int{1, 2, 9, 16, 23, 30}
	if len(got) != len(wantDays) {
		t.Fatalf("got %d firings, want %d: %v", len(got), len(wantDays), got)
	}
	for i, d := range wantDays {
		if got[i].Day() != d {
			t.Errorf("firing[%d] day = %d, want %d", i, got[i].Day(), d)
		}
	}
}

func TestEnumerateDomDowANDWhenOnlyOneRestricted(t *testing.T) {
	// Day-of-week unrestricted ("*"), so only day-of-month restricts.
	s := mustParse(t, "0 12 15 * *")
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC)

	got, err := s.Enumerate(time.UTC, start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d firings, want 3: %v", len(got), got)
	}
	for _, f := range got {
		if f.Day() != 15 {
			t.Errorf("firing day = %d, want 15", f.Day())
		}
	}
}

func TestEnumerateDSTSpringForwardSkipsNonexistentInstant(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2026-03-08 02:00 America/New_York does not exist: clocks jump from
	// 01:59:59 EST straight to 03:00:00 EDT.
	s := mustParse(t, "30 2 * * *")
	start := time.Date(2026, 3, 7, 0, 0, 0, 0, loc)
	end := time.Date(2026, 3, 9, 0, 0, 0, 0, loc)

	got, err := s.Enumerate(loc, start, end)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range got {
		if f.Month() == time.March && f.Day() == 8 {
			t.Fatalf("enumerated skipped local instant: %v", f)
		}
	}
	if len(got) != 1 {
		t.Fatalf("got %d firings, want 1 (only March 7): %v", len(got), got)
	}
}

func TestEnumerateDSTFallBackEmitsRepeatedInstantOnce(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2026-11-01 01:30 America/New_York occurs twice (EDT then EST), but
	// civil enumeration must report it exactly once.
	s := mustParse(t, "30 1 * * *")
	start := time.Date(2026, 10, 31, 0, 0, 0, 0, loc)
	end := time.Date(2026, 11, 2, 0, 0, 0, 0, loc)

	got, err := s.Enumerate(loc, start, end)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, f := range got {
		if f.Month() == time.November && f.Day() == 1 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("got %d firings on the repeated civil minute, want 1: %v", count, got)
	}
}

func TestNextAfter(t *testing.T) {
	s := mustParse(t, "0 0 * * *")
	after := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	got, ok := s.NextAfter(time.UTC, after)
	if !ok {
		t.Fatal("expected a next firing")
	}
	want := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextAfter = %v, want %v", got, want)
	}
}

func TestNextAfterNoFiring(t *testing.T) {
	s := mustParse(t, "0 0 30 2 *") // Feb 30th never exists
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, ok := s.NextAfter(time.UTC, after); ok {
		t.Fatal("expected no firing to be found")
	}
}
