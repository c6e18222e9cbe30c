package time

import (
	"testing"
	"time"
)

func TestDay(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*3600)
	in := time.Date(2025, 3, 10, 2, 30, 0, 0, loc) // 2025-03-09 17:30 UTC
	want := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	if got := Day(in); !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("Day = %v, want %v", got, want)
	}
	if !Day(time.Time{}).IsZero() {
		t.Fatalf("zero time should stay zero")
	}
}

func TestDays(t *testing.T) {
	t.Parallel()

	a := time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 12, 1, 0, 0, 0, time.UTC)
	if got := Days(a, b); got != 4 {
		t.Fatalf("Days = %d", got)
	}
	if Days(a, a) != 1 || Days(b, a) != 0 {
		t.Fatalf("Days edge cases wrong")
	}
}
