package scheduler

import (
	"testing"
	"time"
)

func TestDailyTrigger(t *testing.T) {
	trig, err := Daily(9, 30, 15)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}

	after := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	next := trig.Next(after)
	want := time.Date(2024, 6, 1, 9, 30, 15, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("Next(%v) = %v, want %v", after, next, want)
	}

	// Past today's firing time it rolls to tomorrow.
	next = trig.Next(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	want = time.Date(2024, 6, 2, 9, 30, 15, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("Next after firing = %v, want %v", next, want)
	}
}

func TestDailyTriggerValidation(t *testing.T) {
	cases := [][3]int{{24, 0, 0}, {-1, 0, 0}, {0, 60, 0}, {0, 0, 60}}
	for _, c := range cases {
		if _, err := Daily(c[0], c[1], c[2]); err == nil {
			t.Errorf("Daily(%d,%d,%d) accepted invalid time", c[0], c[1], c[2])
		}
	}
}

func TestEveryTrigger(t *testing.T) {
	trig := Every(10 * time.Minute)
	after := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if next := trig.Next(after); !next.Equal(after.Add(10 * time.Minute)) {
		t.Fatalf("Next = %v, want +10m", next)
	}
}

func TestAtTriggerExhausts(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	trig := At(at)

	if next := trig.Next(at.Add(-time.Hour)); !next.Equal(at) {
		t.Fatalf("Next before the instant = %v, want %v", next, at)
	}
	if next := trig.Next(at); !next.IsZero() {
		t.Fatalf("Next at the instant = %v, want zero", next)
	}
	if next := trig.Next(at.Add(time.Hour)); !next.IsZero() {
		t.Fatalf("Next after the instant = %v, want zero", next)
	}
}
