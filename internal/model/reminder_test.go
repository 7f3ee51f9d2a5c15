package model

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeDestination(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"+14155550100":          "+14155550100",
		"14155550100":           "+14155550100",
		"whatsapp:+14155550100": "+14155550100",
		"+1 (415) 555-0100":     "+14155550100",
		"0044 20 7946 0958":     "+442079460958",
		" +91.98765.43210 ":     "+919876543210",
	}

	for input, want := range cases {
		got, err := NormalizeDestination(input)
		if err != nil {
			t.Fatalf("NormalizeDestination(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("NormalizeDestination(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeDestinationRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "12345", "+1415abc0100", "+1234567890123456", "whatsapp:"} {
		if _, err := NormalizeDestination(input); !errors.Is(err, ErrInvalidDestination) {
			t.Fatalf("NormalizeDestination(%q) error = %v, want ErrInvalidDestination", input, err)
		}
	}
}

func TestParseFrequency(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "once", "Daily", " weekly ", "custom"} {
		if _, err := ParseFrequency(input); err != nil {
			t.Fatalf("ParseFrequency(%q) returned error: %v", input, err)
		}
	}
	if _, err := ParseFrequency("hourly"); err == nil {
		t.Fatalf("expected error for unknown frequency")
	}
}

func TestReminderIsDue(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r := Reminder{Status: StatusPending, ScheduledTime: at}

	if !r.IsDue(at) {
		t.Fatalf("reminder scheduled exactly at now should be due")
	}
	if r.IsDue(at.Add(-time.Minute)) {
		t.Fatalf("reminder in the future should not be due")
	}

	r.Status = StatusSent
	if r.IsDue(at.Add(time.Hour)) {
		t.Fatalf("sent reminder should never be due")
	}
	if !r.Status.IsTerminal() || StatusPending.IsTerminal() {
		t.Fatalf("unexpected terminal status classification")
	}
}
