package dispatch

import (
	"time"

	"github.com/pathakanu/pillMemo/internal/model"
)

// RetryPolicy controls how failed deliveries are retried.
// The zero value retries every failed reminder on every tick, forever.
type RetryPolicy struct {
	// MaxAttempts abandons a reminder (status failed) once this many deliveries
	// have failed. Zero means unlimited.
	MaxAttempts int
	// Backoff is the minimum wait after a failed attempt before trying again.
	Backoff time.Duration
}

// ShouldAttempt reports whether r may be delivered on a tick running at now.
func (p RetryPolicy) ShouldAttempt(r model.Reminder, now time.Time) bool {
	if p.Backoff <= 0 || r.Attempts == 0 || r.LastAttemptAt == nil {
		return true
	}
	return !now.Before(r.LastAttemptAt.Add(p.Backoff))
}

// Exhausted reports whether a reminder with the given number of failed attempts should be abandoned.
func (p RetryPolicy) Exhausted(failedAttempts int) bool {
	return p.MaxAttempts > 0 && failedAttempts >= p.MaxAttempts
}
