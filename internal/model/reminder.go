package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the delivery state of a reminder.
type Status string

const (
	// StatusPending marks a reminder that has not been delivered yet.
	StatusPending Status = "pending"
	// StatusSent marks a delivered reminder. It is terminal.
	StatusSent Status = "sent"
	// StatusFailed marks a reminder abandoned after the retry policy ran out. It is terminal.
	StatusFailed Status = "failed"
)

// Frequency describes how often a reminder recurs. The dispatcher never expands it.
type Frequency string

const (
	// FrequencyOnce is a one-off reminder.
	FrequencyOnce Frequency = "once"
	// FrequencyDaily repeats every day.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly repeats every week.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyCustom follows a schedule kept by the portal.
	FrequencyCustom Frequency = "custom"
)

// ErrInvalidDestination is returned when a contact address cannot be normalised.
var ErrInvalidDestination = errors.New("invalid destination address")

// Reminder represents a scheduled medicine notification for a portal user.
type Reminder struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	OwnerID            string     `gorm:"index;not null" json:"owner_id"`
	MedicineName       string     `gorm:"type:text;not null" json:"medicine_name"`
	ScheduledTime      time.Time  `gorm:"index:idx_reminders_due,priority:2;not null" json:"scheduled_time"`
	DestinationAddress string     `gorm:"index;not null" json:"destination_address"`
	Status             Status     `gorm:"type:varchar(16);index:idx_reminders_due,priority:1;not null;default:pending" json:"status"`
	Frequency          Frequency  `gorm:"type:varchar(16)" json:"frequency,omitempty"`
	Attempts           int        `gorm:"not null;default:0" json:"attempts"`
	LastError          string     `gorm:"type:text" json:"last_error,omitempty"`
	LastAttemptAt      *time.Time `json:"last_attempt_at,omitempty"`
	SentAt             *time.Time `json:"sent_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// IsDue reports whether the reminder should be picked up by a tick at now.
func (r Reminder) IsDue(now time.Time) bool {
	return r.Status == StatusPending && !r.ScheduledTime.After(now)
}

// ParseFrequency validates a frequency label. An empty label is allowed.
func ParseFrequency(value string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(value)))
	switch f {
	case "", FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyCustom:
		return f, nil
	default:
		return "", fmt.Errorf("unknown frequency %q", value)
	}
}

// NormalizeDestination converts a phone number into +<digits> form.
// A whatsapp: prefix and common separators are accepted; a leading 00 is treated as +.
func NormalizeDestination(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	trimmed = strings.TrimPrefix(trimmed, "whatsapp:")

	replacer := strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
	trimmed = replacer.Replace(trimmed)

	switch {
	case strings.HasPrefix(trimmed, "+"):
		trimmed = trimmed[1:]
	case strings.HasPrefix(trimmed, "00"):
		trimmed = trimmed[2:]
	}

	if len(trimmed) < 8 || len(trimmed) > 15 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDestination, address)
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidDestination, address)
		}
	}
	return "+" + trimmed, nil
}
