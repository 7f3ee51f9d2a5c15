package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pathakanu/pillMemo/internal/model"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrReminderNotFound is returned when no reminder exists for the given id.
var ErrReminderNotFound = errors.New("reminder not found")

// Store is the persistence contract the dispatcher relies on.
type Store interface {
	// FetchDue returns every pending reminder scheduled at or before now.
	FetchDue(ctx context.Context, now time.Time) ([]model.Reminder, error)
	// MarkSent moves a pending reminder to sent. Calling it on a reminder that
	// already left pending is a no-op.
	MarkSent(ctx context.Context, id uint, at time.Time) error
	// RecordFailure notes a failed delivery attempt and keeps the reminder pending.
	RecordFailure(ctx context.Context, id uint, at time.Time, reason string) error
	// MarkFailed moves a pending reminder to the terminal failed state.
	MarkFailed(ctx context.Context, id uint, at time.Time, reason string) error
}

// GormStore implements Store and the intake queries on top of GORM.
type GormStore struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// NewGormStore creates a store bound to db.
func NewGormStore(db *gorm.DB, log logrus.FieldLogger) *GormStore {
	return &GormStore{
		db:  db,
		log: log.WithField("component", "reminder_store"),
	}
}

// Create persists a new reminder. The status is always reset to pending.
func (s *GormStore) Create(ctx context.Context, r *model.Reminder) error {
	r.Status = model.StatusPending
	r.ScheduledTime = r.ScheduledTime.UTC()
	r.Attempts = 0
	r.SentAt = nil
	r.LastAttemptAt = nil

	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		s.log.WithError(err).WithField("owner_id", r.OwnerID).Error("failed to save reminder")
		return fmt.Errorf("create reminder: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"reminder_id":    r.ID,
		"owner_id":       r.OwnerID,
		"scheduled_time": r.ScheduledTime,
	}).Debug("reminder saved")
	return nil
}

// FindByID loads a single reminder.
func (s *GormStore) FindByID(ctx context.Context, id uint) (*model.Reminder, error) {
	var r model.Reminder
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("find reminder %d: %w", id, err)
	}
	return &r, nil
}

// ListByOwner returns all reminders of an owner ordered by schedule.
func (s *GormStore) ListByOwner(ctx context.Context, ownerID string) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("scheduled_time ASC, id ASC").
		Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list reminders for %s: %w", ownerID, err)
	}
	return reminders, nil
}

// ListPendingByDestination returns pending reminders addressed to destination.
func (s *GormStore) ListPendingByDestination(ctx context.Context, destination string) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := s.db.WithContext(ctx).
		Where("destination_address = ? AND status = ?", destination, model.StatusPending).
		Order("scheduled_time ASC, id ASC").
		Find(&reminders).Error; err != nil {
		return nil, fmt.Errorf("list pending reminders for %s: %w", destination, err)
	}
	return reminders, nil
}

// FetchDue returns pending reminders scheduled at or before now, oldest first.
func (s *GormStore) FetchDue(ctx context.Context, now time.Time) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_time <= ?", model.StatusPending, now.UTC()).
		Order("scheduled_time ASC, id ASC").
		Find(&reminders).Error; err != nil {
		s.log.WithError(err).Error("failed to fetch due reminders")
		return nil, fmt.Errorf("fetch due reminders: %w", err)
	}
	return reminders, nil
}

// MarkSent moves a pending reminder to sent and stamps sent_at.
func (s *GormStore) MarkSent(ctx context.Context, id uint, at time.Time) error {
	sentAt := at.UTC()
	return s.transition(ctx, id, map[string]any{
		"status":          model.StatusSent,
		"sent_at":         &sentAt,
		"last_attempt_at": &sentAt,
		"last_error":      "",
	})
}

// RecordFailure bumps the attempt counter and stores the failure reason.
func (s *GormStore) RecordFailure(ctx context.Context, id uint, at time.Time, reason string) error {
	attemptAt := at.UTC()
	return s.transition(ctx, id, map[string]any{
		"attempts":        gorm.Expr("attempts + 1"),
		"last_error":      reason,
		"last_attempt_at": &attemptAt,
	})
}

// MarkFailed moves a pending reminder to the terminal failed state.
func (s *GormStore) MarkFailed(ctx context.Context, id uint, at time.Time, reason string) error {
	attemptAt := at.UTC()
	return s.transition(ctx, id, map[string]any{
		"status":          model.StatusFailed,
		"attempts":        gorm.Expr("attempts + 1"),
		"last_error":      reason,
		"last_attempt_at": &attemptAt,
	})
}

// transition applies updates to a reminder that is still pending. A reminder
// that already left pending is left untouched without error.
func (s *GormStore) transition(ctx context.Context, id uint, updates map[string]any) error {
	db := s.db.WithContext(ctx)

	result := db.Model(&model.Reminder{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update reminder %d: %w", id, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&model.Reminder{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("check reminder %d: %w", id, err)
	}
	if count == 0 {
		return ErrReminderNotFound
	}

	s.log.WithField("reminder_id", id).Debug("reminder already left pending, skipping update")
	return nil
}
