package reminder

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pathakanu/pillMemo/internal/logging"
	"github.com/pathakanu/pillMemo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var morning = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err, "open sqlite memory")
	require.NoError(t, db.AutoMigrate(&model.Reminder{}), "auto migrate")

	return NewGormStore(db, logging.Discard())
}

func seedReminder(t *testing.T, s *GormStore, medicine string, at time.Time) model.Reminder {
	t.Helper()

	r := model.Reminder{
		OwnerID:            "patient-1",
		MedicineName:       medicine,
		ScheduledTime:      at,
		DestinationAddress: "+14155550100",
		Frequency:          model.FrequencyDaily,
	}
	require.NoError(t, s.Create(context.Background(), &r))
	return r
}

func loadReminder(t *testing.T, s *GormStore, id uint) *model.Reminder {
	t.Helper()

	r, err := s.FindByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

func TestCreateForcesPending(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	r := model.Reminder{
		OwnerID:            "patient-1",
		MedicineName:       "Metformin",
		ScheduledTime:      morning.In(time.FixedZone("IST", 5*3600+1800)),
		DestinationAddress: "+919876543210",
		Status:             model.StatusSent,
		Attempts:           3,
	}
	require.NoError(t, s.Create(context.Background(), &r))
	require.NotZero(t, r.ID)

	got := loadReminder(t, s, r.ID)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Zero(t, got.Attempts)
	assert.True(t, got.ScheduledTime.Equal(morning))
}

func TestFetchDueSelectsOnlyPendingPastReminders(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	a := seedReminder(t, s, "Amoxicillin", morning)
	b := seedReminder(t, s, "Bisoprolol", morning.Add(5*time.Minute))
	c := seedReminder(t, s, "Cetirizine", morning.Add(-time.Hour))
	require.NoError(t, s.MarkSent(ctx, c.ID, morning))

	due, err := s.FetchDue(ctx, morning.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, a.ID, due[0].ID)

	due, err = s.FetchDue(ctx, morning.Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.ElementsMatch(t, []uint{a.ID, b.ID}, []uint{due[0].ID, due[1].ID})
}

func TestFetchDueIncludesReminderScheduledExactlyNow(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	r := seedReminder(t, s, "Lisinopril", morning)

	due, err := s.FetchDue(context.Background(), morning)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, r.ID, due[0].ID)
}

func TestMarkSentIsIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	r := seedReminder(t, s, "Atorvastatin", morning)

	require.NoError(t, s.MarkSent(ctx, r.ID, morning.Add(time.Minute)))
	require.NoError(t, s.MarkSent(ctx, r.ID, morning.Add(2*time.Minute)))

	got := loadReminder(t, s, r.ID)
	assert.Equal(t, model.StatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.True(t, got.SentAt.Equal(morning.Add(time.Minute)), "second call must not touch the row")

	due, err := s.FetchDue(ctx, morning.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMarkSentUnknownReminder(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	err := s.MarkSent(context.Background(), 4242, morning)
	assert.ErrorIs(t, err, ErrReminderNotFound)
}

func TestRecordFailureKeepsReminderPending(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	r := seedReminder(t, s, "Omeprazole", morning)

	require.NoError(t, s.RecordFailure(ctx, r.ID, morning.Add(time.Minute), "twilio: timeout"))
	require.NoError(t, s.RecordFailure(ctx, r.ID, morning.Add(2*time.Minute), "twilio: 21211 invalid number"))

	got := loadReminder(t, s, r.ID)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "twilio: 21211 invalid number", got.LastError)
	require.NotNil(t, got.LastAttemptAt)
	assert.True(t, got.LastAttemptAt.Equal(morning.Add(2*time.Minute)))

	due, err := s.FetchDue(ctx, morning.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestMarkFailedIsTerminal(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	r := seedReminder(t, s, "Warfarin", morning)

	require.NoError(t, s.MarkFailed(ctx, r.ID, morning, "gave up"))
	require.NoError(t, s.MarkSent(ctx, r.ID, morning))
	require.NoError(t, s.RecordFailure(ctx, r.ID, morning, "ignored"))

	got := loadReminder(t, s, r.ID)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "gave up", got.LastError)
	assert.Nil(t, got.SentAt)
}

func TestListQueries(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	later := seedReminder(t, s, "Vitamin D", morning.Add(time.Hour))
	earlier := seedReminder(t, s, "Iron", morning)
	other := model.Reminder{
		OwnerID:            "patient-2",
		MedicineName:       "Insulin",
		ScheduledTime:      morning,
		DestinationAddress: "+442079460958",
	}
	require.NoError(t, s.Create(ctx, &other))
	require.NoError(t, s.MarkSent(ctx, earlier.ID, morning))

	owned, err := s.ListByOwner(ctx, "patient-1")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, earlier.ID, owned[0].ID)
	assert.Equal(t, later.ID, owned[1].ID)

	pending, err := s.ListPendingByDestination(ctx, "+14155550100")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, later.ID, pending[0].ID)

	_, err = s.FindByID(ctx, 999)
	assert.ErrorIs(t, err, ErrReminderNotFound)
}
