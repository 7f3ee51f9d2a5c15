package database

import (
	"path/filepath"
	"testing"

	"github.com/pathakanu/pillMemo/internal/logging"
	"github.com/pathakanu/pillMemo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.db")

	db, err := New("", path, logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, "sqlite", db.Dialector.Name())
	assert.True(t, db.Migrator().HasTable(&model.Reminder{}))
	assert.True(t, db.Migrator().HasIndex(&model.Reminder{}, "idx_reminders_due"))
}
