package database

import (
	"strings"

	"github.com/pathakanu/pillMemo/internal/model"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New creates a GORM database connection and migrates the reminder schema.
// When databaseURL is provided PostgreSQL is used, otherwise SQLite at sqlitePath.
func New(databaseURL, sqlitePath string, log logrus.FieldLogger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	if databaseURL != "" {
		db, err = gorm.Open(postgres.Open(databaseURL), gormConfig)
	} else {
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logBackend(db, sqlitePath, log)
	return db, nil
}

// Migrate creates or updates the tables owned by this service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Reminder{})
}

func logBackend(db *gorm.DB, sqlitePath string, log logrus.FieldLogger) {
	dialector := db.Dialector.Name()
	entry := log.WithField("component", "database")
	switch strings.ToLower(dialector) {
	case "postgres":
		entry.Info("connected to PostgreSQL")
	case "sqlite":
		entry.WithField("path", sqlitePath).Info("using SQLite")
	default:
		entry.Infof("connected via %s", dialector)
	}
}
