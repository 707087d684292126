package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB opens a fresh migrated sqlite database in the test's temp dir.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "crm.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := autoMigrateAll(db); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func autoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Customer{},
		&domain.User{},
		&domain.Contact{},
		&domain.Channel{},
		&domain.Conversation{},
		&domain.Message{},
		&domain.Ticket{},
		&domain.Automation{},
		&domain.Template{},
		&domain.Webhook{},
		&domain.ActivityLog{},
	)
}
