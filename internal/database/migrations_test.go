package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pixelrelay/relay/internal/message"
)

func TestApplyMigrationsSeedsMessageCounter(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&message.Record{}, &message.Counter{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var counter message.Counter
	if err := database.Where("name = ?", message.CounterName).Take(&counter).Error; err != nil {
		testContext.Fatalf("expected counter row to be seeded: %v", err)
	}
	if counter.LastIssued != 0 {
		testContext.Fatalf("expected seeded counter at 0, got %d", counter.LastIssued)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationSeedMessageCounter).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsDoesNotResetAdvancedCounter(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&message.Counter{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	if err := database.Create(&message.Counter{Name: message.CounterName, LastIssued: 7}).Error; err != nil {
		testContext.Fatalf("failed to insert counter: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var counter message.Counter
	if err := database.Where("name = ?", message.CounterName).Take(&counter).Error; err != nil {
		testContext.Fatalf("failed to reload counter: %v", err)
	}
	if counter.LastIssued != 7 {
		testContext.Fatalf("migration must not move an advanced counter, got %d", counter.LastIssued)
	}
}

func TestOpenSQLiteRequiresPath(testContext *testing.T) {
	if _, err := OpenSQLite("", zap.NewNop()); err == nil {
		testContext.Fatalf("expected error for empty database path")
	}
}
