package message

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "relay.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Record{}, &Counter{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func mustIndex(t *testing.T, value int64) Index {
	t.Helper()
	index, err := NewIndex(value)
	if err != nil {
		t.Fatalf("unexpected index error: %v", err)
	}
	return index
}

func mustText(t *testing.T, value string) Text {
	t.Helper()
	text, err := NewText(value)
	if err != nil {
		t.Fatalf("unexpected text error: %v", err)
	}
	return text
}

func mustImagePayload(t *testing.T, value string) ImagePayload {
	t.Helper()
	payload, err := NewImagePayload(value)
	if err != nil {
		t.Fatalf("unexpected image payload error: %v", err)
	}
	return payload
}

func mustStore(t *testing.T, db *gorm.DB) *Store {
	t.Helper()
	store, err := NewStore(StoreConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func mustAllocator(t *testing.T, db *gorm.DB) *Allocator {
	t.Helper()
	allocator, err := NewAllocator(AllocatorConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create allocator: %v", err)
	}
	return allocator
}
