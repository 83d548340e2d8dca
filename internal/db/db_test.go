package db

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// The repo and service suites migrate the production schema into in-memory
// sqlite, so every column default in the model tags has to be DDL both
// dialects accept.
func TestAutoMigrateSQLite(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file:TestAutoMigrateSQLite?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("raw db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// an insert that leaves the timestamp columns to their DDL defaults
	if err := gdb.Exec(
		`INSERT INTO problem (name, description, is_default, prioritized, polarity) VALUES (?, ?, ?, ?, ?)`,
		"Street lighting outages", "", true, false, "negative",
	).Error; err != nil {
		t.Fatalf("raw insert: %v", err)
	}
	var stamped int64
	if err := gdb.Raw(
		`SELECT COUNT(*) FROM problem WHERE name = ? AND created_at IS NOT NULL AND updated_at IS NOT NULL`,
		"Street lighting outages",
	).Scan(&stamped).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if stamped != 1 {
		t.Fatal("timestamp defaults not applied")
	}
}
