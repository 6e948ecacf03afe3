package db

import (
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN("data/analytics.db")
	if !strings.HasPrefix(dsn, "file:data/analytics.db?") {
		t.Fatalf("unexpected dsn prefix: %s", dsn)
	}
	for _, param := range []string{"_journal_mode=WAL", "_busy_timeout=5000", "_txlock=immediate"} {
		if !strings.Contains(dsn, param) {
			t.Fatalf("dsn missing %s: %s", param, dsn)
		}
	}

	// 显式 DSN 不做二次改写
	if got := buildDSN("file:test?mode=memory"); got != "file:test?mode=memory" {
		t.Fatalf("explicit dsn was rewritten: %s", got)
	}
	if got := buildDSN(":memory:"); got != ":memory:" {
		t.Fatalf("memory dsn was rewritten: %s", got)
	}
}

func setupLogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(
		sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := gdb.AutoMigrate(&LogEntry{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func TestAppendLogTruncatesMessage(t *testing.T) {
	gdb := setupLogTestDB(t)

	AppendLog(gdb, "error", strings.Repeat("x", 3000))

	var entry LogEntry
	if err := gdb.First(&entry).Error; err != nil {
		t.Fatalf("load log entry failed: %v", err)
	}
	if len(entry.Message) != 2000 {
		t.Fatalf("expected message truncated to 2000 chars, got %d", len(entry.Message))
	}
	if entry.Level != "error" {
		t.Fatalf("unexpected level %q", entry.Level)
	}
}

func TestAppendLogPrunesOldEntries(t *testing.T) {
	gdb := setupLogTestDB(t)

	for i := 0; i < LogMaxEntries+25; i++ {
		AppendLog(gdb, "info", "entry")
	}

	var count int64
	gdb.Model(&LogEntry{}).Count(&count)
	if count != LogMaxEntries {
		t.Fatalf("expected %d entries after pruning, got %d", LogMaxEntries, count)
	}

	// 留下的必须是最新的
	var oldest LogEntry
	gdb.Order("id ASC").First(&oldest)
	if oldest.ID != 26 {
		t.Fatalf("expected oldest surviving id 26, got %d", oldest.ID)
	}
}
