package service

import (
	"testing"
	"time"

	"github.com/mintymetrics/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceTestDB(t *testing.T) func() {
	t.Helper()

	gdb, err := gorm.Open(
		sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := gdb.AutoMigrate(
		&db.Hit{},
		&db.DailySummary{},
		&db.RateLimitEntry{},
		&db.Setting{},
		&db.AdminAuth{},
		&db.LogEntry{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestRateLimiterDropsWithinWindow(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	limiter := NewRateLimiter(db.DB).WithPruneChance(func() bool { return false })
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if limiter.ShouldDrop("hash-a", base) {
		t.Fatal("first hit should pass")
	}
	if !limiter.ShouldDrop("hash-a", base.Add(500*time.Millisecond)) {
		t.Fatal("hit inside the window should be dropped")
	}
	if limiter.ShouldDrop("hash-b", base.Add(500*time.Millisecond)) {
		t.Fatal("different hash should pass")
	}
}

func TestRateLimiterAllowsAfterWindow(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	limiter := NewRateLimiter(db.DB).WithPruneChance(func() bool { return false })
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if limiter.ShouldDrop("hash-a", base) {
		t.Fatal("first hit should pass")
	}
	if limiter.ShouldDrop("hash-a", base.Add(1500*time.Millisecond)) {
		t.Fatal("hit after the window should pass")
	}
}

func TestRateLimiterDropDoesNotRefreshWindow(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	limiter := NewRateLimiter(db.DB).WithPruneChance(func() bool { return false })
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	limiter.ShouldDrop("hash-a", base)
	limiter.ShouldDrop("hash-a", base.Add(800*time.Millisecond))

	// 被丢弃的命中不应顺延窗口，1.2 秒后必须重新放行
	if limiter.ShouldDrop("hash-a", base.Add(1200*time.Millisecond)) {
		t.Fatal("dropped hit must not extend the window")
	}
}

func TestRateLimiterPrunesStaleEntries(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	limiter := NewRateLimiter(db.DB).WithPruneChance(func() bool { return true })
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	limiter.ShouldDrop("hash-old", base)
	limiter.ShouldDrop("hash-new", base.Add(2*time.Minute))

	var count int64
	if err := db.DB.Model(&db.RateLimitEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected stale entry to be pruned, got %d entries", count)
	}
}
