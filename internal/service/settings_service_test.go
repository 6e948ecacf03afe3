package service

import (
	"testing"
	"time"

	"github.com/mintymetrics/internal/db"
)

func TestSettingsRoundTrip(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewSettingsService(db.DB)

	if got := svc.Get("nonexistent", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for unset key, got %q", got)
	}

	if err := svc.Set(db.SettingKeyRetentionDays, "30"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got := svc.GetInt(db.SettingKeyRetentionDays, 90); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}

	if err := svc.SetBool(db.SettingKeyRespectDNT, false); err != nil {
		t.Fatalf("set bool failed: %v", err)
	}
	if svc.GetBool(db.SettingKeyRespectDNT, true) {
		t.Fatal("expected respect_dnt to be false after SetBool")
	}
}

func TestSettingsCacheInvalidation(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewSettingsService(db.DB)
	if err := svc.Set(db.SettingKeyRetentionDays, "90"); err != nil {
		t.Fatalf("seed setting failed: %v", err)
	}

	// 绕过服务直接改库，缓存失效前后读到的值应当不同
	if err := db.DB.Exec(
		"UPDATE settings SET value = '14' WHERE key = ?", db.SettingKeyRetentionDays,
	).Error; err != nil {
		t.Fatalf("direct update failed: %v", err)
	}

	if got := svc.GetInt(db.SettingKeyRetentionDays, 90); got != 90 {
		t.Fatalf("expected cached 90 before invalidation, got %d", got)
	}

	svc.Invalidate(db.SettingKeyRetentionDays)
	if got := svc.GetInt(db.SettingKeyRetentionDays, 90); got != 14 {
		t.Fatalf("expected 14 after invalidation, got %d", got)
	}
}

func TestAllowedDomainsRoundTrip(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewSettingsService(db.DB)

	if got := svc.AllowedDomains(); len(got) != 0 {
		t.Fatalf("expected empty allow-list by default, got %v", got)
	}

	if err := svc.SetAllowedDomains([]string{"example.com", "blog.example.org"}); err != nil {
		t.Fatalf("set allowed domains failed: %v", err)
	}
	got := svc.AllowedDomains()
	if len(got) != 2 || got[0] != "example.com" || got[1] != "blog.example.org" {
		t.Fatalf("unexpected allow-list: %v", got)
	}
}

func TestDailySaltStableWithinDay(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewSettingsService(db.DB)
	morning := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)

	a := svc.DailySalt(morning)
	b := svc.DailySalt(evening)
	if a == "" {
		t.Fatal("salt must not be empty")
	}
	if a != b {
		t.Fatal("salt changed within the same day")
	}

	// 新的服务实例（模拟进程重启）必须复用落库的盐值
	fresh := NewSettingsService(db.DB)
	if fresh.DailySalt(evening) != a {
		t.Fatal("restarted service minted a new salt for the same day")
	}
}

func TestDailySaltRotatesAcrossDays(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	svc := NewSettingsService(db.DB)
	day1 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 0, 0, 1, 0, time.UTC)

	a := svc.DailySalt(day1)
	b := svc.DailySalt(day2)
	if a == b {
		t.Fatal("salt did not rotate across the day boundary")
	}

	// 轮换之后同一访客的哈希随之改变，跨日不可关联
	hashDay1 := GenerateVisitorHash("203.0.113.7", "Mozilla/5.0", a)
	hashDay2 := GenerateVisitorHash("203.0.113.7", "Mozilla/5.0", b)
	if hashDay1 == hashDay2 {
		t.Fatal("same visitor produced identical hashes on different days")
	}
}
