package service

import (
	"errors"
	"testing"
	"time"

	"github.com/mintymetrics/internal/db"
)

func TestAuthSetAndLogin(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	auth := NewAuthService(db.DB)
	if auth.HasPassword() {
		t.Fatal("fresh database should have no password")
	}

	if err := auth.SetPassword("short"); err == nil {
		t.Fatal("short password must be rejected")
	}
	if err := auth.SetPassword("correct-horse-battery"); err != nil {
		t.Fatalf("set password failed: %v", err)
	}
	if !auth.HasPassword() {
		t.Fatal("password should be set")
	}

	now := time.Now()
	if err := auth.Login("correct-horse-battery", now); err != nil {
		t.Fatalf("login with correct password failed: %v", err)
	}
	if err := auth.Login("wrong", now); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestAuthLockoutAfterRepeatedFailures(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	auth := NewAuthService(db.DB)
	if err := auth.SetPassword("correct-horse-battery"); err != nil {
		t.Fatalf("set password failed: %v", err)
	}

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < LoginMaxAttempts; i++ {
		if err := auth.Login("wrong", now); !errors.Is(err, ErrInvalidPassword) {
			t.Fatalf("attempt %d: expected ErrInvalidPassword, got %v", i+1, err)
		}
	}

	// 锁定期内连正确口令也拒绝
	if err := auth.Login("correct-horse-battery", now.Add(time.Minute)); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected ErrLockedOut, got %v", err)
	}

	// 锁定过期后恢复，成功登录清零计数
	after := now.Add(time.Duration(LoginLockoutMinutes+1) * time.Minute)
	if err := auth.Login("correct-horse-battery", after); err != nil {
		t.Fatalf("login after lockout expiry failed: %v", err)
	}

	var record db.AdminAuth
	if err := db.DB.First(&record).Error; err != nil {
		t.Fatalf("load auth record failed: %v", err)
	}
	if record.FailedAttempts != 0 || record.LockoutUntil != nil {
		t.Fatalf("successful login should reset lockout state: %+v", record)
	}
}

func TestAuthEnsurePassword(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	auth := NewAuthService(db.DB)
	if err := auth.EnsurePassword(""); err != nil {
		t.Fatalf("empty ensure should be a no-op: %v", err)
	}
	if auth.HasPassword() {
		t.Fatal("empty ensure must not set a password")
	}

	if err := auth.EnsurePassword("first-password-1"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	// 已设置的口令不被覆盖
	if err := auth.EnsurePassword("second-password-2"); err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	if err := auth.Login("first-password-1", time.Now()); err != nil {
		t.Fatalf("original password should still work: %v", err)
	}
}
