package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/mintymetrics/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrLockedOut 表示连续失败过多，登录被暂时锁定。
var ErrLockedOut = errors.New("too many failed attempts, try again later")

// ErrInvalidPassword 表示密码不匹配。
var ErrInvalidPassword = errors.New("invalid password")

// AuthService 管理单一管理员口令：校验、失败锁定与口令设置。
type AuthService struct {
	db *gorm.DB
}

// NewAuthService 构造 AuthService。
func NewAuthService(gdb *gorm.DB) *AuthService {
	return &AuthService{db: gdb}
}

// HasPassword 判断是否已设置管理员口令。
func (a *AuthService) HasPassword() bool {
	var count int64
	if err := a.db.Model(&db.AdminAuth{}).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// SetPassword 设置或更新管理员口令，并清零失败计数。
func (a *AuthService) SetPassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var auth db.AdminAuth
	err = a.db.First(&auth).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		auth = db.AdminAuth{PasswordHash: string(hash)}
		return a.db.Create(&auth).Error
	}
	if err != nil {
		return err
	}

	return a.db.Model(&auth).Updates(map[string]interface{}{
		"password_hash":   string(hash),
		"failed_attempts": 0,
		"last_failed_at":  nil,
		"lockout_until":   nil,
	}).Error
}

// EnsurePassword 在尚未设置口令时用给定口令初始化，已设置则不动。
func (a *AuthService) EnsurePassword(password string) error {
	if password == "" || a.HasPassword() {
		return nil
	}
	return a.SetPassword(password)
}

// Login 校验管理员口令。连续失败达到上限后锁定一段时间，
// 锁定期间即使口令正确也拒绝。
func (a *AuthService) Login(password string, now time.Time) error {
	var auth db.AdminAuth
	if err := a.db.First(&auth).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidPassword
		}
		return err
	}

	if auth.LockoutUntil != nil && now.Unix() < *auth.LockoutUntil {
		return ErrLockedOut
	}

	if bcrypt.CompareHashAndPassword([]byte(auth.PasswordHash), []byte(password)) != nil {
		failedAt := now.Unix()
		updates := map[string]interface{}{
			"failed_attempts": auth.FailedAttempts + 1,
			"last_failed_at":  failedAt,
		}
		if auth.FailedAttempts+1 >= LoginMaxAttempts {
			updates["lockout_until"] = failedAt + int64(LoginLockoutMinutes)*60
		}
		if err := a.db.Model(&auth).Updates(updates).Error; err != nil {
			db.AppendLog(a.db, "error", "record failed login: "+err.Error())
		}
		return ErrInvalidPassword
	}

	if auth.FailedAttempts > 0 || auth.LockoutUntil != nil {
		if err := a.db.Model(&auth).Updates(map[string]interface{}{
			"failed_attempts": 0,
			"last_failed_at":  nil,
			"lockout_until":   nil,
		}).Error; err != nil {
			db.AppendLog(a.db, "error", "reset failed login counter: "+err.Error())
		}
	}
	return nil
}
