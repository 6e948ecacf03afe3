package service

import (
	"errors"
	"math/rand"
	"time"

	"github.com/mintymetrics/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RateLimiter 对来源 IP 哈希做窗口去重：窗口内的重复命中直接丢弃。
// 任何存储错误都按"放行"处理，限流永远不能挡住正常采集。
type RateLimiter struct {
	db          *gorm.DB
	window      time.Duration
	pruneChance func() bool
}

// NewRateLimiter 创建 RateLimiter，默认窗口 1 秒、约 1% 概率顺带清理过期记录。
func NewRateLimiter(gdb *gorm.DB) *RateLimiter {
	return &RateLimiter{
		db:          gdb,
		window:      RateLimitWindow,
		pruneChance: func() bool { return rand.Intn(100) == 0 },
	}
}

// WithWindow 允许在测试或特定场景下调整去重窗口。
func (r *RateLimiter) WithWindow(d time.Duration) *RateLimiter {
	if d <= 0 {
		return r
	}
	r.window = d
	return r
}

// WithPruneChance 覆盖顺带清理的触发函数，主要面向测试场景。
func (r *RateLimiter) WithPruneChance(f func() bool) *RateLimiter {
	if f == nil {
		return r
	}
	r.pruneChance = f
	return r
}

// ShouldDrop 判断该 IP 哈希是否应被丢弃，并更新最近命中时间。
// 窗口内的重复命中返回 true 且不刷新时间戳。
func (r *RateLimiter) ShouldDrop(ipHash string, now time.Time) bool {
	nowF := float64(now.UnixNano()) / 1e9

	var entry db.RateLimitEntry
	err := r.db.Where("ip_hash = ?", ipHash).First(&entry).Error
	if err == nil && nowF-entry.LastHitAt < r.window.Seconds() {
		return true
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}

	upsert := db.RateLimitEntry{IPHash: ipHash, LastHitAt: nowF}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip_hash"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_hit_at": nowF}),
	}).Create(&upsert).Error; err != nil {
		return false
	}

	if r.pruneChance() {
		r.db.Where("last_hit_at < ?", nowF-RateLimitIdleSeconds).Delete(&db.RateLimitEntry{})
	}

	return false
}
