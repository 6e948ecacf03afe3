package service

import "time"

// 采集与归档相关的默认值及长度上限。
const (
	DefaultRetentionDays      = 90
	DefaultMaxDBSizeMB        = 100.0
	DefaultLiveVisitorMinutes = 5

	// RateLimitWindow 是同一来源 IP 两次命中之间的最小间隔。
	RateLimitWindow = time.Second
	// RateLimitIdleSeconds 之后的限流记录视为过期。
	RateLimitIdleSeconds = 60

	// AggressivePruneDays 是体积超限时的强制保留下限，与配置的保留期无关。
	AggressivePruneDays = 30

	LoginMaxAttempts    = 5
	LoginLockoutMinutes = 15

	MaxPagePath   = 2048
	MaxReferrer   = 2048
	MaxUTMField   = 256
	MaxScreenRes  = 20
	MaxLanguage   = 20
	MaxSiteDomain = 253

	ExportMaxRows = 100000
)
