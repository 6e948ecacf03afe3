package db

// RateLimitEntry 记录限流用的 IP 哈希及其最近一次命中时间（浮点 Unix 秒）。
// 属于短命数据：闲置约 60 秒后即被清理。
type RateLimitEntry struct {
	IPHash    string  `gorm:"column:ip_hash;primaryKey;size:64"`
	LastHitAt float64 `gorm:"not null;index"`
}

// TableName 指定自定义表名。
func (RateLimitEntry) TableName() string {
	return "rate_limit"
}
