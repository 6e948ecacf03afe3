package db

// Setting 存储系统级键值对配置。
type Setting struct {
	Key   string `gorm:"primaryKey;size:100"`
	Value string `gorm:"type:text;not null"`
}

// TableName 指定自定义表名。
func (Setting) TableName() string {
	return "settings"
}

const (
	// SettingKeyRetentionDays 表示原始数据保留天数。
	SettingKeyRetentionDays = "data_retention_days"
	// SettingKeyMaxDBSizeMB 表示数据库体积上限（MB）。
	SettingKeyMaxDBSizeMB = "max_db_size_mb"
	// SettingKeyRespectDNT 表示是否尊重 DNT / GPC 信号。
	SettingKeyRespectDNT = "respect_dnt"
	// SettingKeyEnableGeo 表示是否启用地理位置解析。
	SettingKeyEnableGeo = "enable_geo"
	// SettingKeyLiveVisitorMinutes 表示在线访客统计窗口（分钟）。
	SettingKeyLiveVisitorMinutes = "live_visitor_minutes"
	// SettingKeyAllowedDomains 表示允许的站点域名列表（JSON 数组）。
	SettingKeyAllowedDomains = "allowed_domains"
	// SettingKeyDailySalt 表示当日访客哈希盐值。
	SettingKeyDailySalt = "daily_salt"
	// SettingKeySaltDate 表示盐值生成日期（YYYY-MM-DD）。
	SettingKeySaltDate = "salt_date"
	// SettingKeyLastCleanup 表示最近一次清理归档的日期。
	SettingKeyLastCleanup = "last_cleanup"
)
