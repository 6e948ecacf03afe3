package db

// DailySummary 保存某个 (date, site) 的日聚合结果，写入后不再修改。
// 唯一索引保证同一天同一站点至多一行，汇总因此可以安全重试。
// 各分类字段存储 JSON 文本：值 → 去重访客数 的映射（top-N 截断）。
type DailySummary struct {
	ID               uint     `gorm:"primaryKey"`
	Date             string   `gorm:"size:10;not null;uniqueIndex:idx_summary_date_site,priority:1;index:idx_summaries_site_date,priority:2"`
	Site             string   `gorm:"size:253;not null;default:'';uniqueIndex:idx_summary_date_site,priority:2;index:idx_summaries_site_date,priority:1"`
	Pageviews        int64    `gorm:"not null;default:0"`
	UniqueVisitors   int64    `gorm:"not null;default:0"`
	BounceRate       *float64 `gorm:"column:bounce_rate"`
	AvgTimeOnPage    *float64 `gorm:"column:avg_time_on_page"`
	TopPages         string   `gorm:"type:text"`
	TopReferrers     string   `gorm:"type:text"`
	TopCountries     string   `gorm:"type:text"`
	Devices          string   `gorm:"type:text"`
	Browsers         string   `gorm:"type:text"`
	OperatingSystems string   `gorm:"type:text"`
	UTMSummary       string   `gorm:"column:utm_summary;type:text"`
	Screens          string   `gorm:"type:text"`
	Languages        string   `gorm:"type:text"`
}

// TableName 指定自定义表名。
func (DailySummary) TableName() string {
	return "daily_summaries"
}
