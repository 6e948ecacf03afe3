package service

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mintymetrics/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// summaryDimension 是参与日聚合的维度列。列名取自固定白名单，
// 绝不拼接任何外部输入。
type summaryDimension struct {
	column   string
	nullable bool
	topN     int
	assign   func(*db.DailySummary, string)
}

var summaryDimensions = []summaryDimension{
	{"page_path", false, 50, func(s *db.DailySummary, v string) { s.TopPages = v }},
	{"referrer_domain", true, 50, func(s *db.DailySummary, v string) { s.TopReferrers = v }},
	{"country_code", true, 50, func(s *db.DailySummary, v string) { s.TopCountries = v }},
	{"device_type", false, 10, func(s *db.DailySummary, v string) { s.Devices = v }},
	{"browser", false, 20, func(s *db.DailySummary, v string) { s.Browsers = v }},
	{"os", false, 20, func(s *db.DailySummary, v string) { s.OperatingSystems = v }},
	{"screen_res", true, 20, func(s *db.DailySummary, v string) { s.Screens = v }},
	{"language", true, 20, func(s *db.DailySummary, v string) { s.Languages = v }},
}

// UTMSummaryEntry 是 UTM 三元组聚合的一项，计数口径为去重访客数。
type UTMSummaryEntry struct {
	Source   *string `json:"source"`
	Medium   *string `json:"medium"`
	Campaign *string `json:"campaign"`
	Count    int64   `json:"count"`
}

// CleanupService 负责数据归档：过期明细汇总为日摘要、删除明细、
// 清理限流表并在体积超限时强制收缩。
type CleanupService struct {
	db       *gorm.DB
	settings *SettingsService
	dbSize   func() float64
}

// NewCleanupService 构造 CleanupService。
func NewCleanupService(gdb *gorm.DB, settings *SettingsService) *CleanupService {
	return &CleanupService{
		db:       gdb,
		settings: settings,
		dbSize:   db.SizeMB,
	}
}

// WithSizeFunc 替换数据库体积探测函数，主要面向测试场景。
func (c *CleanupService) WithSizeFunc(f func() float64) *CleanupService {
	if f != nil {
		c.dbSize = f
	}
	return c
}

// Run 执行一轮归档。同一天内重复调用是空操作：
// 归档由读路径顺带触发，不能每个请求都跑一遍。
func (c *CleanupService) Run(now time.Time) error {
	today := now.UTC().Format("2006-01-02")
	if c.settings.Get(db.SettingKeyLastCleanup, "") == today {
		return nil
	}

	retention := c.settings.GetInt(db.SettingKeyRetentionDays, DefaultRetentionDays)
	if retention < 1 {
		retention = DefaultRetentionDays
	}
	cutoff := now.UTC().AddDate(0, 0, -retention).Unix()

	// 先汇总再删除：任何一天汇总失败就中止，明细得以保留下次重试
	type dayPair struct {
		Day  string
		Site string
	}
	var pairs []dayPair
	err := c.db.Raw(
		"SELECT DISTINCT DATE(created_at, 'unixepoch') AS day, site FROM hits WHERE created_at < ? ORDER BY day",
		cutoff,
	).Scan(&pairs).Error
	if err != nil {
		return fmt.Errorf("discover expired days: %w", err)
	}

	for _, p := range pairs {
		if err := c.SummarizeDay(p.Day, p.Site); err != nil {
			return fmt.Errorf("summarize %s/%s: %w", p.Day, p.Site, err)
		}
	}

	if len(pairs) > 0 {
		if err := c.db.Where("created_at < ?", cutoff).Delete(&db.Hit{}).Error; err != nil {
			return fmt.Errorf("prune expired hits: %w", err)
		}
	}

	nowF := float64(now.UnixNano()) / 1e9
	c.db.Where("last_hit_at < ?", nowF-RateLimitIdleSeconds).Delete(&db.RateLimitEntry{})

	// 日志上限在写入时已经裁剪，这里再扫一遍兜底
	c.db.Exec(
		"DELETE FROM logs WHERE id NOT IN (SELECT id FROM logs ORDER BY id DESC LIMIT ?)",
		db.LogMaxEntries,
	)

	if maxMB := c.settings.GetFloat(db.SettingKeyMaxDBSizeMB, DefaultMaxDBSizeMB); c.dbSize() > maxMB {
		aggressiveCutoff := now.UTC().AddDate(0, 0, -AggressivePruneDays).Unix()
		if err := c.db.Where("created_at < ?", aggressiveCutoff).Delete(&db.Hit{}).Error; err != nil {
			return fmt.Errorf("aggressive prune: %w", err)
		}
		c.db.Exec("PRAGMA incremental_vacuum(100)")
		db.AppendLog(c.db, "warn", fmt.Sprintf("database over %.0f MB, pruned hits older than %d days", maxMB, AggressivePruneDays))
	}

	return c.settings.Set(db.SettingKeyLastCleanup, today)
}

// SummarizeDay 将指定 (日期, 站点) 的明细聚合为一行日摘要。
// 已有摘要或当天无数据时直接跳过，重复调用安全。
func (c *CleanupService) SummarizeDay(date, site string) error {
	var existing int64
	if err := c.db.Model(&db.DailySummary{}).
		Where("date = ? AND site = ?", date, site).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	dayStart, err := time.Parse("2006-01-02", date)
	if err != nil {
		return fmt.Errorf("bad summary date %q: %w", date, err)
	}
	from := dayStart.UTC().Unix()
	to := from + 86399

	scope := func() *gorm.DB {
		return c.db.Model(&db.Hit{}).
			Where("site = ? AND created_at BETWEEN ? AND ?", site, from, to)
	}

	var pageviews int64
	if err := scope().Count(&pageviews).Error; err != nil {
		return err
	}
	if pageviews == 0 {
		return nil
	}

	var uniques int64
	if err := scope().Distinct("visitor_hash").Count(&uniques).Error; err != nil {
		return err
	}

	// 跳出率 = 当天只有一次浏览的访客占比，取 [0,1] 小数
	var bounced int64
	err = c.db.Raw(
		`SELECT COUNT(*) FROM (
			SELECT visitor_hash FROM hits
			WHERE site = ? AND created_at BETWEEN ? AND ?
			GROUP BY visitor_hash HAVING COUNT(*) = 1
		)`,
		site, from, to,
	).Scan(&bounced).Error
	if err != nil {
		return err
	}

	summary := db.DailySummary{
		Date:           date,
		Site:           site,
		Pageviews:      pageviews,
		UniqueVisitors: uniques,
	}

	if uniques > 0 {
		rate := round(float64(bounced)/float64(uniques), 4)
		summary.BounceRate = &rate
	}

	var avgTime *float64
	if err := scope().
		Select("AVG(time_on_page)").
		Where("time_on_page IS NOT NULL").
		Scan(&avgTime).Error; err != nil {
		return err
	}
	if avgTime != nil {
		v := round(*avgTime, 1)
		summary.AvgTimeOnPage = &v
	}

	for _, dim := range summaryDimensions {
		encoded, err := c.summarizeColumn(dim, site, from, to)
		if err != nil {
			return err
		}
		dim.assign(&summary, encoded)
	}

	utm, err := c.summarizeUTM(site, from, to)
	if err != nil {
		return err
	}
	summary.UTMSummary = utm

	return c.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&summary).Error
}

// summarizeColumn 对单个维度列做 值 → 去重访客数 的 top-N 聚合。
func (c *CleanupService) summarizeColumn(dim summaryDimension, site string, from, to int64) (string, error) {
	type row struct {
		Value string
		Count int64
	}

	query := c.db.Model(&db.Hit{}).
		Select(dim.column+" AS value, COUNT(DISTINCT visitor_hash) AS count").
		Where("site = ? AND created_at BETWEEN ? AND ?", site, from, to)
	if dim.nullable {
		query = query.Where(dim.column + " IS NOT NULL")
	}

	var rows []row
	if err := query.
		Group(dim.column).
		Order("count DESC").
		Limit(dim.topN).
		Scan(&rows).Error; err != nil {
		return "", err
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Value] = r.Count
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// summarizeUTM 按去重访客数聚合 UTM 三元组；三个字段全空的明细不参与。
func (c *CleanupService) summarizeUTM(site string, from, to int64) (string, error) {
	var entries []UTMSummaryEntry
	err := c.db.Model(&db.Hit{}).
		Select("utm_source AS source, utm_medium AS medium, utm_campaign AS campaign, COUNT(DISTINCT visitor_hash) AS count").
		Where("site = ? AND created_at BETWEEN ? AND ?", site, from, to).
		Where("utm_source IS NOT NULL OR utm_medium IS NOT NULL OR utm_campaign IS NOT NULL").
		Group("utm_source, utm_medium, utm_campaign").
		Order("count DESC").
		Limit(50).
		Scan(&entries).Error
	if err != nil {
		return "", err
	}

	if entries == nil {
		entries = []UTMSummaryEntry{}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })
	encoded, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func round(v float64, places int) float64 {
	factor := math.Pow10(places)
	return math.Round(v*factor) / factor
}
