package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mintymetrics/internal/db"
	"gorm.io/gorm"
)

// MaxBreakdownLimit 是单次分类查询能返回的最大行数。
const MaxBreakdownLimit = 500

// SummaryStats 是概览查询的结果。明细已被归档的日期只能从日摘要取数，
// 此时跳出率与平均停留为近似值，Approximate 置位。
type SummaryStats struct {
	Pageviews      int64    `json:"pageviews"`
	UniqueVisitors int64    `json:"unique_visitors"`
	BounceRate     *float64 `json:"bounce_rate"`
	AvgTimeOnPage  *float64 `json:"avg_time_on_page"`
	Approximate    bool     `json:"approximate"`
}

// ChartPoint 是按天图表的一个点。
type ChartPoint struct {
	Date      string `json:"date"`
	Pageviews int64  `json:"pageviews"`
	Visitors  int64  `json:"visitors"`
}

// BreakdownRow 是单维度分类查询的一行。
type BreakdownRow struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// UTMRow 是 UTM 三元组分类查询的一行。
type UTMRow struct {
	Source   *string `json:"source"`
	Medium   *string `json:"medium"`
	Campaign *string `json:"campaign"`
	Count    int64   `json:"count"`
}

// breakdownColumns 把对外的维度名映射到明细列与摘要字段。
// 维度名是封闭集合，未知名字直接报错，列名绝不来自请求。
var breakdownColumns = map[string]struct {
	column  string
	extract func(*db.DailySummary) string
}{
	"pages":     {"page_path", func(s *db.DailySummary) string { return s.TopPages }},
	"referrers": {"referrer_domain", func(s *db.DailySummary) string { return s.TopReferrers }},
	"countries": {"country_code", func(s *db.DailySummary) string { return s.TopCountries }},
	"devices":   {"device_type", func(s *db.DailySummary) string { return s.Devices }},
	"browsers":  {"browser", func(s *db.DailySummary) string { return s.Browsers }},
	"os":        {"os", func(s *db.DailySummary) string { return s.OperatingSystems }},
	"screens":   {"screen_res", func(s *db.DailySummary) string { return s.Screens }},
	"languages": {"language", func(s *db.DailySummary) string { return s.Languages }},
}

// StatsService 提供查询层：把明细与日摘要合并成对外的统计结果。
type StatsService struct {
	db       *gorm.DB
	settings *SettingsService
}

// NewStatsService 构造 StatsService。
func NewStatsService(gdb *gorm.DB, settings *SettingsService) *StatsService {
	return &StatsService{db: gdb, settings: settings}
}

// dateRange 把 "2006-01-02" 边界转换为当天起止的 Unix 秒（UTC，含端点）。
func dateRange(from, to string) (int64, int64, error) {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return 0, 0, fmt.Errorf("bad from date %q: %w", from, err)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return 0, 0, fmt.Errorf("bad to date %q: %w", to, err)
	}
	if end.Before(start) {
		return 0, 0, fmt.Errorf("date range %s..%s is inverted", from, to)
	}
	return start.UTC().Unix(), end.UTC().Unix() + 86399, nil
}

// siteList 把逗号分隔的站点过滤参数拆成清洗后的列表。
func siteList(site string) []string {
	var out []string
	for _, s := range strings.Split(site, ",") {
		if cleaned := SanitizeSite(s); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

// hitScope 构建带站点过滤的明细查询。
func (s *StatsService) hitScope(site string, from, to int64) *gorm.DB {
	q := s.db.Model(&db.Hit{}).Where("created_at BETWEEN ? AND ?", from, to)
	if sites := siteList(site); len(sites) > 0 {
		q = q.Where("site IN ?", sites)
	}
	return q
}

// summariesIn 取范围内的日摘要行。
func (s *StatsService) summariesIn(site, from, to string) ([]db.DailySummary, error) {
	q := s.db.Where("date BETWEEN ? AND ?", from, to)
	if sites := siteList(site); len(sites) > 0 {
		q = q.Where("site IN ?", sites)
	}
	var rows []db.DailySummary
	if err := q.Order("date").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// summaryDates 返回摘要覆盖的去重日期集合。已汇总日期的明细可能尚未删除，
// 明细侧查询要排除这些日期，同一天的数据只能计入一次。
func summaryDates(rows []db.DailySummary) []string {
	seen := make(map[string]bool, len(rows))
	var dates []string
	for _, r := range rows {
		if !seen[r.Date] {
			seen[r.Date] = true
			dates = append(dates, r.Date)
		}
	}
	return dates
}

func excludeDates(q *gorm.DB, dates []string) *gorm.DB {
	if len(dates) == 0 {
		return q
	}
	return q.Where("DATE(created_at, 'unixepoch') NOT IN ?", dates)
}

// Summary 计算范围内的概览指标，合并明细与日摘要。
func (s *StatsService) Summary(site, from, to string) (SummaryStats, error) {
	var out SummaryStats

	fromUnix, toUnix, err := dateRange(from, to)
	if err != nil {
		return out, err
	}

	summaries, err := s.summariesIn(site, from, to)
	if err != nil {
		return out, err
	}
	dates := summaryDates(summaries)
	out.Approximate = len(summaries) > 0

	var pageviews int64
	if err := excludeDates(s.hitScope(site, fromUnix, toUnix), dates).
		Count(&pageviews).Error; err != nil {
		return out, err
	}

	var uniques int64
	if err := excludeDates(s.hitScope(site, fromUnix, toUnix), dates).
		Distinct("visitor_hash").Count(&uniques).Error; err != nil {
		return out, err
	}

	// 盐值按天轮换，访客数只能按 访客×天 口径统计
	var bounceRates []float64
	if uniques > 0 {
		bounced, total, err := s.rawBounce(site, fromUnix, toUnix, dates)
		if err != nil {
			return out, err
		}
		if total > 0 {
			bounceRates = append(bounceRates, round(float64(bounced)/float64(total), 4))
		}
	}

	var avgTimes []float64
	var rawAvg *float64
	if err := excludeDates(s.hitScope(site, fromUnix, toUnix), dates).
		Select("AVG(time_on_page)").
		Where("time_on_page IS NOT NULL").
		Scan(&rawAvg).Error; err != nil {
		return out, err
	}
	if rawAvg != nil {
		avgTimes = append(avgTimes, *rawAvg)
	}

	for _, row := range summaries {
		pageviews += row.Pageviews
		uniques += row.UniqueVisitors
		if row.BounceRate != nil {
			bounceRates = append(bounceRates, *row.BounceRate)
		}
		if row.AvgTimeOnPage != nil {
			avgTimes = append(avgTimes, *row.AvgTimeOnPage)
		}
	}

	out.Pageviews = pageviews
	out.UniqueVisitors = uniques

	if len(bounceRates) > 0 {
		rate := round(mean(bounceRates), 4)
		out.BounceRate = &rate
	}
	if len(avgTimes) > 0 {
		avg := round(mean(avgTimes), 1)
		out.AvgTimeOnPage = &avg
	}
	return out, nil
}

// rawBounce 统计明细侧的跳出：按 (天, 访客) 分组，组内只有一次浏览计为跳出。
func (s *StatsService) rawBounce(site string, from, to int64, excluded []string) (bounced, total int64, err error) {
	base := excludeDates(s.hitScope(site, from, to), excluded).
		Select("DATE(created_at, 'unixepoch') AS day, visitor_hash").
		Group("day, visitor_hash")

	if err = s.db.Table("(?) AS visitor_days", base.Session(&gorm.Session{})).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}

	single := excludeDates(s.hitScope(site, from, to), excluded).
		Select("DATE(created_at, 'unixepoch') AS day, visitor_hash").
		Group("day, visitor_hash").
		Having("COUNT(*) = 1")
	if err = s.db.Table("(?) AS bounced_days", single).
		Count(&bounced).Error; err != nil {
		return 0, 0, err
	}
	return bounced, total, nil
}

// Chart 生成按天的浏览量 / 访客数序列，范围内每一天都有数据点（缺失补零）。
func (s *StatsService) Chart(site, from, to string) ([]ChartPoint, error) {
	fromUnix, toUnix, err := dateRange(from, to)
	if err != nil {
		return nil, err
	}

	summaries, err := s.summariesIn(site, from, to)
	if err != nil {
		return nil, err
	}

	type bucket struct{ pv, uv int64 }
	byDay := make(map[string]*bucket)
	for _, row := range summaries {
		b := byDay[row.Date]
		if b == nil {
			b = &bucket{}
			byDay[row.Date] = b
		}
		b.pv += row.Pageviews
		b.uv += row.UniqueVisitors
	}

	type rawRow struct {
		Day       string
		Pageviews int64
		Visitors  int64
	}
	var raws []rawRow
	err = excludeDates(s.hitScope(site, fromUnix, toUnix), summaryDates(summaries)).
		Select("DATE(created_at, 'unixepoch') AS day, COUNT(*) AS pageviews, COUNT(DISTINCT visitor_hash) AS visitors").
		Group("day").
		Scan(&raws).Error
	if err != nil {
		return nil, err
	}
	for _, r := range raws {
		b := byDay[r.Day]
		if b == nil {
			b = &bucket{}
			byDay[r.Day] = b
		}
		b.pv += r.Pageviews
		b.uv += r.Visitors
	}

	start, _ := time.Parse("2006-01-02", from)
	end, _ := time.Parse("2006-01-02", to)
	var points []ChartPoint
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := d.Format("2006-01-02")
		point := ChartPoint{Date: day}
		if b, ok := byDay[day]; ok {
			point.Pageviews = b.pv
			point.Visitors = b.uv
		}
		points = append(points, point)
	}
	return points, nil
}

// Breakdown 执行单维度分类查询，合并明细分组与摘要中的 top-N 计数。
// dimension 必须是预定义维度名之一，返回行数不超过 MaxBreakdownLimit。
func (s *StatsService) Breakdown(dimension, site, from, to string, limit, offset int) ([]BreakdownRow, error) {
	if limit > MaxBreakdownLimit {
		limit = MaxBreakdownLimit
	}
	return s.breakdownRows(dimension, site, from, to, limit, offset)
}

// breakdownRows 是不受 API 行数上限约束的内部入口，CSV 导出走这里。
func (s *StatsService) breakdownRows(dimension, site, from, to string, limit, offset int) ([]BreakdownRow, error) {
	dim, ok := breakdownColumns[dimension]
	if !ok {
		return nil, fmt.Errorf("unknown breakdown dimension %q", dimension)
	}

	fromUnix, toUnix, err := dateRange(from, to)
	if err != nil {
		return nil, err
	}

	summaries, err := s.summariesIn(site, from, to)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, row := range summaries {
		var m map[string]int64
		encoded := dim.extract(&row)
		if encoded == "" {
			continue
		}
		if err := json.Unmarshal([]byte(encoded), &m); err != nil {
			continue
		}
		for value, n := range m {
			counts[value] += n
		}
	}

	type rawRow struct {
		Value string
		Count int64
	}
	var raws []rawRow
	err = excludeDates(s.hitScope(site, fromUnix, toUnix), summaryDates(summaries)).
		Select(dim.column+" AS value, COUNT(DISTINCT visitor_hash) AS count").
		Where(dim.column + " IS NOT NULL").
		Group(dim.column).
		Scan(&raws).Error
	if err != nil {
		return nil, err
	}
	for _, r := range raws {
		counts[r.Value] += r.Count
	}

	rows := make([]BreakdownRow, 0, len(counts))
	for value, n := range counts {
		rows = append(rows, BreakdownRow{Value: value, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Value < rows[j].Value
	})

	return paginate(rows, limit, offset), nil
}

// UTM 执行 UTM 三元组分类查询，合并明细分组与摘要，
// 返回行数不超过 MaxBreakdownLimit。
func (s *StatsService) UTM(site, from, to string, limit, offset int) ([]UTMRow, error) {
	if limit > MaxBreakdownLimit {
		limit = MaxBreakdownLimit
	}
	return s.utmRows(site, from, to, limit, offset)
}

// utmRows 是不受 API 行数上限约束的内部入口，CSV 导出走这里。
func (s *StatsService) utmRows(site, from, to string, limit, offset int) ([]UTMRow, error) {
	fromUnix, toUnix, err := dateRange(from, to)
	if err != nil {
		return nil, err
	}

	summaries, err := s.summariesIn(site, from, to)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]*UTMRow)
	add := func(source, medium, campaign *string, n int64) {
		key := derefOr(source, "\x00") + "|" + derefOr(medium, "\x00") + "|" + derefOr(campaign, "\x00")
		if row, ok := counts[key]; ok {
			row.Count += n
			return
		}
		counts[key] = &UTMRow{Source: source, Medium: medium, Campaign: campaign, Count: n}
	}

	for _, row := range summaries {
		if row.UTMSummary == "" {
			continue
		}
		var entries []UTMSummaryEntry
		if err := json.Unmarshal([]byte(row.UTMSummary), &entries); err != nil {
			continue
		}
		for _, e := range entries {
			add(e.Source, e.Medium, e.Campaign, e.Count)
		}
	}

	var raws []UTMRow
	err = excludeDates(s.hitScope(site, fromUnix, toUnix), summaryDates(summaries)).
		Select("utm_source AS source, utm_medium AS medium, utm_campaign AS campaign, COUNT(DISTINCT visitor_hash) AS count").
		Where("utm_source IS NOT NULL OR utm_medium IS NOT NULL OR utm_campaign IS NOT NULL").
		Group("utm_source, utm_medium, utm_campaign").
		Scan(&raws).Error
	if err != nil {
		return nil, err
	}
	for _, r := range raws {
		add(r.Source, r.Medium, r.Campaign, r.Count)
	}

	rows := make([]UTMRow, 0, len(counts))
	for _, row := range counts {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return derefOr(rows[i].Source, "") < derefOr(rows[j].Source, "")
	})

	return paginate(rows, limit, offset), nil
}

// Live 统计最近活跃窗口内的去重访客数（入站时间或心跳时间落在窗口内）。
func (s *StatsService) Live(site string, now time.Time) (int64, error) {
	minutes := s.settings.GetInt(db.SettingKeyLiveVisitorMinutes, DefaultLiveVisitorMinutes)
	if minutes < 1 {
		minutes = DefaultLiveVisitorMinutes
	}
	since := now.Unix() - int64(minutes)*60

	q := s.db.Model(&db.Hit{}).
		Where("created_at >= ? OR (last_active_at IS NOT NULL AND last_active_at >= ?)", since, since)
	if sites := siteList(site); len(sites) > 0 {
		q = q.Where("site IN ?", sites)
	}

	var count int64
	if err := q.Distinct("visitor_hash").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Sites 返回全部已知站点：明细、摘要与允许列表的并集，排序去重。
func (s *StatsService) Sites() ([]string, error) {
	seen := make(map[string]bool)

	var fromHits []string
	if err := s.db.Model(&db.Hit{}).Distinct("site").Pluck("site", &fromHits).Error; err != nil {
		return nil, err
	}
	var fromSummaries []string
	if err := s.db.Model(&db.DailySummary{}).Distinct("site").Pluck("site", &fromSummaries).Error; err != nil {
		return nil, err
	}

	for _, site := range fromHits {
		seen[site] = true
	}
	for _, site := range fromSummaries {
		seen[site] = true
	}
	for _, site := range s.settings.AllowedDomains() {
		seen[SanitizeSite(site)] = true
	}
	delete(seen, "")

	sites := make([]string, 0, len(seen))
	for site := range seen {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	return sites, nil
}

func paginate[T any](rows []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
