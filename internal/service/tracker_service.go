package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mintymetrics/internal/db"
	"github.com/mintymetrics/internal/uaparse"
	"gorm.io/gorm"
)

// 已知爬虫与探测工具的 UA 特征。
var botPattern = regexp.MustCompile(`(?i)bot|crawl|spider|slurp|bingbot|googlebot|yandexbot|baiduspider|duckduckbot|sogou|exabot|facebot|ia_archiver|semrush|ahrefs|mj12bot|dotbot|petalbot|bytespider|gptbot|claudebot|ccbot|chatgpt|archive\.org|wget|curl|python-requests|go-http-client|java/|headlesschrome|phantomjs|lighthouse|pagespeed|uptimerobot|pingdom|statuspage`)

// TrackStatus 标记一次采集请求的处理结果。
type TrackStatus int

const (
	// TrackAccepted 表示事件已落库。
	TrackAccepted TrackStatus = iota
	// TrackRejected 表示事件按规则被拒绝，不落库、不报错。
	TrackRejected
	// TrackFailed 表示基础设施错误，由外层吞掉并记日志。
	TrackFailed
)

// TrackOutcome 是采集管线的显式结果：外层处理器据此记日志，
// 但对客户端的响应与结果无关。
type TrackOutcome struct {
	Status TrackStatus
	Reason string
	Err    error
}

func accepted() TrackOutcome {
	return TrackOutcome{Status: TrackAccepted}
}

func rejected(reason string) TrackOutcome {
	return TrackOutcome{Status: TrackRejected, Reason: reason}
}

func failed(err error) TrackOutcome {
	return TrackOutcome{Status: TrackFailed, Err: err}
}

// HitRequest 汇总一次 pageview 采集请求的原始参数。
type HitRequest struct {
	Marker      string
	Site        string
	Page        string
	Referrer    string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMTerm     string
	UTMContent  string
	ScreenRes   string
	Language    string
	IP          string
	UserAgent   string
	DoNotTrack  bool
	GPC         bool
}

// BeaconRequest 汇总一次停留时长回填请求的原始参数。
type BeaconRequest struct {
	Marker    string
	Site      string
	Page      string
	Seconds   int
	IP        string
	UserAgent string
}

// TrackerService 负责采集管线：校验、隐私转换、限流去重与落库。
type TrackerService struct {
	db       *gorm.DB
	settings *SettingsService
	geo      GeoLookup
	limiter  *RateLimiter
}

// NewTrackerService 构造 TrackerService。geo 传 nil 表示无地理能力。
func NewTrackerService(gdb *gorm.DB, settings *SettingsService, geo GeoLookup) *TrackerService {
	return &TrackerService{
		db:       gdb,
		settings: settings,
		geo:      geo,
		limiter:  NewRateLimiter(gdb),
	}
}

// WithRateLimiter 替换限流器，主要面向测试场景。
func (t *TrackerService) WithRateLimiter(limiter *RateLimiter) *TrackerService {
	if limiter != nil {
		t.limiter = limiter
	}
	return t
}

// IsBot 判断 UA 是否属于已知爬虫；空 UA 一律按爬虫处理。
func IsBot(ua string) bool {
	if ua == "" {
		return true
	}
	return botPattern.MatchString(ua)
}

// TrackHit 处理一次 pageview 采集。
// 无状态的拒绝（标记、爬虫、DNT）放在任何存储 I/O 之前，
// 把自动流量的成本压到最低。
func (t *TrackerService) TrackHit(req HitRequest, now time.Time) TrackOutcome {
	if req.Marker == "" {
		return rejected("missing js marker")
	}
	if IsBot(req.UserAgent) {
		return rejected("bot user-agent")
	}
	if t.settings.GetBool(db.SettingKeyRespectDNT, true) && (req.DoNotTrack || req.GPC) {
		return rejected("dnt signal present")
	}
	if t.limiter.ShouldDrop(RateLimitKey(req.IP), now) {
		return rejected("rate limited")
	}

	site := SanitizeSite(req.Site)
	if !t.validateDomain(site) {
		return rejected("site not in allow-list")
	}

	salt := t.settings.DailySalt(now)
	visitorHash := GenerateVisitorHash(req.IP, req.UserAgent, salt)

	page := Truncate(req.Page, MaxPagePath)
	if page == "" {
		page = "/"
	}
	referrer := Truncate(req.Referrer, MaxReferrer)
	referrerDomain := ParseReferrerDomain(referrer)

	ua := uaparse.Classify(req.UserAgent)

	// 地理查询是落库前唯一接触 IP 的增强步骤，IP 随后即被丢弃
	var countryCode *string
	if t.geo != nil {
		countryCode = t.geo.Lookup(req.IP)
	}

	hit := db.Hit{
		Site:           site,
		VisitorHash:    visitorHash,
		PagePath:       page,
		ReferrerURL:    optional(referrer),
		ReferrerDomain: referrerDomain,
		UTMSource:      optional(Truncate(req.UTMSource, MaxUTMField)),
		UTMMedium:      optional(Truncate(req.UTMMedium, MaxUTMField)),
		UTMCampaign:    optional(Truncate(req.UTMCampaign, MaxUTMField)),
		UTMTerm:        optional(Truncate(req.UTMTerm, MaxUTMField)),
		UTMContent:     optional(Truncate(req.UTMContent, MaxUTMField)),
		CountryCode:    countryCode,
		DeviceType:     ua.Device,
		Browser:        ua.Browser,
		BrowserVer:     ua.BrowserVersion,
		OS:             ua.OS,
		OSVer:          ua.OSVersion,
		ScreenRes:      optional(Truncate(req.ScreenRes, MaxScreenRes)),
		Language:       optional(Truncate(req.Language, MaxLanguage)),
		CreatedAt:      now.Unix(),
	}

	if err := t.db.Create(&hit).Error; err != nil {
		return failed(fmt.Errorf("insert hit: %w", err))
	}
	return accepted()
}

// TrackBeacon 将停留时长回填到今天同访客、同站点、同页面的最新一条记录。
// 跨过午夜后盐值已轮换，重算的哈希匹配不到原记录，beacon 静默丢失——
// 这是有意保守的跨日不关联行为，不做回退匹配。
func (t *TrackerService) TrackBeacon(req BeaconRequest, now time.Time) TrackOutcome {
	if req.Marker == "" {
		return rejected("missing js marker")
	}
	if req.Seconds < 1 || req.Seconds > 3600 {
		return rejected("elapsed time out of range")
	}

	site := SanitizeSite(req.Site)
	if !t.validateDomain(site) {
		return rejected("site not in allow-list")
	}

	salt := t.settings.DailySalt(now)
	visitorHash := GenerateVisitorHash(req.IP, req.UserAgent, salt)
	page := Truncate(req.Page, MaxPagePath)

	utc := now.UTC()
	todayStart := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Unix()

	result := t.db.Model(&db.Hit{}).
		Where(
			"id = (SELECT id FROM hits WHERE visitor_hash = ? AND site = ? AND page_path = ? AND created_at >= ? ORDER BY created_at DESC LIMIT 1)",
			visitorHash, site, page, todayStart,
		).
		Updates(map[string]interface{}{
			"time_on_page":   req.Seconds,
			"last_active_at": now.Unix(),
		})
	if result.Error != nil {
		return failed(fmt.Errorf("update beacon: %w", result.Error))
	}
	if result.RowsAffected == 0 {
		return rejected("no matching hit")
	}
	return accepted()
}

// validateDomain 检查站点是否在允许列表中；未配置列表即单站点模式，全部放行。
func (t *TrackerService) validateDomain(site string) bool {
	allowed := t.settings.AllowedDomains()
	if len(allowed) == 0 {
		return true
	}
	for _, domain := range allowed {
		if site == domain || strings.HasSuffix(site, "."+domain) {
			return true
		}
	}
	return false
}

// Truncate 将字符串截断到指定的最大字符数。
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

var siteSanitizeRe = regexp.MustCompile(`[^a-z0-9.\-]`)

// SanitizeSite 规整站点域名：小写、剔除非法字符并截断。
func SanitizeSite(site string) string {
	site = strings.ToLower(strings.TrimSpace(site))
	site = siteSanitizeRe.ReplaceAllString(site, "")
	return Truncate(site, MaxSiteDomain)
}

// ParseReferrerDomain 从来源 URL 提取域名，小写并去掉 www. 前缀。
func ParseReferrerDomain(referrer string) *string {
	if referrer == "" {
		return nil
	}
	parsed, err := url.Parse(referrer)
	if err != nil || parsed.Hostname() == "" {
		return nil
	}
	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return nil
	}
	return &host
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
