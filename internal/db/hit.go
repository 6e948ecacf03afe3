package db

// Hit 记录一次原始页面浏览事件。原始 IP 在任何形式下都不入库，
// 只保留按日轮换的 visitor_hash。created_at 写入后不可变，
// time_on_page / last_active_at 仅由 beacon 回填一次。
type Hit struct {
	ID             uint    `gorm:"primaryKey"`
	Site           string  `gorm:"size:253;not null;default:'';index:idx_hits_site_created,priority:1"`
	VisitorHash    string  `gorm:"size:64;not null;index:idx_hits_visitor,priority:1"`
	PagePath       string  `gorm:"size:2048;not null"`
	ReferrerURL    *string `gorm:"size:2048"`
	ReferrerDomain *string `gorm:"size:253"`
	UTMSource      *string `gorm:"column:utm_source;size:256"`
	UTMMedium      *string `gorm:"column:utm_medium;size:256"`
	UTMCampaign    *string `gorm:"column:utm_campaign;size:256"`
	UTMTerm        *string `gorm:"column:utm_term;size:256"`
	UTMContent     *string `gorm:"column:utm_content;size:256"`
	CountryCode    *string `gorm:"size:2"`
	DeviceType     string  `gorm:"size:16;not null;default:''"`
	Browser        string  `gorm:"size:64;not null;default:''"`
	BrowserVer     string  `gorm:"column:browser_ver;size:32;not null;default:''"`
	OS             string  `gorm:"column:os;size:32;not null;default:''"`
	OSVer          string  `gorm:"column:os_ver;size:32;not null;default:''"`
	ScreenRes      *string `gorm:"column:screen_res;size:20"`
	Language       *string `gorm:"size:20"`
	TimeOnPage     *int
	LastActiveAt   *int64
	CreatedAt      int64 `gorm:"not null;index;index:idx_hits_site_created,priority:2;index:idx_hits_visitor,priority:2"`
}

// TableName 指定自定义表名。
func (Hit) TableName() string {
	return "hits"
}
