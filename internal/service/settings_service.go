package service

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/mintymetrics/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsService 提供键值配置的读写能力。
// 读取走进程内缓存，写入立即落库并按键失效缓存；
// 当日盐值作为惰性字段缓存，跨日自动轮换。
type SettingsService struct {
	db *gorm.DB

	mu    sync.RWMutex
	cache map[string]string

	saltMu   sync.Mutex
	salt     string
	saltDate string
}

// NewSettingsService 构造 SettingsService。
func NewSettingsService(gdb *gorm.DB) *SettingsService {
	return &SettingsService{db: gdb, cache: make(map[string]string)}
}

// Get 读取配置值，未设置或读取失败时返回默认值。
// 存储错误不向上传播：配置读取必须永远可用。
func (s *SettingsService) Get(key, def string) string {
	s.mu.RLock()
	if value, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return value
	}
	s.mu.RUnlock()

	var record db.Setting
	err := s.db.Where("key = ?", key).First(&record).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return def
		}
		record.Value = def
	}

	s.mu.Lock()
	s.cache[key] = record.Value
	s.mu.Unlock()
	return record.Value
}

// Set 写入配置值并同步更新缓存。
func (s *SettingsService) Set(key, value string) error {
	setting := db.Setting{Key: key, Value: value}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": value}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()
	return nil
}

// Invalidate 使指定键的缓存失效，下一次读取重新落库。
func (s *SettingsService) Invalidate(key string) {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}

// GetInt 读取整数配置，解析失败时返回默认值。
func (s *SettingsService) GetInt(key string, def int) int {
	raw := s.Get(key, strconv.Itoa(def))
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}

// GetFloat 读取浮点配置，解析失败时返回默认值。
func (s *SettingsService) GetFloat(key string, def float64) float64 {
	raw := s.Get(key, strconv.FormatFloat(def, 'f', -1, 64))
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return value
}

// GetBool 读取布尔配置，存储形式为 "1" / "0"。
func (s *SettingsService) GetBool(key string, def bool) bool {
	fallback := "0"
	if def {
		fallback = "1"
	}
	return s.Get(key, fallback) == "1"
}

// SetBool 以 "1" / "0" 形式写入布尔配置。
func (s *SettingsService) SetBool(key string, value bool) error {
	raw := "0"
	if value {
		raw = "1"
	}
	return s.Set(key, raw)
}

// AllowedDomains 返回允许的站点域名列表，未配置时为空（单站点模式）。
func (s *SettingsService) AllowedDomains() []string {
	raw := s.Get(db.SettingKeyAllowedDomains, "[]")
	var domains []string
	if err := json.Unmarshal([]byte(raw), &domains); err != nil {
		return nil
	}
	return domains
}

// SetAllowedDomains 写入允许的站点域名列表。
func (s *SettingsService) SetAllowedDomains(domains []string) error {
	if domains == nil {
		domains = []string{}
	}
	raw, err := json.Marshal(domains)
	if err != nil {
		return fmt.Errorf("encode allowed domains: %w", err)
	}
	return s.Set(db.SettingKeyAllowedDomains, string(raw))
}

// DailySalt 返回当日的访客哈希盐值，必要时原子地轮换。
// 轮换在写事务内二次确认盐值日期，确保并发进程同一天只产生一个盐值，
// 同一 IP+UA 在一个自然日内始终得到相同哈希。存储失败时退化为
// 进程内临时盐值，不中断采集。
func (s *SettingsService) DailySalt(now time.Time) string {
	today := now.UTC().Format("2006-01-02")

	s.saltMu.Lock()
	defer s.saltMu.Unlock()

	if s.salt != "" && s.saltDate == today {
		return s.salt
	}

	var dateRow db.Setting
	err := s.db.Where("key = ?", db.SettingKeySaltDate).First(&dateRow).Error
	if err == nil && dateRow.Value == today {
		var saltRow db.Setting
		if err := s.db.Where("key = ?", db.SettingKeyDailySalt).First(&saltRow).Error; err == nil && saltRow.Value != "" {
			s.salt = saltRow.Value
			s.saltDate = today
			return s.salt
		}
	}

	minted := randomHex(32)
	salt := minted

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		// 写锁内复查：另一个进程可能已经完成当日轮换
		var row db.Setting
		err := tx.Where("key = ?", db.SettingKeySaltDate).First(&row).Error
		if err == nil && row.Value == today {
			var existing db.Setting
			if err := tx.Where("key = ?", db.SettingKeyDailySalt).First(&existing).Error; err == nil && existing.Value != "" {
				salt = existing.Value
				return nil
			}
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := upsertSetting(tx, db.SettingKeyDailySalt, minted); err != nil {
			return err
		}
		return upsertSetting(tx, db.SettingKeySaltDate, today)
	})
	if txErr != nil {
		// 临时盐值仅在本进程内有效，不落库
		log.Printf("rotate daily salt failed: %v", txErr)
		s.salt = minted
		s.saltDate = today
		return s.salt
	}

	s.salt = salt
	s.saltDate = today
	return s.salt
}

func upsertSetting(tx *gorm.DB, key, value string) error {
	setting := db.Setting{Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": value}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

func randomHex(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 失败意味着运行环境已不可信，直接终止
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}
