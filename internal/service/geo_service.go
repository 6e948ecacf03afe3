package service

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mintymetrics/internal/db"
	"github.com/mintymetrics/internal/geoip"
)

// GeoMaxDownloadBytes 是地理库下载 / 上传的体积上限。
const GeoMaxDownloadBytes = 50 * 1048576

// GeoLookup 是采集管线消费的地理查询接口：失败或不可用一律返回 nil。
type GeoLookup interface {
	Lookup(ip string) *string
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GeoService 管理 IP2Location 数据库文件：查询、下载安装与上传安装。
// 没有可用数据库时查询静默返回 nil，绝不报错。
type GeoService struct {
	settings    *SettingsService
	path        string
	httpClient  httpDoer
	downloadURL string

	mu     sync.Mutex
	reader *geoip.Reader
}

// NewGeoService 构造 GeoService。下载请求超时 120 秒。
func NewGeoService(settings *SettingsService, path string) *GeoService {
	return &GeoService{
		settings:    settings,
		path:        path,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		downloadURL: "https://www.ip2location.com/download/",
	}
}

// SetHTTPClient 替换下载用的 HTTP 客户端，主要面向测试场景。
func (g *GeoService) SetHTTPClient(client httpDoer) {
	if client == nil {
		g.httpClient = &http.Client{Timeout: 120 * time.Second}
		return
	}
	g.httpClient = client
}

// SetDownloadBaseURL 覆盖下载地址，便于测试。
func (g *GeoService) SetDownloadBaseURL(base string) {
	trimmed := strings.TrimSpace(base)
	if trimmed != "" {
		g.downloadURL = trimmed
	}
}

// Available 判断地理查询是否可用：开关开启且数据库文件存在。
func (g *GeoService) Available() bool {
	if !g.settings.GetBool(db.SettingKeyEnableGeo, true) {
		return false
	}
	_, err := os.Stat(g.path)
	return err == nil
}

// Lookup 查询 IP 对应的国家码，不可用或未命中时返回 nil。
func (g *GeoService) Lookup(ip string) *string {
	if !g.Available() {
		return nil
	}

	// DB1 LITE 不含 IPv6 数据
	if strings.HasPrefix(ip, "::ffff:") {
		ip = strings.TrimPrefix(ip, "::ffff:")
	}
	if strings.Contains(ip, ":") {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.reader == nil {
		reader, err := geoip.Open(g.path)
		if err != nil {
			db.AppendLog(db.DB, "error", "geo lookup: "+err.Error())
			return nil
		}
		g.reader = reader
	}

	code, ok := g.reader.Lookup(ip)
	if !ok {
		return nil
	}
	return &code
}

// Download 用下载令牌拉取 IP2Location LITE DB1 并安装。
func (g *GeoService) Download(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("download token is required")
	}

	endpoint := fmt.Sprintf("%s?token=%s&file=DB1LITEBIN", g.downloadURL, url.QueryEscape(token))
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build geo download request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download geo database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download geo database: unexpected status %s", resp.Status)
	}

	return g.Install(resp.Body)
}

// Install 将一个 BIN 数据流写入临时文件、校验后原子替换现有数据库。
func (g *GeoService) Install(src io.Reader) error {
	tempPath := filepath.Join(filepath.Dir(g.path), fmt.Sprintf(".geo-%s.tmp", uuid.New().String()))

	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create geo temp file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(src, GeoMaxDownloadBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("write geo temp file: %w", err)
	}
	if written > GeoMaxDownloadBytes {
		os.Remove(tempPath)
		return errors.New("geo database exceeds size limit")
	}
	if written < 1000 {
		os.Remove(tempPath)
		return errors.New("geo database too small to be valid")
	}

	// 先验证文件可被解析再替换
	reader, err := geoip.Open(tempPath)
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("validate geo database: %w", err)
	}
	reader.Lookup("8.8.8.8")
	reader.Close()

	if err := os.Rename(tempPath, g.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("install geo database: %w", err)
	}

	g.mu.Lock()
	if g.reader != nil {
		g.reader.Close()
		g.reader = nil
	}
	g.mu.Unlock()

	return nil
}
