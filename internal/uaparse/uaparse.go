// Package uaparse 将 User-Agent 字符串分类为设备 / 浏览器 / 操作系统。
// 纯函数实现，永远返回可用的分类结果（兜底 "Other" / "desktop"）。
package uaparse

import (
	"regexp"
	"strings"
)

// Classification 描述一次 UA 解析结果。版本号可能为空字符串。
type Classification struct {
	Device         string
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
}

// Classify 解析 User-Agent 字符串。
func Classify(ua string) Classification {
	return Classification{
		Device:         detectDevice(ua),
		Browser:        detectBrowser(ua),
		BrowserVersion: detectBrowserVersion(ua),
		OS:             detectOS(ua),
		OSVersion:      detectOSVersion(ua),
	}
}

var (
	tabletRe     = regexp.MustCompile(`(?i)iPad|Tablet|PlayBook|Silk|Kindle`)
	androidRe    = regexp.MustCompile(`(?i)Android`)
	mobileWordRe = regexp.MustCompile(`(?i)Mobile`)
	mobileRe     = regexp.MustCompile(`(?i)Mobile|iPhone|iPod|Windows Phone|Opera Mini|Opera Mobi|BlackBerry|IEMobile|wpdesktop`)
)

func detectDevice(ua string) string {
	// 平板优先于手机：部分平板 UA 也带 "Mobile"；
	// 不带 Mobile 的 Android 按平板处理
	if tabletRe.MatchString(ua) {
		return "tablet"
	}
	if androidRe.MatchString(ua) && !mobileWordRe.MatchString(ua) {
		return "tablet"
	}
	if mobileRe.MatchString(ua) {
		return "mobile"
	}
	return "desktop"
}

type browserRule struct {
	name    string
	pattern *regexp.Regexp
}

// 顺序即优先级：衍生浏览器都会携带 Chrome/Safari 标记，必须先匹配
var browserRules = []browserRule{
	{"Edge", regexp.MustCompile(`(?i)Edg(?:e|A|iOS)?/[\d.]+`)},
	{"Opera", regexp.MustCompile(`(?i)OPR/|Opera`)},
	{"Samsung Internet", regexp.MustCompile(`(?i)SamsungBrowser`)},
	{"UC Browser", regexp.MustCompile(`(?i)UCBrowser|UCWEB`)},
	{"Brave", regexp.MustCompile(`(?i)Brave`)},
	{"Vivaldi", regexp.MustCompile(`(?i)Vivaldi`)},
	{"Yandex", regexp.MustCompile(`(?i)YaBrowser`)},
	{"Firefox", regexp.MustCompile(`(?i)Firefox|FxiOS`)},
	{"Chrome", regexp.MustCompile(`(?i)CriOS`)},
}

var (
	chromeRe   = regexp.MustCompile(`(?i)Chrome/[\d.]+`)
	chromiumRe = regexp.MustCompile(`(?i)Chromium`)
	safariRe   = regexp.MustCompile(`(?i)Safari/[\d.]+`)
	ieRe       = regexp.MustCompile(`(?i)MSIE|Trident`)
)

func detectBrowser(ua string) string {
	for _, rule := range browserRules {
		if rule.pattern.MatchString(ua) {
			return rule.name
		}
	}
	if chromeRe.MatchString(ua) && !chromiumRe.MatchString(ua) {
		return "Chrome"
	}
	if chromiumRe.MatchString(ua) {
		return "Chromium"
	}
	if safariRe.MatchString(ua) && !chromeRe.MatchString(ua) && !chromiumRe.MatchString(ua) {
		return "Safari"
	}
	if ieRe.MatchString(ua) {
		return "Internet Explorer"
	}
	return "Other"
}

var browserVersionRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Edg(?:e|A|iOS)?/(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)OPR/(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)SamsungBrowser/(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)UCBrowser/(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)Brave/(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)Vivaldi/(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)YaBrowser/(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)(?:Firefox|FxiOS)/(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)CriOS/(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)Chrome/(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)Version/(\d+(?:\.\d+)?).*Safari`),
	regexp.MustCompile(`(?i)(?:MSIE |rv:)(\d+(?:\.\d+)?)`),
}

func detectBrowserVersion(ua string) string {
	for _, re := range browserVersionRes {
		if m := re.FindStringSubmatch(ua); m != nil {
			return m[1]
		}
	}
	return ""
}

type osRule struct {
	name    string
	pattern *regexp.Regexp
}

var osRules = []osRule{
	{"iOS", regexp.MustCompile(`(?i)iPhone|iPad|iPod`)},
	{"Android", regexp.MustCompile(`(?i)Android`)},
	{"Windows", regexp.MustCompile(`(?i)Windows`)},
	{"macOS", regexp.MustCompile(`(?i)Macintosh|Mac OS X`)},
	{"Chrome OS", regexp.MustCompile(`(?i)CrOS`)},
	{"Linux", regexp.MustCompile(`(?i)Linux`)},
	{"FreeBSD", regexp.MustCompile(`(?i)FreeBSD`)},
}

func detectOS(ua string) string {
	for _, rule := range osRules {
		if rule.pattern.MatchString(ua) {
			return rule.name
		}
	}
	return "Other"
}

var osVersionRes = map[string]*regexp.Regexp{
	"iOS":       regexp.MustCompile(`(?i)OS (\d+[_.]\d+(?:[_.]\d+)?)`),
	"Android":   regexp.MustCompile(`(?i)Android (\d+(?:\.\d+)?)`),
	"Windows":   regexp.MustCompile(`(?i)Windows NT (\d+\.\d+)`),
	"macOS":     regexp.MustCompile(`(?i)Mac OS X (\d+[_.]\d+(?:[_.]\d+)?)`),
	"Chrome OS": regexp.MustCompile(`(?i)CrOS \S+ (\d+(?:\.\d+)?)`),
}

func detectOSVersion(ua string) string {
	os := detectOS(ua)
	re, ok := osVersionRes[os]
	if !ok {
		return ""
	}
	if m := re.FindStringSubmatch(ua); m != nil {
		return strings.ReplaceAll(m[1], "_", ".")
	}
	return ""
}
