package uaparse

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		ua      string
		device  string
		browser string
		os      string
	}{
		{
			"windows chrome",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"desktop", "Chrome", "Windows",
		},
		{
			"mac safari",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			"desktop", "Safari", "macOS",
		},
		{
			"iphone safari",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
			"mobile", "Safari", "iOS",
		},
		{
			"ipad",
			"Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
			"tablet", "Safari", "iOS",
		},
		{
			"android phone chrome",
			"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			"mobile", "Chrome", "Android",
		},
		{
			"android tablet without mobile token",
			"Mozilla/5.0 (Linux; Android 13; SM-X710) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"tablet", "Chrome", "Android",
		},
		{
			"edge on windows",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
			"desktop", "Edge", "Windows",
		},
		{
			"firefox on linux",
			"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			"desktop", "Firefox", "Linux",
		},
		{
			"chrome on ios",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/120.0.0.0 Mobile/15E148 Safari/604.1",
			"mobile", "Chrome", "iOS",
		},
		{
			"samsung internet",
			"Mozilla/5.0 (Linux; Android 13; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/23.0 Chrome/115.0.0.0 Mobile Safari/537.36",
			"mobile", "Samsung Internet", "Android",
		},
		{
			"unknown",
			"SomethingNobodyHasHeardOf/1.0",
			"desktop", "Other", "Other",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.ua)
			if got.Device != tc.device {
				t.Errorf("device = %q, want %q", got.Device, tc.device)
			}
			if got.Browser != tc.browser {
				t.Errorf("browser = %q, want %q", got.Browser, tc.browser)
			}
			if got.OS != tc.os {
				t.Errorf("os = %q, want %q", got.OS, tc.os)
			}
		})
	}
}

func TestClassifyVersions(t *testing.T) {
	got := Classify("Mozilla/5.0 (iPhone; CPU iPhone OS 17_1_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1")
	if got.OSVersion != "17.1.2" {
		t.Fatalf("ios version = %q, want 17.1.2 (underscores normalized)", got.OSVersion)
	}
	if got.BrowserVersion != "17.1" {
		t.Fatalf("safari version = %q, want 17.1", got.BrowserVersion)
	}

	got = Classify("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.71 Safari/537.36")
	if got.BrowserVersion != "120.0" {
		t.Fatalf("chrome version = %q, want 120.0", got.BrowserVersion)
	}
	if got.OSVersion != "10.0" {
		t.Fatalf("windows version = %q, want 10.0", got.OSVersion)
	}
}
