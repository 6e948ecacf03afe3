package service

import (
	"testing"
)

func TestGenerateVisitorHashDeterministic(t *testing.T) {
	a := GenerateVisitorHash("203.0.113.7", "Mozilla/5.0", "salt-1")
	b := GenerateVisitorHash("203.0.113.7", "Mozilla/5.0", "salt-1")

	if a != b {
		t.Fatalf("same inputs produced different hashes: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	for _, ch := range a {
		if !(ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'f') {
			t.Fatalf("hash contains non-hex char %q", ch)
		}
	}
}

func TestGenerateVisitorHashSensitivity(t *testing.T) {
	base := GenerateVisitorHash("203.0.113.7", "Mozilla/5.0", "salt-1")

	if GenerateVisitorHash("203.0.113.8", "Mozilla/5.0", "salt-1") == base {
		t.Fatal("different IP produced same hash")
	}
	if GenerateVisitorHash("203.0.113.7", "Mozilla/5.1", "salt-1") == base {
		t.Fatal("different user agent produced same hash")
	}
	if GenerateVisitorHash("203.0.113.7", "Mozilla/5.0", "salt-2") == base {
		t.Fatal("different salt produced same hash")
	}
}

func TestNormalizeIP(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain ipv4", "203.0.113.7", "203.0.113.7"},
		{"v4 mapped", "::ffff:203.0.113.7", "203.0.113.7"},
		{"ipv6 truncated to /64", "2001:db8:1:2:3:4:5:6", "2001:db8:1:2::"},
		{"malformed passthrough", "not-an-ip", "not-an-ip"},
		{"empty passthrough", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeIP(tc.in); got != tc.want {
				t.Fatalf("NormalizeIP(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRateLimitKeyIgnoresInterfaceID(t *testing.T) {
	// 同一 /64 前缀下的不同接口标识必须落到同一个限流键
	a := RateLimitKey("2001:db8:1:2:aaaa::1")
	b := RateLimitKey("2001:db8:1:2:bbbb::2")
	c := RateLimitKey("2001:db8:9:9::1")

	if a != b {
		t.Fatal("addresses in the same /64 got different keys")
	}
	if a == c {
		t.Fatal("addresses in different /64s got the same key")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}
