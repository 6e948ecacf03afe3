package service

import (
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
)

// GenerateVisitorHash 由 IP + User-Agent + 当日盐值派生访客标识。
// 结果为 64 位十六进制摘要，确定且不可逆；盐值按日轮换后旧哈希无法再关联。
func GenerateVisitorHash(ip, ua, salt string) string {
	sum := sha256.Sum256([]byte(ip + "|" + ua + "|" + salt))
	return hex.EncodeToString(sum[:])
}

// NormalizeIP 归一化 IP 用于限流分组（访客哈希仍使用原始 IP）。
// IPv4 映射的 IPv6 地址还原为 IPv4；原生 IPv6 截断到 /64 前缀，
// 让同一终端轮换的低位后缀归为一组；无法解析的输入原样返回。
func NormalizeIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ip
	}

	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	if addr.Is4() {
		return addr.String()
	}

	prefix, err := addr.Prefix(64)
	if err != nil {
		return ip
	}
	return prefix.Addr().String()
}

// RateLimitKey 返回限流表使用的 IP 哈希键。
func RateLimitKey(ip string) string {
	sum := sha256.Sum256([]byte(NormalizeIP(ip)))
	return hex.EncodeToString(sum[:])
}
