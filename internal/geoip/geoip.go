// Package geoip 实现 IP2Location DB1 BIN 文件的最小读取器：
// 仅支持 IPv4 → 国家码查询，不依赖完整的 IP2Location 库。
package geoip

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"os"
	"strings"
)

// Reader 在 BIN 文件上做二分查找。单个 Reader 不做并发保护，
// 调用方需要自行串行化。
type Reader struct {
	f          *os.File
	ipCount    uint32
	baseAddr   int64
	recordSize int
}

// Open 打开 BIN 文件并读取头部。
// 头部布局：字节 1 为列数，字节 5-8 为 IPv4 记录数，
// 字节 9-12 为记录区起始偏移（1 基，需减一）。
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geo database: %w", err)
	}

	header := make([]byte, 13)
	if _, err := f.ReadAt(header, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("read geo database header: %w", err)
	}

	columns := int(header[1])
	if columns < 2 || columns > 32 {
		f.Close()
		return nil, fmt.Errorf("unexpected geo database column count %d", columns)
	}

	return &Reader{
		f:          f,
		ipCount:    binary.LittleEndian.Uint32(header[5:9]),
		baseAddr:   int64(binary.LittleEndian.Uint32(header[9:13])) - 1,
		recordSize: columns * 4,
	}, nil
}

// Close 关闭底层文件。
func (r *Reader) Close() error {
	return r.f.Close()
}

// Lookup 查询 IPv4 地址对应的 ISO 3166-1 alpha-2 国家码。
// 非 IPv4 输入或未命中时返回 ok=false。
func (r *Reader) Lookup(ip string) (string, bool) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "", false
	}
	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	if !addr.Is4() {
		return "", false
	}
	b := addr.As4()
	ipNum := binary.BigEndian.Uint32(b[:])

	low := int64(0)
	high := int64(r.ipCount)
	rs := int64(r.recordSize)
	record := make([]byte, r.recordSize)

	for low <= high {
		mid := (low + high) / 2
		offset := r.baseAddr + mid*rs

		if _, err := r.f.ReadAt(record, offset); err != nil {
			return "", false
		}
		ipFrom := binary.LittleEndian.Uint32(record[0:4])

		// 区间上界取下一条记录的起始 IP
		ipTo := uint32(0xFFFFFFFF)
		next := make([]byte, 4)
		if _, err := r.f.ReadAt(next, offset+rs); err == nil {
			ipTo = binary.LittleEndian.Uint32(next)
		}

		switch {
		case ipNum < ipFrom:
			high = mid - 1
		case ipNum >= ipTo:
			low = mid + 1
		default:
			// 指针指向字符串结构：[1 字节长度][2 字节国家码]
			countryOffset := int64(binary.LittleEndian.Uint32(record[4:8]))
			code := make([]byte, 2)
			if _, err := r.f.ReadAt(code, countryOffset+1); err != nil {
				return "", false
			}
			cc := strings.ToUpper(string(code))
			if cc == "-" || cc == "--" || len(cc) != 2 {
				return "", false
			}
			return cc, true
		}
	}

	return "", false
}
