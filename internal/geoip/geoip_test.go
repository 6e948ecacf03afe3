package geoip

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// writeTestDB 构造一个最小的 DB1 BIN 文件：
// [0, 128.0.0.0) → US，[128.0.0.0, 255.255.255.255) → DE。
func writeTestDB(t *testing.T) string {
	t.Helper()

	const (
		stringsOffset = 40
		recordsOffset = 64
	)

	buf := make([]byte, recordsOffset+3*8)
	buf[1] = 2 // 两列：ipFrom + 国家指针
	binary.LittleEndian.PutUint32(buf[5:9], 2)
	binary.LittleEndian.PutUint32(buf[9:13], recordsOffset+1)

	// 字符串区：[长度][内容]
	buf[stringsOffset] = 2
	copy(buf[stringsOffset+1:], "US")
	buf[stringsOffset+3] = 2
	copy(buf[stringsOffset+4:], "DE")

	writeRecord := func(index int, ipFrom uint32, ptr uint32) {
		offset := recordsOffset + index*8
		binary.LittleEndian.PutUint32(buf[offset:], ipFrom)
		binary.LittleEndian.PutUint32(buf[offset+4:], ptr)
	}
	writeRecord(0, 0, stringsOffset)
	writeRecord(1, 0x80000000, stringsOffset+3)
	writeRecord(2, 0xFFFFFFFF, stringsOffset)

	path := filepath.Join(t.TempDir(), "test.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write test db failed: %v", err)
	}
	return path
}

func TestLookup(t *testing.T) {
	reader, err := Open(writeTestDB(t))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer reader.Close()

	cases := []struct {
		ip   string
		want string
		ok   bool
	}{
		{"8.8.8.8", "US", true},
		{"1.2.3.4", "US", true},
		{"200.100.50.25", "DE", true},
		{"::ffff:8.8.8.8", "US", true},
		{"2001:db8::1", "", false},
		{"not-an-ip", "", false},
	}

	for _, tc := range cases {
		got, ok := reader.Lookup(tc.ip)
		if ok != tc.ok || got != tc.want {
			t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", tc.ip, got, ok, tc.want, tc.ok)
		}
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bin")
	if err := os.WriteFile(path, []byte("definitely not a bin database"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Fatal("garbage file must be rejected")
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Fatal("missing file must be rejected")
	}
}
