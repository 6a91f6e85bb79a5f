package organize

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ExploracuriousAlex/msort/internal/domain"
)

func TestNormalizeCamera(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"iPhone 14", "iPhone"},
		{"iPhone 14 Pro Max", "iPhone"},
		{"iPhone", "iPhone"},
		{"iPad Air", "iPad"},
		{"iPod touch", "iPod"},
		{"  iPhone 6s  ", "iPhone"},
		{"NIKON D750", "NIKON D750"},
		{"DMC-TZ71", "DMC-TZ71"},
		// 前缀匹配大小写敏感：小写不折叠。
		{"iphone 14", "iphone 14"},
		{"", UnknownCamera},
		{"   ", UnknownCamera},
	}
	for _, c := range cases {
		if got := NormalizeCamera(c.in); got != c.want {
			t.Fatalf("NormalizeCamera(%q)：期望 %q，实际 %q", c.in, c.want, got)
		}
	}
}

func TestParseStamp_ValidityPredicate(t *testing.T) {
	valid := []string{
		"2024:01:15 10:30:00+01:00",
		"2024:01:15 10:30:00Z",
		"2024:01:15 10:30:00",
		"2024:01:15 10:30:00.123",
		"2024-01-15T10:30:00Z",
		"2023-06-01",
	}
	for _, v := range valid {
		if _, ok := ParseStamp(v); !ok {
			t.Fatalf("期望 %q 有效", v)
		}
	}

	invalid := []string{
		"",
		"   ",
		"0000:00:00 00:00:00",
		"1970:01:01 00:00:00", // epoch 占位
		"not a date",
		"2024:13:45 99:99:99",
	}
	for _, v := range invalid {
		if _, ok := ParseStamp(v); ok {
			t.Fatalf("期望 %q 被有效性谓词拒绝", v)
		}
	}
}

func TestSelectCapture_StrictPriorityChain(t *testing.T) {
	m := domain.NewMediaFile("/in/IMG_0001.mov", domain.CategoryVideo, time.Unix(1700000000, 0))
	m.AddStamp(domain.SourceCreationDate, "2024:01:15 10:30:00+01:00")
	m.AddStamp(domain.SourceDateTimeOriginal, "2023:06:01 08:00:00")

	got, src := SelectCapture(m)
	if src != domain.SourceCreationDate || got.Year() != 2024 {
		t.Fatalf("期望最高优先级来源胜出：src=%s t=%v", src, got)
	}
}

func TestSelectCapture_SkipsInvalidHigherPriority(t *testing.T) {
	m := domain.NewMediaFile("/in/a.jpg", domain.CategoryImage, time.Unix(1700000000, 0))
	m.AddStamp(domain.SourceCreationDate, "0000:00:00 00:00:00")
	m.AddStamp(domain.SourceDateTimeOriginal, "2023:06:01 08:00:00")

	got, src := SelectCapture(m)
	if src != domain.SourceDateTimeOriginal || got.Year() != 2023 {
		t.Fatalf("无效占位值必须被跳过：src=%s t=%v", src, got)
	}
}

func TestSelectCapture_FallsBackToModTime(t *testing.T) {
	mod := time.Date(2022, 3, 9, 12, 0, 0, 0, time.UTC)
	m := domain.NewMediaFile("/in/a.jpg", domain.CategoryImage, mod)

	got, src := SelectCapture(m)
	if src != domain.SourceFileModifyDate || !got.Equal(mod) {
		t.Fatalf("期望回退到文件修改时间：src=%s t=%v", src, got)
	}
}

func TestResolvePath_Scenario(t *testing.T) {
	// CreationDate=2024-01-15 先于 DateTimeOriginal=2023-06-01；机型折叠为 iPhone。
	m := domain.NewMediaFile("/in/IMG_0042.heic", domain.CategoryImage, time.Unix(1700000000, 0))
	m.CameraModel = "iPhone 14"
	m.AddStamp(domain.SourceCreationDate, "2024:01:15 10:30:00+01:00")
	m.AddStamp(domain.SourceDateTimeOriginal, "2023:06:01 08:00:00")

	got := ResolvePath(m, "", DefaultMonthNames)
	want := filepath.Join("iPhone", "2024", "01-January", "IMG_0042.heic")
	if got != want {
		t.Fatalf("期望 %q，实际 %q", want, got)
	}
}

func TestResolvePath_LocalizedMonthAndOutExt(t *testing.T) {
	months := DefaultMonthNames
	months[11] = "Dezember"

	m := domain.NewMediaFile("/in/clip 01.MTS", domain.CategoryVideo, time.Unix(1700000000, 0))
	m.CameraModel = "DMC-TZ71"
	m.AddStamp(domain.SourceDateTimeOriginal, "2021:12:24 18:00:00")

	got := ResolvePath(m, ".mp4", months)
	want := filepath.Join("DMC-TZ71", "2021", "12-Dezember", "clip 01.mp4")
	if got != want {
		t.Fatalf("期望 %q，实际 %q", want, got)
	}
}

func TestOutputExtension_PreservesSourceCase(t *testing.T) {
	m := domain.NewMediaFile("/in/CLIP.MP4", domain.CategoryVideo, time.Now())
	if got := OutputExtension(m, ".mp4"); got != ".MP4" {
		t.Fatalf("同名扩展必须保留源大小写，实际 %q", got)
	}
	if got := OutputExtension(m, ".mov"); got != ".mov" {
		t.Fatalf("不同扩展必须采用规则值，实际 %q", got)
	}
}
