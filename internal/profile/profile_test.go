package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ExploracuriousAlex/msort/internal/domain"
)

const sampleProfiles = `[
  {
    "use_case": "Sony/Panasonic AVCHD",
    "description": "mts -> mp4",
    "match_extension": ".mts",
    "video_format": "AVC",
    "video_scan_type": "Progressive",
    "audio_format": "AC-3",
    "live_photo_video": false,
    "transform_template": "ffmpeg -i %s -c:v copy -c:a aac %s",
    "output_extension": ".mp4"
  },
  {
    "use_case": "iPhone Live Photo video",
    "match_extension": ".mov",
    "video_format": "HEVC",
    "video_scan_type": "Progressive",
    "audio_format": "",
    "live_photo_video": true,
    "transform_template": "",
    "output_extension": ""
  }
]`

func TestParse_MatchExact(t *testing.T) {
	c, err := Parse([]byte(sampleProfiles))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("期望 2 条规则，实际 %d", c.Len())
	}

	m := domain.NewMediaFile("/in/clip.mts", domain.CategoryVideo, time.Now())
	m.VideoFormat = "AVC"
	m.VideoScanType = "Progressive"
	m.AudioFormat = "AC-3"

	p, ok := c.Match(m)
	if !ok {
		t.Fatalf("期望命中 Sony/Panasonic 规则")
	}
	if p.OutputExtension != ".mp4" || p.CopyOnly() {
		t.Fatalf("规则内容不正确：%+v", p)
	}
}

func TestParse_MatchExtensionCaseInsensitive(t *testing.T) {
	c, err := Parse([]byte(sampleProfiles))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	m := domain.NewMediaFile("/in/CLIP.MTS", domain.CategoryVideo, time.Now())
	m.VideoFormat = "AVC"
	m.VideoScanType = "Progressive"
	m.AudioFormat = "AC-3"

	if _, ok := c.Match(m); !ok {
		t.Fatalf("扩展名必须忽略大小写")
	}
}

func TestMatch_EmptyFieldIsNotWildcard(t *testing.T) {
	c, err := Parse([]byte(sampleProfiles))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	// live 规则的 audio_format 为空：有音轨的 mov 不得命中。
	m := domain.NewMediaFile("/in/IMG_0001.mov", domain.CategoryVideo, time.Now())
	m.VideoFormat = "HEVC"
	m.VideoScanType = "Progressive"
	m.AudioFormat = "AAC"
	m.IsLivePhotoVideo = true

	if _, ok := c.Match(m); ok {
		t.Fatalf("空字段不是通配符，不应命中")
	}

	// 无匹配规则 => 仅复制（ok=false），不是错误。
	m2 := domain.NewMediaFile("/in/other.avi", domain.CategoryVideo, time.Now())
	if _, ok := c.Match(m2); ok {
		t.Fatalf("不应命中任何规则")
	}
}

func TestParse_RejectDuplicateKey(t *testing.T) {
	dup := `[
	  {"match_extension": ".mts", "video_format": "AVC", "video_scan_type": "Progressive", "audio_format": "AC-3", "live_photo_video": false},
	  {"match_extension": ".MTS", "video_format": "AVC", "video_scan_type": "Progressive", "audio_format": "AC-3", "live_photo_video": false}
	]`
	if _, err := Parse([]byte(dup)); err == nil {
		t.Fatalf("期望重复五元组被拒绝")
	}
}

func TestParse_RejectEmptyAndMalformed(t *testing.T) {
	if _, err := Parse([]byte(`[]`)); err == nil {
		t.Fatalf("期望空列表被拒绝")
	}
	if _, err := Parse([]byte(`{not json`)); err == nil {
		t.Fatalf("期望非法 JSON 被拒绝")
	}
	noExt := `[{"match_extension": "mts"}]`
	if _, err := Parse([]byte(noExt)); err == nil {
		t.Fatalf("期望缺少前导点的扩展名被拒绝")
	}
	noOut := `[{"match_extension": ".mts", "transform_template": "ffmpeg -i %s %s"}]`
	if _, err := Parse([]byte(noOut)); err == nil {
		t.Fatalf("期望转换规则缺少 output_extension 被拒绝")
	}
}

func TestLoad_ErrorCarriesPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatalf("期望加载失败")
	}
	pe, ok := err.(*Error)
	if !ok || pe.Path != path {
		t.Fatalf("期望 *Error 且携带路径，实际：%v", err)
	}
}
