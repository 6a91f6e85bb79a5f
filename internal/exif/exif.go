// Package exif 是无外部工具时的本地提取兜底：用纯 Go 的 goexif
// 读取图片的拍摄时间与机型。视频仍需要 exiftool，这里只能失败隔离。
package exif

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"

	"github.com/ExploracuriousAlex/msort/internal/domain"
	"github.com/ExploracuriousAlex/msort/internal/scan"
	"github.com/ExploracuriousAlex/msort/internal/tool"
)

// Fallback 实现 tool.Extractor。
//
// 语义差异（相对 exiftool，必须被调用方接受）：
// - 图片：EXIF 解码失败不算错误，仅回退到文件修改时间（PNG 等常无 EXIF）
// - 视频：无法提取，按文件粒度报错（不影响批内图片）
// - Restore 不可用：转换路径上的元数据恢复会降级为 Warning
type Fallback struct{}

var _ tool.Extractor = Fallback{}

// mtimeLayout 与 exiftool 的输出形态保持一致，走同一条解析链。
const mtimeLayout = "2006:01:02 15:04:05-07:00"

func (Fallback) ExtractBatch(ctx context.Context, paths []string) (map[string]tool.Result, error) {
	out := make(map[string]tool.Result, len(paths))
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		key := filepath.Clean(p)
		out[key] = extractOne(key)
	}
	return out, nil
}

func extractOne(path string) tool.Result {
	fi, err := os.Stat(path)
	if err != nil {
		return tool.Result{Err: err}
	}

	switch scan.Classify(path) {
	case domain.CategoryImage:
		// ok
	case domain.CategoryVideo:
		return tool.Result{Err: fmt.Errorf("本地提取不支持视频（需要安装 exiftool）")}
	default:
		return tool.Result{Err: fmt.Errorf("无法识别的文件类型：%q", filepath.Ext(path))}
	}

	meta := tool.Metadata{
		MIMEType:       mimeByExt(path),
		FileModifyDate: fi.ModTime().Format(mtimeLayout),
	}

	f, err := os.Open(path)
	if err != nil {
		return tool.Result{Err: err}
	}
	defer f.Close()

	x, err := goexif.Decode(f)
	if err != nil {
		// 无 EXIF 的图片不是错误：目的地日期回退到文件修改时间。
		return tool.Result{Meta: meta}
	}

	meta.DateTimeOriginal = tagString(x, goexif.DateTimeOriginal)
	meta.CreateDate = tagString(x, goexif.DateTimeDigitized)
	meta.CameraModel = tagString(x, goexif.Model)
	return tool.Result{Meta: meta}
}

func (Fallback) Restore(ctx context.Context, src, dst string) error {
	return fmt.Errorf("本地提取不支持元数据回写（需要安装 exiftool）")
}

func (Fallback) SetFileDates(ctx context.Context, path string, at time.Time) error {
	return os.Chtimes(path, at, at)
}

func tagString(x *goexif.Exif, name goexif.FieldName) string {
	t, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := t.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func mimeByExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".heic", ".heif":
		return "image/heic"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".dng":
		return "image/x-adobe-dng"
	default:
		return ""
	}
}
