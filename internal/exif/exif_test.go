package exif

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入测试文件失败：%v", err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("设置修改时间失败：%v", err)
	}
}

func TestExtractBatch_ImageWithoutExifFallsBackToModTime(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "shot.jpg")
	mod := time.Date(2023, 6, 1, 12, 0, 0, 0, time.Local)
	touch(t, img, mod)

	res, err := Fallback{}.ExtractBatch(context.Background(), []string{img})
	if err != nil {
		t.Fatalf("不期望批级错误：%v", err)
	}
	r, ok := res[filepath.Clean(img)]
	if !ok {
		t.Fatalf("结果缺少条目：%v", res)
	}
	if r.Err != nil {
		t.Fatalf("无 EXIF 的图片不应报错：%v", r.Err)
	}
	if r.Meta.MIMEType != "image/jpeg" {
		t.Fatalf("MIME 不正确：%q", r.Meta.MIMEType)
	}
	got, perr := time.Parse(mtimeLayout, r.Meta.FileModifyDate)
	if perr != nil || !got.Equal(mod) {
		t.Fatalf("FileModifyDate 不正确：%q（%v）", r.Meta.FileModifyDate, perr)
	}
	if r.Meta.DateTimeOriginal != "" || r.Meta.CameraModel != "" {
		t.Fatalf("无 EXIF 时拍摄字段必须为空：%+v", r.Meta)
	}
}

func TestExtractBatch_VideoAndUnknownArePerFileErrors(t *testing.T) {
	dir := t.TempDir()
	vid := filepath.Join(dir, "clip.mov")
	txt := filepath.Join(dir, "note.txt")
	img := filepath.Join(dir, "ok.png")
	now := time.Now()
	touch(t, vid, now)
	touch(t, txt, now)
	touch(t, img, now)

	res, err := Fallback{}.ExtractBatch(context.Background(), []string{vid, txt, img})
	if err != nil {
		t.Fatalf("单文件失败不应升级为批级错误：%v", err)
	}
	if res[vid].Err == nil {
		t.Fatalf("视频必须按文件粒度报错")
	}
	if res[txt].Err == nil {
		t.Fatalf("未知类型必须按文件粒度报错")
	}
	if res[img].Err != nil {
		t.Fatalf("同批图片不应被连累：%v", res[img].Err)
	}
}

func TestExtractBatch_MissingFile(t *testing.T) {
	res, err := Fallback{}.ExtractBatch(context.Background(), []string{"/no/such/file.jpg"})
	if err != nil {
		t.Fatalf("不期望批级错误：%v", err)
	}
	if res["/no/such/file.jpg"].Err == nil {
		t.Fatalf("文件不存在必须按文件粒度报错")
	}
}

func TestExtractBatch_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Fallback{}).ExtractBatch(ctx, []string{"/a.jpg"}); err == nil {
		t.Fatalf("已取消的上下文必须上抛")
	}
}

func TestRestoreUnsupported(t *testing.T) {
	if err := (Fallback{}).Restore(context.Background(), "/a", "/b"); err == nil {
		t.Fatalf("回写必须返回不支持错误")
	}
}

func TestSetFileDates(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.jpg")
	touch(t, p, time.Now())

	at := time.Date(2021, 3, 14, 9, 26, 53, 0, time.Local)
	if err := (Fallback{}).SetFileDates(context.Background(), p, at); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	fi, err := os.Stat(p)
	if err != nil {
		t.Fatalf("stat 失败：%v", err)
	}
	if !fi.ModTime().Equal(at) {
		t.Fatalf("修改时间未被设置：%v != %v", fi.ModTime(), at)
	}
}
