package fsx

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteFileAtomicReplace_WritesAndOverwrites(t *testing.T) {
	dir := t.TempDir()

	if err := WriteFileAtomicReplace(dir, "report.json", []byte("v1")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := WriteFileAtomicReplace(dir, "report.json", []byte("v2")); err != nil {
		t.Fatalf("覆盖写入失败：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil {
		t.Fatalf("读取失败：%v", err)
	}
	if string(b) != "v2" {
		t.Fatalf("期望 v2，实际 %q", string(b))
	}

	// 临时文件不得残留。
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("期望目录只有最终文件，实际 %d 个条目", len(entries))
	}
}

func TestCopyFilePreserve_ContentModeAndTimes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "sub", "dst.jpg")

	if err := os.WriteFile(src, []byte("payload"), 0o600); err != nil {
		t.Fatalf("写入源文件失败：%v", err)
	}
	mod := time.Date(2021, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, mod, mod); err != nil {
		t.Fatalf("设置 mtime 失败：%v", err)
	}

	if err := CopyFilePreserve(src, dst); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := os.ReadFile(dst)
	if err != nil || string(b) != "payload" {
		t.Fatalf("内容不一致：%q err=%v", string(b), err)
	}

	fi, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat 失败：%v", err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("权限未保留：%v", fi.Mode())
	}
	if !fi.ModTime().Equal(mod) {
		t.Fatalf("mtime 未保留：%v", fi.ModTime())
	}
}

func TestEnsureDir_ConflictWithFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "x")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	err := EnsureDir(p)
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%v", err)
	}

	if err := EnsureDir(filepath.Join(dir, "a", "b")); err != nil {
		t.Fatalf("多级创建失败：%v", err)
	}
}
