package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV 等错误。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望目录但实际是文件）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// 中间产物永远放在输出根下的临时目录里，正常流程不应跨盘；
// 一旦出现说明输出根配置有问题，必须失败并提示，不做隐式 copy+delete。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q；请确保临时目录与目标在同一文件系统：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// EnsureDir 确保 dir 存在且确实是目录。
func EnsureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// CopyFilePreserve 把 src 复制到 dst，并保留权限位与修改时间。
// dst 已存在时覆盖（调用方负责先通过占用集拿到无冲突名字）。
func CopyFilePreserve(src, dst string) error {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sf.Close()

	fi, err := sf.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	df, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(df, sf); err != nil {
		_ = df.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := df.Sync(); err != nil {
		_ = df.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := df.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	// 时间戳保真：目的地的 mtime 必须等于源（日期回退链的最后一环依赖它）。
	return os.Chtimes(dst, fi.ModTime(), fi.ModTime())
}

// WriteFileAtomicReplace 在 dir 下原子写入 name（临时文件 + rename），
// 目标已存在则覆盖。用于 report 等内部产物。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	return writeFileAtomic(dir, name, data, 0o644)
}

func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 创建同目录临时文件（前缀带 '.'，避免污染输出目录视图）。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// rename 原子替换到最终文件名。
	if err := Rename(tmpName, dst); err != nil {
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(dir)

	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
