package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ExploracuriousAlex/msort/internal/domain"
)

// Input 描述一个待导入文件（扫描阶段只做 stat，不读文件内容）。
type Input struct {
	AbsPath  string
	Category domain.MimeCategory
	Size     int64
	ModTime  time.Time
}

// Collect 展开输入路径集合（文件原样收下，目录递归展开）并按扩展名粗分类。
//
// 规则（硬约束）：
// - 目录展开时，扩展名不属于图片/视频的文件计入 skipped，不进入结果
// - 显式传入的单个文件永远进入结果（分类可能为 unknown，由导入阶段裁决）
// - excludeDirs 视为相对各输入目录的路径（绝对路径按绝对处理）
// - 输出按 AbsPath 稳定排序，消除平台/文件系统的遍历差异
func Collect(paths []string, excludeDirs []string) (inputs []Input, skipped int, err error) {
	inputs = make([]Input, 0, 128)
	seen := make(map[string]struct{}, 128)

	for _, p := range paths {
		abs, e := filepath.Abs(filepath.Clean(strings.TrimSpace(p)))
		if e != nil {
			return nil, 0, e
		}

		fi, e := os.Stat(abs)
		if e != nil {
			return nil, 0, fmt.Errorf("输入路径不可访问：%w", e)
		}

		if !fi.IsDir() {
			if _, dup := seen[abs]; dup {
				continue
			}
			seen[abs] = struct{}{}
			inputs = append(inputs, Input{
				AbsPath:  abs,
				Category: Classify(abs),
				Size:     fi.Size(),
				ModTime:  fi.ModTime(),
			})
			continue
		}

		excluded := buildExcluded(abs, excludeDirs)
		walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, werr error) error {
			if werr != nil {
				return werr
			}
			if isExcluded(path, excluded) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}

			cat := Classify(path)
			if cat == domain.CategoryUnknown {
				skipped++
				return nil
			}

			info, e := d.Info()
			if e != nil {
				return e
			}
			if _, dup := seen[path]; dup {
				return nil
			}
			seen[path] = struct{}{}
			inputs = append(inputs, Input{
				AbsPath:  path,
				Category: cat,
				Size:     info.Size(),
				ModTime:  info.ModTime(),
			})
			return nil
		})
		if walkErr != nil {
			return nil, 0, walkErr
		}
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].AbsPath < inputs[j].AbsPath })
	return inputs, skipped, nil
}

// Classify 按扩展名粗分类（导入阶段会用提取到的 MIME 类型修正）。
func Classify(path string) domain.MimeCategory {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case isImageExt(ext):
		return domain.CategoryImage
	case isVideoExt(ext):
		return domain.CategoryVideo
	default:
		return domain.CategoryUnknown
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".heic", ".heif", ".gif", ".tif", ".tiff", ".bmp", ".dng", ".webp":
		return true
	default:
		return false
	}
}

func isVideoExt(ext string) bool {
	switch ext {
	case ".mp4", ".m4v", ".mov", ".mts", ".m2ts", ".avi", ".mkv", ".3gp", ".mpg", ".mpeg", ".wmv":
		return true
	default:
		return false
	}
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
