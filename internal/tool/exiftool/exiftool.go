// Package exiftool 通过 exiftool 可执行文件实现 tool.Extractor。
//
// 批量提取走 -@ 参数文件 + -json：一次进程调用覆盖整批文件，
// 这是导入阶段的效率契约（逐文件起进程的延迟不可接受）。
package exiftool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ExploracuriousAlex/msort/internal/tool"
)

// runFunc 是进程执行的测试接缝。
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

type Tool struct {
	// Path 是 exiftool 可执行文件路径。
	Path string

	run runFunc
}

var _ tool.Extractor = (*Tool)(nil)

func New(path string) *Tool {
	return &Tool{Path: path, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// baseArgs 是每次调用都带的固定参数（大文件与 UTF-8 文件名支持）。
var baseArgs = []string{"-api", "largefilesupport=1", "-charset", "filename=utf8"}

// rawEntry 对应 exiftool -json 输出数组里的一个对象。
type rawEntry struct {
	SourceFile string `json:"SourceFile"`
	Error      string `json:"Error"`

	MIMEType string `json:"MIMEType"`
	Model    string `json:"Model"`

	CreationDate     string `json:"CreationDate"`
	DateTimeOriginal string `json:"DateTimeOriginal"`
	CreateDate       string `json:"CreateDate"`
	FileModifyDate   string `json:"FileModifyDate"`

	CaptureMode            string `json:"CaptureMode"`
	ApplePhotosCaptureMode string `json:"ApplePhotosCaptureMode"`
}

// ExtractBatch 对整批文件做一次 exiftool 调用并按 SourceFile 回填。
//
// 返回的 map 以传入路径（clean 后）为键；单个文件的失败体现在
// Result.Err 上，不影响批内其他文件。整体错误（进程无法启动、
// 输出无法解析）才通过第二个返回值上抛。
func (t *Tool) ExtractBatch(ctx context.Context, paths []string) (map[string]tool.Result, error) {
	out := make(map[string]tool.Result, len(paths))
	if len(paths) == 0 {
		return out, nil
	}

	argFile, err := writeArgFile(paths)
	if err != nil {
		return nil, fmt.Errorf("写入参数文件失败：%w", err)
	}
	defer os.Remove(argFile)

	args := append([]string{}, baseArgs...)
	args = append(args, "-@", argFile, "-json")

	stdout, stderr, runErr := t.run(ctx, t.Path, args...)
	// exiftool 对“部分文件出错”的退出码非零，但 stdout 仍是完整 JSON；
	// 只有 stdout 解析不出来才算整体失败。
	var entries []rawEntry
	if jsonErr := json.Unmarshal(stdout, &entries); jsonErr != nil {
		if runErr != nil {
			return nil, fmt.Errorf("exiftool 执行失败：%v（stderr: %s）", runErr, firstLine(stderr))
		}
		return nil, fmt.Errorf("exiftool 输出无法解析：%w", jsonErr)
	}

	byPath := make(map[string]rawEntry, len(entries))
	for _, e := range entries {
		byPath[filepath.Clean(e.SourceFile)] = e
	}

	for _, p := range paths {
		key := filepath.Clean(p)
		e, ok := byPath[key]
		if !ok {
			out[key] = tool.Result{Err: fmt.Errorf("exiftool 未返回该文件的结果")}
			continue
		}
		if e.Error != "" {
			out[key] = tool.Result{Err: fmt.Errorf("exiftool：%s", e.Error)}
			continue
		}

		mode := e.CaptureMode
		if mode == "" {
			mode = e.ApplePhotosCaptureMode
		}
		out[key] = tool.Result{Meta: tool.Metadata{
			MIMEType:         e.MIMEType,
			CameraModel:      e.Model,
			CreationDate:     e.CreationDate,
			DateTimeOriginal: e.DateTimeOriginal,
			CreateDate:       e.CreateDate,
			FileModifyDate:   e.FileModifyDate,
			CaptureMode:      mode,
		}}
	}
	return out, nil
}

// Restore 把 src 的全部标签复制到 dst（-tagsfromfile），
// 并清理 exiftool 留下的 _original 备份。
func (t *Tool) Restore(ctx context.Context, src, dst string) error {
	args := append([]string{}, baseArgs...)
	args = append(args, "-q", "-tagsfromfile", src, dst)

	_, stderr, err := t.run(ctx, t.Path, args...)
	if err != nil {
		return fmt.Errorf("元数据恢复失败：%v（stderr: %s）", err, firstLine(stderr))
	}

	_ = os.Remove(dst + "_original")
	return nil
}

// SetFileDates 把 path 的文件系统日期对齐到选定的拍摄时间。
func (t *Tool) SetFileDates(ctx context.Context, path string, at time.Time) error {
	stamp := at.Format("2006:01:02 15:04:05")
	args := append([]string{}, baseArgs...)
	args = append(args, "-q", "-FileModifyDate="+stamp, path)

	_, stderr, err := t.run(ctx, t.Path, args...)
	if err != nil {
		return fmt.Errorf("设置文件日期失败：%v（stderr: %s）", err, firstLine(stderr))
	}

	_ = os.Remove(path + "_original")
	return nil
}

func writeArgFile(paths []string) (string, error) {
	f, err := os.CreateTemp("", "msort-args-*.txt")
	if err != nil {
		return "", err
	}
	name := f.Name()

	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
