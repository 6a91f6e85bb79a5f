// Package ffmpeg 通过 ffmpeg 可执行文件实现 tool.Transformer。
//
// 模板是数据不是代码：按空白切分为 argv，%s 占位符按出现顺序整体替换为
// 输入/输出路径（不经过 shell，含空格的路径天然安全）。
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ExploracuriousAlex/msort/internal/tool"
)

type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

type Tool struct {
	Path string

	run runFunc
}

var _ tool.Transformer = (*Tool)(nil)

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

// Run 执行一次转换并校验产物（存在且非空）。
// 失败时清理半成品，绝不把损坏文件留给下游。
func (t *Tool) Run(ctx context.Context, template, src, dst string) error {
	name, args, err := expandTemplate(template, t.Path, src, dst)
	if err != nil {
		return err
	}

	_, stderr, runErr := t.run(ctx, name, args...)
	if runErr != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("转换失败：%v（stderr: %s）", runErr, lastLine(stderr))
	}

	fi, statErr := os.Stat(dst)
	if statErr != nil {
		return fmt.Errorf("转换产物不存在：%w", statErr)
	}
	if fi.Size() == 0 {
		_ = os.Remove(dst)
		return fmt.Errorf("转换产物为空文件")
	}
	return nil
}

// expandTemplate 把模板展开为 (可执行文件, argv)。
//
// 约定：
// - 首个 token 为程序名；等于 "ffmpeg" 时替换为配置解析出的实际路径
// - 恰好两个 %s：第一个 = 输入路径，第二个 = 输出路径
func expandTemplate(template, ffmpegPath, src, dst string) (string, []string, error) {
	fields := strings.Fields(template)
	if len(fields) < 2 {
		return "", nil, fmt.Errorf("转换模板非法：%q", template)
	}

	name := fields[0]
	if name == "ffmpeg" && ffmpegPath != "" {
		name = ffmpegPath
	}

	args := make([]string, 0, len(fields)-1)
	placeholders := 0
	for _, f := range fields[1:] {
		switch f {
		case "%s":
			switch placeholders {
			case 0:
				args = append(args, src)
			case 1:
				args = append(args, dst)
			default:
				return "", nil, fmt.Errorf("转换模板的 %%s 占位符多于 2 个：%q", template)
			}
			placeholders++
		default:
			args = append(args, f)
		}
	}
	if placeholders != 2 {
		return "", nil, fmt.Errorf("转换模板必须恰好包含 2 个 %%s 占位符（输入、输出）：%q", template)
	}
	return name, args, nil
}

func lastLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
