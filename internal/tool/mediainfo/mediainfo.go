// Package mediainfo 通过 mediainfo 可执行文件实现 tool.Analyzer。
package mediainfo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ExploracuriousAlex/msort/internal/tool"
)

type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

type Tool struct {
	Path string

	run runFunc
}

var _ tool.Analyzer = (*Tool)(nil)

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

// output 对应 `mediainfo --Output=JSON` 的结构（只取需要的字段）。
type output struct {
	Media struct {
		Track []track `json:"track"`
	} `json:"media"`
}

type track struct {
	Type     string `json:"@type"`
	Format   string `json:"Format"`
	ScanType string `json:"ScanType"`
	Extra    struct {
		// 苹果 Live Photo 的内容标识符：非空即为 Live Photo 动片。
		ContentIdentifier string `json:"com_apple_quicktime_content_identifier"`
	} `json:"extra"`
}

// Analyze 解析容器/轨道信息。多条同类轨道时取第一条（与轨道计数分开统计）。
func (t *Tool) Analyze(ctx context.Context, path string) (tool.MediaInfo, error) {
	stdout, stderr, err := t.run(ctx, t.Path, "--Output=JSON", path)
	if err != nil {
		return tool.MediaInfo{}, fmt.Errorf("mediainfo 执行失败：%v（stderr: %s）", err, strings.TrimSpace(string(stderr)))
	}

	var o output
	if err := json.Unmarshal(stdout, &o); err != nil {
		return tool.MediaInfo{}, fmt.Errorf("mediainfo 输出无法解析：%w", err)
	}

	var mi tool.MediaInfo
	for _, tr := range o.Media.Track {
		switch tr.Type {
		case "General":
			mi.ContainerFormat = tr.Format
			if strings.TrimSpace(tr.Extra.ContentIdentifier) != "" {
				mi.LivePhoto = true
			}
		case "Video":
			mi.VideoStreams++
			if mi.VideoStreams == 1 {
				mi.VideoFormat = tr.Format
				mi.VideoScanType = tr.ScanType
			}
		case "Audio":
			mi.AudioStreams++
			if mi.AudioStreams == 1 {
				mi.AudioFormat = tr.Format
			}
		}
	}
	return mi, nil
}
