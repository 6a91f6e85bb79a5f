package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ExploracuriousAlex/msort/internal/organize"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 msort.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingSource 表示无参运行但配置文件缺少 source 字段。
	ErrCodeMissingSource = "config_missing_source"
)

const (
	// DefaultConcurrency 是并发的内置默认值（当配置未指定时）。
	DefaultConcurrency = 4
	// DefaultOutDirName 是未指定 out 时在 source 下创建的目录名。
	DefaultOutDirName = "sorted"
	// DefaultLivePairTolerance 是 Live Photo 配对的时间容差默认值。
	DefaultLivePairTolerance = 5 * time.Second
)

// CLIArgs 只包含 CLI 暴露的入口（source/out/profiles/apply），并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --apply=false 必须能覆盖 config.apply=true。
type CLIArgs struct {
	Sources []string

	Out    string
	OutSet bool

	Profiles    string
	ProfilesSet bool

	Apply    bool
	ApplySet bool
}

// FileConfig 对应 msort.json 的解析结构。
type FileConfig struct {
	Source      string   `json:"source"`
	Out         string   `json:"out"`
	Profiles    string   `json:"profiles"`
	Apply       *bool    `json:"apply"`
	Concurrency int      `json:"concurrency"`
	ExcludeDirs []string `json:"exclude_dirs"`

	// 外部工具路径；为空时从 PATH 解析。
	ExifTool  string `json:"exiftool"`
	FFmpeg    string `json:"ffmpeg"`
	MediaInfo string `json:"mediainfo"`

	// MonthNames 允许本地化目录里的月份名；必须恰好 12 项。
	MonthNames []string `json:"month_names"`

	// LivePairToleranceSeconds 覆盖 Live Photo 配对容差（秒）。
	LivePairToleranceSeconds int `json:"live_pair_tolerance_seconds"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Sources []string
	Out     string

	// ProfilesPath 为空表示没有转换配置：一切文件走仅复制路径。
	ProfilesPath string

	Apply       bool
	Concurrency int
	ExcludeDirs []string

	// 工具路径；空串表示该工具不可用（已尝试过 PATH）。
	ExifTool  string
	FFmpeg    string
	MediaInfo string

	MonthNames        [12]string
	LivePairTolerance time.Duration
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingSource:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 source", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 按文档约定发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 source：尝试读取 <首个 source>/msort.json（可选）
// 2) CLI 未提供 source：必须读取 <cwd>/msort.json（必选），且其中必须包含 source
//
// 覆盖优先级（固定）：
// - source：CLI > config
// - out/profiles/apply：CLI > config > 默认
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if len(cli.Sources) > 0 {
		// CLI 给了 source：配置文件可选，位置固定在 <首个 source>/msort.json。
		sources := make([]string, 0, len(cli.Sources))
		for _, s := range cli.Sources {
			if p := absCleanFrom(cwdAbs, s); p != "" {
				sources = append(sources, p)
			}
		}
		if len(sources) == 0 {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: fmt.Errorf("source 不能为空")}
		}

		cfgPath := filepath.Join(firstDir(sources[0]), "msort.json")
		fc, _, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		return merge(cwdAbs, sources, cli, fc, cfgPath)
	}

	// CLI 没给 source：必须读取 <cwd>/msort.json，且其中必须包含 source。
	cfgPath := filepath.Join(cwdAbs, "msort.json")
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Source) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingSource, Path: cfgPath}
	}

	return merge(cwdAbs, []string{absCleanFrom(cwdAbs, fc.Source)}, cli, fc, cfgPath)
}

func merge(cwdAbs string, sources []string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	// out：CLI > config > <首个 source>/sorted
	out := ""
	if cli.OutSet {
		out = absCleanFrom(cwdAbs, cli.Out)
	} else if strings.TrimSpace(fc.Out) != "" {
		out = absCleanFrom(cwdAbs, fc.Out)
	}
	if out == "" {
		out = filepath.Join(firstDir(sources[0]), DefaultOutDirName)
	}

	// profiles：CLI > config > 无（仅复制）
	profiles := ""
	if cli.ProfilesSet {
		profiles = absCleanFrom(cwdAbs, cli.Profiles)
	} else if strings.TrimSpace(fc.Profiles) != "" {
		profiles = absCleanFrom(cwdAbs, fc.Profiles)
	}

	// apply：CLI > config > 默认 false（dry-run）
	apply := false
	if cli.ApplySet {
		apply = cli.Apply
	} else if fc.Apply != nil {
		apply = *fc.Apply
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 文档约定：范围建议 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	months := organize.DefaultMonthNames
	if len(fc.MonthNames) > 0 {
		if len(fc.MonthNames) != 12 {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("month_names 必须恰好 12 项，实际 %d 项", len(fc.MonthNames))}
		}
		for i, name := range fc.MonthNames {
			if strings.TrimSpace(name) == "" {
				return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("month_names[%d] 为空", i)}
			}
			months[i] = name
		}
	}

	tolerance := DefaultLivePairTolerance
	if fc.LivePairToleranceSeconds != 0 {
		if fc.LivePairToleranceSeconds < 0 {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("live_pair_tolerance_seconds 不能为负")}
		}
		tolerance = time.Duration(fc.LivePairToleranceSeconds) * time.Second
	}

	return EffectiveConfig{
		Sources:           sources,
		Out:               out,
		ProfilesPath:      profiles,
		Apply:             apply,
		Concurrency:       concurrency,
		ExcludeDirs:       append([]string(nil), fc.ExcludeDirs...),
		ExifTool:          resolveTool(fc.ExifTool, "exiftool"),
		FFmpeg:            resolveTool(fc.FFmpeg, "ffmpeg"),
		MediaInfo:         resolveTool(fc.MediaInfo, "mediainfo"),
		MonthNames:        months,
		LivePairTolerance: tolerance,
	}, nil
}

// resolveTool 解析外部工具路径：显式配置优先，否则查 PATH。
// 找不到返回空串（不是错误：缺什么工具降级什么能力，由执行层决定）。
func resolveTool(configured, name string) string {
	if p := strings.TrimSpace(configured); p != "" {
		return p
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return ""
}

// firstDir 把可能是文件的 source 归一到其所在目录（配置文件/默认 out 的锚点）。
func firstDir(p string) string {
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		return filepath.Dir(p)
	}
	return p
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
