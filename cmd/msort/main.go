package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ExploracuriousAlex/msort/internal/app/run"
	"github.com/ExploracuriousAlex/msort/internal/config"
	"github.com/ExploracuriousAlex/msort/internal/domain"
	"github.com/ExploracuriousAlex/msort/internal/exif"
	"github.com/ExploracuriousAlex/msort/internal/infra/fsx"
	"github.com/ExploracuriousAlex/msort/internal/tool/exiftool"
	"github.com/ExploracuriousAlex/msort/internal/tool/ffmpeg"
	"github.com/ExploracuriousAlex/msort/internal/tool/mediainfo"
)

// ReportFileName 是 apply 运行写到输出根的报告文件名。
const ReportFileName = "msort-report.json"

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Sources:     ra.Sources,
		Out:         ra.Out,
		OutSet:      ra.OutSet,
		Profiles:    ra.Profiles,
		ProfilesSet: ra.ProfilesSet,
		Apply:       ra.Apply,
		ApplySet:    ra.ApplySet,
	})
	if err != nil {
		rr := reportForConfigError(cwdAbs, ra, err)
		emitReport(rr)
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	// Ctrl-C：停止派发新文件，在途文件做完，报告仍然完整产出。
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rr := run.Execute(ctx, eff, buildTools(eff), obs)

	// apply：必须写入 <out>/msort-report.json；dry-run 禁止落盘。
	if eff.Apply {
		if err := writeReportFile(eff.Out, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入 %s 失败：%v\n", ReportFileName, err)
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	if rr.Summary.Error == 0 {
		return 0
	}
	return 1
}

// buildTools 按最终配置装配外部工具。
// 缺 exiftool 时图片提取退化为内置 goexif；缺 mediainfo/ffmpeg 的降级
// 由执行层逐文件裁决（分析失败/转换规则失败）。
func buildTools(eff config.EffectiveConfig) run.Tools {
	tls := run.Tools{}
	if eff.ExifTool != "" {
		tls.Extract = exiftool.New(eff.ExifTool)
	} else {
		tls.Extract = exif.Fallback{}
	}
	if eff.MediaInfo != "" {
		tls.Analyze = mediainfo.New(eff.MediaInfo)
	}
	if eff.FFmpeg != "" {
		tls.Transform = ffmpeg.New(eff.FFmpeg)
	}
	return tls
}

type runArgs struct {
	Sources []string

	Out    string
	OutSet bool

	Profiles    string
	ProfilesSet bool

	Apply    bool
	ApplySet bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--out":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--out 需要一个值")
			}
			i++
			ra.Out = args[i]
			ra.OutSet = true
		case strings.HasPrefix(a, "--out="):
			ra.Out = strings.TrimPrefix(a, "--out=")
			ra.OutSet = true
		case a == "--profiles":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--profiles 需要一个值")
			}
			i++
			ra.Profiles = args[i]
			ra.ProfilesSet = true
		case strings.HasPrefix(a, "--profiles="):
			ra.Profiles = strings.TrimPrefix(a, "--profiles=")
			ra.ProfilesSet = true
		case a == "--apply":
			ra.Apply = true
			ra.ApplySet = true
		case strings.HasPrefix(a, "--apply="):
			v := strings.TrimPrefix(a, "--apply=")
			switch v {
			case "true":
				ra.Apply = true
			case "false":
				ra.Apply = false
			default:
				return runArgs{}, fmt.Errorf("--apply 只能是 true 或 false，实际是 %q", v)
			}
			ra.ApplySet = true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			ra.Sources = append(ra.Sources, a)
		}
	}

	if ra.OutSet && strings.TrimSpace(ra.Out) == "" {
		return runArgs{}, fmt.Errorf("--out 不能为空")
	}
	if ra.ProfilesSet && strings.TrimSpace(ra.Profiles) == "" {
		return runArgs{}, fmt.Errorf("--profiles 不能为空")
	}

	return ra, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  msort run [source ...] [--out 目录] [--profiles 文件] [--apply[=true|false]]

命令：
  run    运行一次整理（默认 dry-run）

使用 "msort run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  msort run [source ...] [--out 目录] [--profiles 文件] [--apply[=true|false]]

参数：
  source      输入文件或目录（可多个；未指定则读 cwd 下 msort.json 的 source）
  --out       输出根目录（默认 <source>/sorted）
  --profiles  转换规则 JSON（未指定则一切仅复制）
  --apply     执行转换/复制与归位（默认 dry-run）；支持 --apply=false 覆盖配置中的 apply=true
  -h, --help  显示帮助
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：success=%d warning=%d error=%d pending=%d\n",
			rr.Summary.Success, rr.Summary.Warning, rr.Summary.Error, rr.Summary.Pending,
		)
		if rr.Summary.Error > 0 || rr.Summary.Warning > 0 {
			for _, it := range rr.Items {
				if it.State != domain.StateError.String() && it.State != domain.StateWarning.String() {
					continue
				}
				key := it.Src
				if key == "" {
					key = "<run>"
				}
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorDetail)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：success=%d warning=%d error=%d pending=%d\n",
		rr.Summary.Success, rr.Summary.Warning, rr.Summary.Error, rr.Summary.Pending,
	)
}

func reportForConfigError(cwdAbs string, ra runArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.RunReport{
		Source:     strings.Join(ra.Sources, string(filepath.ListSeparator)),
		DryRun:     !(ra.ApplySet && ra.Apply),
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.FileResult{{
			State:       domain.StateError.String(),
			ErrorCode:   code,
			ErrorDetail: err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(out string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(out, ReportFileName, b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	// 这两行用于降低“完成后不知道产物在哪”的摩擦，且不影响 stdout JSON 契约。
	if w == nil {
		return
	}
	if eff.Apply {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.Out, ReportFileName))
	}
	fmt.Fprintf(w, "out: %s\n", eff.Out)
}
