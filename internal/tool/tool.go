// Package tool 定义核心对外部工具的依赖面（提取、分析、转换）。
// 核心只依赖这里的接口；具体实现（exiftool/mediainfo/ffmpeg/goexif）可替换，
// 测试用桩实现。
package tool

import (
	"context"
	"time"
)

// Metadata 是提取服务返回的最小字段集（只保留核心决策需要的字段）。
// 所有日期字段保持工具输出的原始字符串；缺失即空串。
type Metadata struct {
	MIMEType    string
	CameraModel string

	CreationDate     string
	DateTimeOriginal string
	CreateDate       string
	FileModifyDate   string

	CaptureMode string
}

// Result 是单个文件的提取结果。Err 非空表示该文件提取失败，
// 但不影响同批次的其他文件（部分失败隔离）。
type Result struct {
	Meta Metadata
	Err  error
}

// Extractor 是元数据提取服务。
//
// 效率契约：ExtractBatch 必须把整批文件合并为尽可能少的外部调用，
// 绝不允许按文件逐个起进程。
type Extractor interface {
	ExtractBatch(ctx context.Context, paths []string) (map[string]Result, error)
	// Restore 把 src 的元数据整体复制到 dst（转换工具可能丢元数据）。
	Restore(ctx context.Context, src, dst string) error
	// SetFileDates 把 path 的文件系统日期对齐到 at。
	SetFileDates(ctx context.Context, path string, at time.Time) error
}

// MediaInfo 是视频分析结果。
type MediaInfo struct {
	ContainerFormat string
	VideoFormat     string
	VideoScanType   string
	AudioFormat     string
	VideoStreams    int
	AudioStreams    int
	// LivePhoto 表示容器带苹果 QuickTime content identifier。
	LivePhoto bool
}

// Analyzer 是视频容器/轨道分析服务。
type Analyzer interface {
	Analyze(ctx context.Context, path string) (MediaInfo, error)
}

// Transformer 执行一次转换：按模板把 src 变换为 dst（同步，成功即产物可用）。
type Transformer interface {
	Run(ctx context.Context, template, src, dst string) error
}
