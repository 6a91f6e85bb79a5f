package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MimeCategory 是文件的粗分类（决定走视频管线还是图片管线）。
type MimeCategory string

const (
	CategoryImage   MimeCategory = "image"
	CategoryVideo   MimeCategory = "video"
	CategoryUnknown MimeCategory = "unknown"
)

// DateSource 是拍摄时间信号的来源标签（优先级固定，见 CaptureStamp）。
type DateSource string

const (
	// SourceCreationDate 是 QuickTime 的创建时间（带时区，优先级最高）。
	SourceCreationDate DateSource = "CreationDate"
	// SourceDateTimeOriginal 是原始拍摄时间。
	SourceDateTimeOriginal DateSource = "DateTimeOriginal"
	// SourceCreateDate 是数字化生成时间（EXIF 的 DateTimeDigitized）。
	SourceCreateDate DateSource = "CreateDate"
	// SourceFileModifyDate 是文件系统修改时间（永远存在，最后兜底）。
	SourceFileModifyDate DateSource = "FileModifyDate"
)

// CaptureStamp 是一个 (来源, 原始值) 对。
// Raw 保持工具输出的原始字符串，解析与有效性判定由 organize 负责。
type CaptureStamp struct {
	Source DateSource
	Raw    string
}

// MediaFile 是一个被导入文件的规范记录。
//
// 不变量（实现必须遵守）：
// - SourcePath 在创建后不再变化（clean + absolute）
// - State 只能沿 ProcessingState 的单向机推进，终态不再迁移
// - Stamps 按优先级有序；为空时目的地日期回退到 ModTime（ModTime 永远可用）
type MediaFile struct {
	ID         uuid.UUID
	SourcePath string

	Category        MimeCategory
	ContainerFormat string
	VideoFormat     string
	VideoScanType   string
	AudioFormat     string
	VideoStreams    int
	AudioStreams    int

	CameraModel string
	CaptureMode string
	Stamps      []CaptureStamp
	ModTime     time.Time

	IsLivePhotoVideo bool

	State       ProcessingState
	ErrorCode   string
	ErrorDetail string

	// IntermediatePath 指向临时目录中的中间产物（成功移动后即失效）。
	IntermediatePath string
	// DestinationPath 是相对输出根的最终路径（路径解析成功后写入）。
	DestinationPath string
}

// NewMediaFile 创建初始状态（NoState）的记录。
func NewMediaFile(sourcePath string, cat MimeCategory, modTime time.Time) *MediaFile {
	return &MediaFile{
		ID:         uuid.New(),
		SourcePath: filepath.Clean(sourcePath),
		Category:   cat,
		ModTime:    modTime,
		State:      StateNone,
	}
}

// Base 返回不含扩展名的文件名。
func (m *MediaFile) Base() string {
	name := filepath.Base(m.SourcePath)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Ext 返回原始扩展名（保留大小写，含点）。
func (m *MediaFile) Ext() string {
	return filepath.Ext(m.SourcePath)
}

// Stamp 返回指定来源的原始值；不存在时返回空串。
func (m *MediaFile) Stamp(src DateSource) string {
	for _, s := range m.Stamps {
		if s.Source == src {
			return s.Raw
		}
	}
	return ""
}

// AddStamp 追加一个非空时间信号（调用方负责按优先级顺序追加）。
func (m *MediaFile) AddStamp(src DateSource, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	m.Stamps = append(m.Stamps, CaptureStamp{Source: src, Raw: raw})
}
