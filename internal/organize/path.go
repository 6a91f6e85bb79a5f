package organize

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ExploracuriousAlex/msort/internal/domain"
)

// UnknownCamera 是机型缺失时的固定目录名。
const UnknownCamera = "Unknown Camera"

// DefaultMonthNames 是月份目录名的内置默认值（可被配置的本地化表覆盖）。
var DefaultMonthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// appleFamilies 是需要折叠的苹果设备前缀（大小写敏感的前缀匹配，固定小表）。
// 具体型号后缀（"iPhone 14 Pro"）一律折叠为前缀本身，保证同族进同一目录。
var appleFamilies = []string{"iPhone", "iPad", "iPod"}

// NormalizeCamera 规范化机型名：去空白；苹果设备族折叠；缺失时用固定标签。
func NormalizeCamera(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return UnknownCamera
	}
	for _, fam := range appleFamilies {
		if strings.HasPrefix(model, fam) {
			return fam
		}
	}
	return model
}

// stampLayouts 覆盖 exiftool 与常见 ISO 输出形态（含可选亚秒与时区）。
var stampLayouts = []string{
	"2006:01:02 15:04:05.999Z07:00",
	"2006:01:02 15:04:05Z07:00",
	"2006:01:02 15:04:05.999",
	"2006:01:02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseStamp 解析一个原始时间信号并做有效性判定。
//
// 有效性谓词（显式约定，不信任任何“能解析”的值）：
// - 能按已知布局解析
// - 年份 > 1970（排除 0000:00:00 与 epoch 零值这类工具占位）
func ParseStamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range stampLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if t.Year() <= 1970 {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// SelectCapture 按固定优先级选择拍摄时间。
//
// 严格优先级链（不是平均或猜测）：record 内 Stamps 已按
// CreationDate > DateTimeOriginal > CreateDate > FileModifyDate 有序，
// 第一个通过有效性谓词的值胜出，之后的来源不再被查询；
// 全部缺失/无效时回退到文件系统修改时间（永远可用）。
func SelectCapture(m *domain.MediaFile) (time.Time, domain.DateSource) {
	for _, s := range m.Stamps {
		if t, ok := ParseStamp(s.Raw); ok {
			return t, s.Source
		}
	}
	return m.ModTime, domain.SourceFileModifyDate
}

// ResolveDir 计算目的目录的相对路径：{机型}/{年}/{两位月}-{月名}。
// 纯函数：不触碰文件系统；months 为空位时回退内置英文名。
func ResolveDir(m *domain.MediaFile, months [12]string) string {
	t, _ := SelectCapture(m)

	name := months[t.Month()-1]
	if strings.TrimSpace(name) == "" {
		name = DefaultMonthNames[t.Month()-1]
	}

	return filepath.Join(
		NormalizeCamera(m.CameraModel),
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d-%s", int(t.Month()), name),
	)
}

// ResolvePath 计算完整相对路径：目录 + 原始文件名（扩展名按 outExt 替换）。
// outExt 为空表示保留原扩展名。
func ResolvePath(m *domain.MediaFile, outExt string, months [12]string) string {
	if outExt == "" {
		outExt = m.Ext()
	}
	return filepath.Join(ResolveDir(m, months), m.Base()+outExt)
}

// OutputExtension 决定转换产物的扩展名：与源扩展名大小写无关地相等时，
// 保留源文件的原始大小写（避免 .MP4 -> .mp4 这类无意义的重命名）。
func OutputExtension(m *domain.MediaFile, profileExt string) string {
	src := m.Ext()
	if strings.EqualFold(src, profileExt) {
		return src
	}
	return profileExt
}
