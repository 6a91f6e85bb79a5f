package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ExploracuriousAlex/msort/internal/domain"
)

// Profile 是一条声明式转换规则。
//
// 匹配语义（硬约束）：
// - 五元组 (扩展名, 视频格式, 扫描类型, 音频格式, live 标记) 必须逐项精确相等
// - 可选字段为空只匹配记录中同样为空的字段，不是通配符
// - 只有扩展名忽略大小写
type Profile struct {
	UseCase     string `json:"use_case"`
	Description string `json:"description"`

	MatchExtension string `json:"match_extension"`
	VideoFormat    string `json:"video_format"`
	VideoScanType  string `json:"video_scan_type"`
	AudioFormat    string `json:"audio_format"`
	LivePhotoVideo bool   `json:"live_photo_video"`

	// TransformTemplate 为空表示“仅复制，不转换”。
	TransformTemplate string `json:"transform_template"`
	// OutputExtension 在 TransformTemplate 非空时必填；复制时等于原扩展名。
	OutputExtension string `json:"output_extension"`
}

// CopyOnly 判断该规则是否为纯复制。
func (p Profile) CopyOnly() bool {
	return strings.TrimSpace(p.TransformTemplate) == ""
}

type key struct {
	ext       string
	video     string
	scan      string
	audio     string
	livePhoto bool
}

// Catalog 是已加载并建好索引的规则集。
type Catalog struct {
	index map[key]Profile
}

// Error 是目录加载阶段的结构化错误（映射 error_code=profiles_invalid）。
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s：转换规则文件 %q 无效：%v", domain.ErrCodeProfilesInvalid, e.Path, e.Err)
	}
	return fmt.Sprintf("%s：转换规则无效：%v", domain.ErrCodeProfilesInvalid, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Load 读取并解析规则文件（JSON 数组）。
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	c, err := Parse(b)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			pe.Path = path
			return nil, pe
		}
		return nil, &Error{Path: path, Err: err}
	}
	return c, nil
}

// Parse 解析规则并做唯一性校验。
//
// 失败条件（配置错误，启动即中止）：
// - JSON 无法解析 / 列表为空
// - match_extension 缺失或不以 '.' 开头
// - transform_template 非空但 output_extension 缺失
// - 五元组重复（歧义匹配不允许在运行期决策）
func Parse(b []byte) (*Catalog, error) {
	var profiles []Profile
	if err := json.Unmarshal(b, &profiles); err != nil {
		return nil, &Error{Err: err}
	}
	if len(profiles) == 0 {
		return nil, &Error{Err: fmt.Errorf("规则列表为空")}
	}

	index := make(map[key]Profile, len(profiles))
	for i, p := range profiles {
		ext := strings.ToLower(strings.TrimSpace(p.MatchExtension))
		if ext == "" || !strings.HasPrefix(ext, ".") {
			return nil, &Error{Err: fmt.Errorf("第 %d 条规则的 match_extension 非法：%q", i+1, p.MatchExtension)}
		}
		if !p.CopyOnly() {
			out := strings.TrimSpace(p.OutputExtension)
			if out == "" || !strings.HasPrefix(out, ".") {
				return nil, &Error{Err: fmt.Errorf("第 %d 条规则有 transform_template 但 output_extension 非法：%q", i+1, p.OutputExtension)}
			}
		}

		k := key{
			ext:       ext,
			video:     p.VideoFormat,
			scan:      p.VideoScanType,
			audio:     p.AudioFormat,
			livePhoto: p.LivePhotoVideo,
		}
		if dup, ok := index[k]; ok {
			return nil, &Error{Err: fmt.Errorf(
				"规则重复：extension=%q video=%q scan=%q audio=%q live=%v（%q 与 %q）",
				k.ext, k.video, k.scan, k.audio, k.livePhoto, dup.UseCase, p.UseCase,
			)}
		}
		index[k] = p
	}

	return &Catalog{index: index}, nil
}

// Len 返回规则条数。
func (c *Catalog) Len() int { return len(c.index) }

// Match 对视频记录做精确查找。
// ok=false 表示无匹配规则，即默认的“仅复制”（这不是错误）。
func (c *Catalog) Match(m *domain.MediaFile) (Profile, bool) {
	k := key{
		ext:       strings.ToLower(m.Ext()),
		video:     m.VideoFormat,
		scan:      m.VideoScanType,
		audio:     m.AudioFormat,
		livePhoto: m.IsLivePhotoVideo,
	}
	p, ok := c.index[k]
	return p, ok
}
