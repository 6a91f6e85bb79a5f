package domain

import (
	"sort"
	"time"
)

const (
	ErrCodeConfigNotFound  = "config_not_found"
	ErrCodeConfigInvalid   = "config_invalid"
	ErrCodeProfilesInvalid = "profiles_invalid"

	ErrCodeExtractionFailed      = "extraction_failed"
	ErrCodeInvalidStreams        = "invalid_streams"
	ErrCodeTransformFailed       = "transform_failed"
	ErrCodeMetadataRestoreFailed = "metadata_restore_failed"
	ErrCodeIOFailed              = "io_failed"
)

// RunReport 是对外稳定输出（stdout JSON / msort-report.json）的结构。
type RunReport struct {
	Source string `json:"source"`
	Out    string `json:"out"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []FileResult  `json:"items"`
}

type ReportSummary struct {
	Success int `json:"success"`
	Warning int `json:"warning"`
	Error   int `json:"error"`
	Pending int `json:"pending"`
}

// FileResult 是单个文件的最终结果（src 为相对输入根的路径，dst 为相对输出根）。
type FileResult struct {
	ID       string `json:"id"`
	Src      string `json:"src"`
	Dst      string `json:"dst"`
	Category string `json:"category"`

	State       string `json:"state"`
	ErrorCode   string `json:"error_code"`
	ErrorDetail string `json:"error_detail"`
}

// ResultOf 把记录折叠为报告条目（src/dst 的相对化由调用方完成后传入）。
func ResultOf(m *MediaFile, src string) FileResult {
	return FileResult{
		ID:          m.ID.String(),
		Src:         src,
		Dst:         m.DestinationPath,
		Category:    string(m.Category),
		State:       m.State.String(),
		ErrorCode:   m.ErrorCode,
		ErrorDetail: m.ErrorDetail,
	}
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 src 字典序；src=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Src
		b := r.Items[j].Src
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch ProcessingState(it.State) {
		case StateSuccess:
			s.Success++
		case StateWarning:
			s.Warning++
		case StateError:
			s.Error++
		case StatePending:
			s.Pending++
		}
	}
	r.Summary = s
}
