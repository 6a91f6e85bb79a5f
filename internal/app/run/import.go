package run

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ExploracuriousAlex/msort/internal/config"
	"github.com/ExploracuriousAlex/msort/internal/domain"
	"github.com/ExploracuriousAlex/msort/internal/scan"
	"github.com/ExploracuriousAlex/msort/internal/tool"
)

// importPhase 完成导入：扫描输入、一次批量提取元数据、视频补做容器分析。
//
// 错误语义：
// - 扫描失败（输入根不可访问）是运行级错误，上抛
// - 单个文件的提取/分析失败只影响该记录（Error + extraction_failed）
// - 成功导入的记录离开本阶段时处于 Pending
func importPhase(ctx context.Context, eff config.EffectiveConfig, tls Tools, obs Observer) ([]*domain.MediaFile, error) {
	scanStarted := time.Now()
	inputs, skipped, err := scan.Collect(eff.Sources, eff.ExcludeDirs)
	if err != nil {
		return nil, err
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"files":   len(inputs),
			"skipped": skipped,
		}, time.Since(scanStarted))
	}

	records := make([]*domain.MediaFile, 0, len(inputs))
	paths := make([]string, 0, len(inputs))
	for _, in := range inputs {
		records = append(records, domain.NewMediaFile(in.AbsPath, in.Category, in.ModTime))
		paths = append(paths, in.AbsPath)
	}
	if len(records) == 0 {
		return records, nil
	}

	// 提取是整批一次外部调用；批级失败意味着没有任何文件有元数据，
	// 全部记录失败（但不中止运行：报告仍然完整产出）。
	extractStarted := time.Now()
	results, err := tls.Extract.ExtractBatch(ctx, paths)
	if err != nil {
		for _, m := range records {
			failRecord(m, domain.ErrCodeExtractionFailed, fmt.Sprintf("批量提取失败：%v", err), obs)
		}
		return records, nil
	}

	analyzed := 0
	for _, m := range records {
		r, ok := results[m.SourcePath]
		if !ok {
			failRecord(m, domain.ErrCodeExtractionFailed, "提取结果缺失该文件", obs)
			continue
		}
		if r.Err != nil {
			failRecord(m, domain.ErrCodeExtractionFailed, r.Err.Error(), obs)
			continue
		}

		populateRecord(m, r.Meta)
		if m.Category == domain.CategoryUnknown {
			failRecord(m, domain.ErrCodeExtractionFailed, fmt.Sprintf("无法识别的文件类型（MIME=%q）", r.Meta.MIMEType), obs)
			continue
		}

		if m.Category == domain.CategoryVideo {
			if tls.Analyze == nil {
				failRecord(m, domain.ErrCodeExtractionFailed, "mediainfo 不可用，无法分析视频", obs)
				continue
			}
			mi, aerr := tls.Analyze.Analyze(ctx, m.SourcePath)
			if aerr != nil {
				failRecord(m, domain.ErrCodeExtractionFailed, fmt.Sprintf("容器分析失败：%v", aerr), obs)
				continue
			}
			applyMediaInfo(m, mi)
			analyzed++
		}

		advance(m, domain.StatePending, "", obs)
	}

	if obs != nil {
		obs.OnPhaseDone("import", map[string]any{
			"records":  len(records),
			"analyzed": analyzed,
		}, time.Since(extractStarted))
	}
	return records, nil
}

// populateRecord 把提取结果写入记录：MIME 修正粗分类，时间信号按固定
// 优先级追加（CreationDate > DateTimeOriginal > CreateDate > FileModifyDate）。
func populateRecord(m *domain.MediaFile, meta tool.Metadata) {
	switch {
	case strings.HasPrefix(meta.MIMEType, "image/"):
		m.Category = domain.CategoryImage
	case strings.HasPrefix(meta.MIMEType, "video/"):
		m.Category = domain.CategoryVideo
	}

	m.CameraModel = strings.TrimSpace(meta.CameraModel)
	m.CaptureMode = strings.TrimSpace(meta.CaptureMode)

	m.AddStamp(domain.SourceCreationDate, meta.CreationDate)
	m.AddStamp(domain.SourceDateTimeOriginal, meta.DateTimeOriginal)
	m.AddStamp(domain.SourceCreateDate, meta.CreateDate)
	m.AddStamp(domain.SourceFileModifyDate, meta.FileModifyDate)
}

func applyMediaInfo(m *domain.MediaFile, mi tool.MediaInfo) {
	m.ContainerFormat = mi.ContainerFormat
	m.VideoFormat = mi.VideoFormat
	m.VideoScanType = mi.VideoScanType
	m.AudioFormat = mi.AudioFormat
	m.VideoStreams = mi.VideoStreams
	m.AudioStreams = mi.AudioStreams
	m.IsLivePhotoVideo = mi.LivePhoto
}
