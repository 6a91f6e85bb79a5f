// Package run 是一次排序运行的编排层：导入（扫描 + 批量提取 + 分析）、
// 处理（匹配 + 转换/复制 + 归位），最后产出对外稳定的 RunReport。
package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ExploracuriousAlex/msort/internal/config"
	"github.com/ExploracuriousAlex/msort/internal/domain"
	"github.com/ExploracuriousAlex/msort/internal/infra/fsx"
	"github.com/ExploracuriousAlex/msort/internal/profile"
	"github.com/ExploracuriousAlex/msort/internal/tool"
)

// TmpDirName 是输出根下的中间产物目录。放在输出根下是硬约定：
// 最终归位必须是同文件系统的原子 rename，目的目录里绝不出现半成品。
const TmpDirName = ".msort-tmp"

// Tools 是一次运行所需的外部工具集。
// Analyze/Transform 允许为 nil（工具缺失时能力降级，由处理层逐文件裁决）。
type Tools struct {
	Extract   tool.Extractor
	Analyze   tool.Analyzer
	Transform tool.Transformer
}

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为文件级失败（单个失败不影响其他）；
// 只有配置/输出根这类没有任何文件能成功的场景才整体中止。
func Execute(ctx context.Context, eff config.EffectiveConfig, tls Tools, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Source:    strings.Join(eff.Sources, string(filepath.ListSeparator)),
		Out:       eff.Out,
		DryRun:    !eff.Apply,
		StartedAt: started,
		Items:     make([]domain.FileResult, 0, 128),
	}

	// 规则目录：没配置就是“一切仅复制”；配置了但无效则整体中止。
	var catalog *profile.Catalog
	if eff.ProfilesPath != "" {
		c, err := profile.Load(eff.ProfilesPath)
		if err != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeProfilesInvalid, err.Error()))
			return finish(rr)
		}
		catalog = c
	}

	tmpDir := filepath.Join(eff.Out, TmpDirName)
	if eff.Apply {
		if err := fsx.EnsureDir(eff.Out); err != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("输出根不可用：%v", err)))
			return finish(rr)
		}
		if err := fsx.EnsureDir(tmpDir); err != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("临时目录不可用：%v", err)))
			return finish(rr)
		}
		defer os.RemoveAll(tmpDir)
	}

	records, err := importPhase(ctx, eff, tls, obs)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		return finish(rr)
	}

	processPhase(ctx, eff, catalog, records, tls, obs, tmpDir)

	for _, m := range records {
		rr.Items = append(rr.Items, domain.ResultOf(m, relSource(eff.Sources, m.SourcePath)))
	}
	return finish(rr)
}

func finish(rr domain.RunReport) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func syntheticFailed(code, msg string) domain.FileResult {
	return domain.FileResult{
		State:       domain.StateError.String(),
		ErrorCode:   code,
		ErrorDetail: msg,
	}
}

// relSource 把绝对源路径相对化到包含它的输入根；都不包含时原样返回。
func relSource(sources []string, abs string) string {
	for _, root := range sources {
		if abs == root {
			return filepath.Base(abs)
		}
		if rel, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return abs
}

// advance 推进状态机并发事件；非法迁移直接忽略（终态不再变化）。
func advance(m *domain.MediaFile, to domain.ProcessingState, detail string, obs Observer) {
	if !m.State.CanAdvance(to) {
		return
	}
	m.State = to
	if obs != nil {
		obs.OnFileState(m.ID, m.SourcePath, to, detail)
	}
}

// failRecord 把记录置为 Error 并记录错误码/细节。
func failRecord(m *domain.MediaFile, code, detail string, obs Observer) {
	m.ErrorCode = code
	m.ErrorDetail = detail
	advance(m, domain.StateError, detail, obs)
}
