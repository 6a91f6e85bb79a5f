package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ExploracuriousAlex/msort/internal/config"
	"github.com/ExploracuriousAlex/msort/internal/domain"
	"github.com/ExploracuriousAlex/msort/internal/infra/fsx"
	"github.com/ExploracuriousAlex/msort/internal/organize"
	"github.com/ExploracuriousAlex/msort/internal/profile"
)

// timelapseKeywords 是文件名里标记延时摄影的片段（小写匹配）。
var timelapseKeywords = []string{"timelapse", "hyperlaps"}

// processPhase 对 Pending 记录做匹配、转换/复制与归位（bounded worker pool）。
//
// 取消语义：ctx 取消后不再派发新记录；在途记录做完；未触达的保持 Pending。
func processPhase(ctx context.Context, eff config.EffectiveConfig, catalog *profile.Catalog, records []*domain.MediaFile, tls Tools, obs Observer, tmpDir string) {
	pending := make([]*domain.MediaFile, 0, len(records))
	byID := make(map[uuid.UUID]*domain.MediaFile, len(records))
	for _, m := range records {
		byID[m.ID] = m
		if m.State == domain.StatePending {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		return
	}

	// Live Photo 动片跟随静片进同一目录；ResolveDir 是纯函数，
	// 动片可以直接用静片记录算目录，不需要等静片先被处理。
	pairs := organize.PairLivePhotos(records, eff.LivePairTolerance)

	claims := organize.NewClaims()

	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}

	if obs != nil {
		obs.OnPhaseDone("process", map[string]any{
			"workers": workers,
			"pending": len(pending),
		}, 0)
	}

	type procResult struct {
		m   *domain.MediaFile
		dur time.Duration
	}

	jobs := make(chan *domain.MediaFile)
	results := make(chan procResult, len(pending))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				oneStarted := time.Now()
				processOne(ctx, eff, catalog, m, tls, obs, claims, tmpDir, pairs, byID)
				results <- procResult{m: m, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		for _, m := range pending {
			// 取消只在文件间生效；未派发的记录保持 Pending。
			if ctx.Err() != nil {
				break
			}
			jobs <- m
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for r := range results {
		done++
		if obs != nil {
			obs.OnItemDone(done, len(pending), domain.ResultOf(r.m, relSource(eff.Sources, r.m.SourcePath)), r.dur)
		}
	}
}

// processOne 处理单个记录：校验 → 匹配 → （apply 时）产出中间产物 → 归位。
// 目的目录里绝不出现半成品：产物先落在 tmpDir，最后一步同盘原子 rename。
func processOne(ctx context.Context, eff config.EffectiveConfig, catalog *profile.Catalog, m *domain.MediaFile, tls Tools, obs Observer, claims *organize.Claims, tmpDir string, pairs map[uuid.UUID]uuid.UUID, byID map[uuid.UUID]*domain.MediaFile) {
	if ctx.Err() != nil {
		return // 保持 Pending
	}

	advance(m, domain.StateInProgress, "", obs)

	if m.Category == domain.CategoryVideo {
		if err := validateStreams(m); err != nil {
			failRecord(m, domain.ErrCodeInvalidStreams, err.Error(), obs)
			return
		}
	}

	// 匹配：只有视频参与规则匹配；无匹配（或无规则文件）即默认仅复制。
	var prof profile.Profile
	matched := false
	if m.Category == domain.CategoryVideo && catalog != nil {
		prof, matched = catalog.Match(m)
	}
	transform := matched && !prof.CopyOnly()

	outExt := m.Ext()
	if transform {
		outExt = organize.OutputExtension(m, prof.OutputExtension)
	}

	// 目的目录：配对动片跟随静片，其余按自身机型/拍摄时间。
	dir := ""
	if stillID, ok := pairs[m.ID]; ok {
		if still := byID[stillID]; still != nil {
			dir = organize.ResolveDir(still, eff.MonthNames)
		}
	}
	if dir == "" {
		dir = organize.ResolveDir(m, eff.MonthNames)
	}

	// dry-run：只决策不落盘。占用集照常工作，报告里能看到 _2 改名决策。
	if !eff.Apply {
		final := claims.Reserve(dir, m.Base()+outExt, existingNames(eff.Out))
		m.DestinationPath = filepath.Join(dir, final)
		advance(m, domain.StateSuccess, "", obs)
		return
	}

	// 产出中间产物（转换或保真复制）。
	warnDetail := ""
	intermediate := filepath.Join(tmpDir, fmt.Sprintf("%s-%s%s", m.Base(), m.ID, outExt))
	m.IntermediatePath = intermediate

	if transform {
		if tls.Transform == nil {
			failRecord(m, domain.ErrCodeTransformFailed, "ffmpeg 不可用，无法执行转换规则 "+prof.UseCase, obs)
			return
		}
		if err := tls.Transform.Run(ctx, prof.TransformTemplate, m.SourcePath, intermediate); err != nil {
			_ = os.Remove(intermediate)
			failRecord(m, domain.ErrCodeTransformFailed, err.Error(), obs)
			return
		}

		// 转换工具会丢元数据：从源整体回写。失败降级为 Warning（产物可用）。
		if err := tls.Extract.Restore(ctx, m.SourcePath, intermediate); err != nil {
			m.ErrorCode = domain.ErrCodeMetadataRestoreFailed
			warnDetail = fmt.Sprintf("元数据回写失败：%v", err)
		}

		// 文件系统日期对齐到拍摄时间（best-effort）。
		if at, _ := organize.SelectCapture(m); !at.IsZero() {
			_ = tls.Extract.SetFileDates(ctx, intermediate, at)
		}
	} else {
		if err := fsx.CopyFilePreserve(m.SourcePath, intermediate); err != nil {
			_ = os.Remove(intermediate)
			failRecord(m, domain.ErrCodeIOFailed, fmt.Sprintf("复制失败：%v", err), obs)
			return
		}
	}

	// 归位：目录冲突由占用集消解，最后一步是同盘原子 rename。
	absDir := filepath.Join(eff.Out, dir)
	if err := fsx.EnsureDir(absDir); err != nil {
		_ = os.Remove(intermediate)
		failRecord(m, domain.ErrCodeIOFailed, fmt.Sprintf("创建目的目录失败：%v", err), obs)
		return
	}

	final := claims.Reserve(dir, m.Base()+outExt, existingNames(eff.Out))
	dst := filepath.Join(absDir, final)
	if err := fsx.Rename(intermediate, dst); err != nil {
		_ = os.Remove(intermediate)
		failRecord(m, domain.ErrCodeIOFailed, fmt.Sprintf("移动到目的地失败：%v", err), obs)
		return
	}
	m.IntermediatePath = ""
	m.DestinationPath = filepath.Join(dir, final)

	if warnDetail != "" {
		m.ErrorDetail = warnDetail
		advance(m, domain.StateWarning, warnDetail, obs)
		return
	}
	advance(m, domain.StateSuccess, "", obs)
}

// validateStreams 校验视频轨道结构是否可处理。
//
// 规则（固定）：
// - 视频轨道数必须是 1 或 2（0 说明不是视频，>2 超出工具链能力）
// - 无音轨只有三种豁免：Live Photo 动片、文件名带延时关键字、拍摄模式为延时
func validateStreams(m *domain.MediaFile) error {
	if m.VideoStreams < 1 || m.VideoStreams > 2 {
		return fmt.Errorf("视频轨道数异常：%d", m.VideoStreams)
	}
	if m.AudioStreams > 0 {
		return nil
	}
	if m.IsLivePhotoVideo {
		return nil
	}
	lower := strings.ToLower(filepath.Base(m.SourcePath))
	for _, kw := range timelapseKeywords {
		if strings.Contains(lower, kw) {
			return nil
		}
	}
	if strings.HasPrefix(m.CaptureMode, "Time-lapse") {
		return nil
	}
	return fmt.Errorf("视频没有音轨且不属于已知的无声拍摄模式")
}

// existingNames 返回占用集的磁盘播种函数（目录首次触达时调用一次）。
func existingNames(outRoot string) func(dir string) []string {
	return func(dir string) []string {
		entries, err := os.ReadDir(filepath.Join(outRoot, dir))
		if err != nil {
			return nil
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return names
	}
}
