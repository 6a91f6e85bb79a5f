package organize

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ExploracuriousAlex/msort/internal/domain"
)

// DefaultPairTolerance 是 Live Photo 配对允许的拍摄时间偏差。
// 静片与动片由同一次快门产生，偏差通常在 1–2 秒内。
const DefaultPairTolerance = 5 * time.Second

// PairLivePhotos 把 Live Photo 动片与共享拍摄身份的静片配对。
//
// 配对条件：动片带 live 标记，静片为图片，两者文件名主干相同（忽略大小写）
// 且拍摄时间差不超过 tolerance。候选多于一个时取时间最近者，
// 再平手取源路径字典序较小者（保证确定性）。
//
// 返回 动片ID -> 静片ID。未配对的动片不在结果中：它按普通文件独立处理，
// 这不是错误。
func PairLivePhotos(files []*domain.MediaFile, tolerance time.Duration) map[uuid.UUID]uuid.UUID {
	if tolerance <= 0 {
		tolerance = DefaultPairTolerance
	}

	stills := make(map[string][]*domain.MediaFile)
	for _, f := range files {
		if f.Category != domain.CategoryImage {
			continue
		}
		stem := strings.ToLower(f.Base())
		stills[stem] = append(stills[stem], f)
	}
	for _, xs := range stills {
		sort.Slice(xs, func(i, j int) bool { return xs[i].SourcePath < xs[j].SourcePath })
	}

	pairs := make(map[uuid.UUID]uuid.UUID)
	for _, f := range files {
		if f.Category != domain.CategoryVideo || !f.IsLivePhotoVideo {
			continue
		}

		cands := stills[strings.ToLower(f.Base())]
		if len(cands) == 0 {
			continue
		}

		vt, _ := SelectCapture(f)
		var best *domain.MediaFile
		var bestDiff time.Duration
		for _, s := range cands {
			st, _ := SelectCapture(s)
			diff := vt.Sub(st)
			if diff < 0 {
				diff = -diff
			}
			if diff > tolerance {
				continue
			}
			if best == nil || diff < bestDiff {
				best = s
				bestDiff = diff
			}
		}
		if best != nil {
			pairs[f.ID] = best.ID
		}
	}
	return pairs
}
