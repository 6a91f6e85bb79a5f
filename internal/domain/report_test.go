package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		Source:     "/abs/in",
		Out:        "/abs/out",
		DryRun:     true,
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []FileResult{
			{Src: "b.mov", State: "warning"},
			{Src: "", State: "error"}, // 配置类合成条目
			{Src: "a.jpg", State: "success"},
			{Src: "c.mp4", State: "pending"},
		},
	}

	r.Finalize()

	// src=="" 必须排在最后。
	got := []string{r.Items[0].Src, r.Items[1].Src, r.Items[2].Src, r.Items[3].Src}
	want := []string{"a.jpg", "b.mov", "c.mp4", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("items 排序不符合契约：%v", got)
		}
	}
	if r.Summary.Success != 1 || r.Summary.Warning != 1 || r.Summary.Error != 1 || r.Summary.Pending != 1 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestMediaFile_BaseExtAndStamps(t *testing.T) {
	m := NewMediaFile("/in/IMG_0001.MOV", CategoryVideo, time.Unix(1700000000, 0))
	if m.Base() != "IMG_0001" || m.Ext() != ".MOV" {
		t.Fatalf("base/ext 不正确：%q %q", m.Base(), m.Ext())
	}

	m.AddStamp(SourceCreationDate, "2024:01:15 10:30:00+01:00")
	m.AddStamp(SourceDateTimeOriginal, "  ") // 空白必须被忽略
	m.AddStamp(SourceCreateDate, "2024:01:15 09:30:00")

	if len(m.Stamps) != 2 {
		t.Fatalf("期望 2 个时间信号，实际 %d", len(m.Stamps))
	}
	if m.Stamp(SourceCreationDate) == "" || m.Stamp(SourceDateTimeOriginal) != "" {
		t.Fatalf("Stamp 查询不正确：%+v", m.Stamps)
	}
}
