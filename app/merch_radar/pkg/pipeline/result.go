package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
)

// Mode 运行模式
type Mode string

const (
	ModeDaily  Mode = "daily"
	ModeWeekly Mode = "weekly"
	ModeSingle Mode = "create"
)

// RunStatus 运行整体状态
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	// RunPartial 至少一个细分市场分支失败，其余照常完成
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// ConceptStatus 单个细分市场 / 概念的去向
type ConceptStatus string

const (
	ConceptPublished ConceptStatus = "published"
	// ConceptPersisted 产物已落盘但未发布：合规未通过、发布关闭或上传降级
	ConceptPersisted ConceptStatus = "persisted"
	// ConceptQualified 日报中通过门槛、未发布的细分市场
	ConceptQualified ConceptStatus = "qualified"
	ConceptRecorded  ConceptStatus = "recorded"
	ConceptSkipped   ConceptStatus = "skipped"
	ConceptFailed    ConceptStatus = "failed"
)

// ConceptResult 一个细分市场分支的结果
type ConceptResult struct {
	NicheName   string                 `json:"niche_name"`
	Trend       string                 `json:"trend"`
	Score       float64                `json:"score"`
	Status      ConceptStatus          `json:"status"`
	Stage       string                 `json:"stage,omitempty"` // 结束时所在阶段
	Reason      string                 `json:"reason,omitempty"`
	Compliance  model.ComplianceStatus `json:"compliance,omitempty"`
	RiskTerms   []string               `json:"risk_terms,omitempty"`
	RecordID    string                 `json:"record_id,omitempty"`
	ArtifactDir string                 `json:"artifact_dir,omitempty"`
}

// RunResult 一次运行的结构化结果
type RunResult struct {
	RunID      string          `json:"run_id"`
	Mode       Mode            `json:"mode"`
	Date       time.Time       `json:"date"`
	Status     RunStatus       `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	TrendCount int             `json:"trend_count"`
	MinScore   float64         `json:"min_score"`
	Concepts   []ConceptResult `json:"concepts"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Count 某状态的条目数
func (r RunResult) Count(status ConceptStatus) int {
	n := 0
	for _, c := range r.Concepts {
		if c.Status == status {
			n++
		}
	}
	return n
}

func (r *RunResult) finish(now time.Time) {
	r.FinishedAt = now
	if r.Status == RunFailed {
		return
	}
	r.Status = RunCompleted
	if r.Count(ConceptFailed) > 0 {
		r.Status = RunPartial
	}
}

var summarySections = []struct {
	status ConceptStatus
	title  string
}{
	{ConceptPublished, "Published"},
	{ConceptQualified, "Qualified"},
	{ConceptPersisted, "Persisted, not published"},
	{ConceptSkipped, "Skipped"},
	{ConceptFailed, "Failed"},
	{ConceptRecorded, "Recorded below gate"},
}

// Summary 运行摘要：成功、跳过（含原因）和失败逐条列出
func (r RunResult) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== RUN SUMMARY (%s) ===\n", r.Mode)
	fmt.Fprintf(&sb, "Run ID: %s\n", r.RunID)
	fmt.Fprintf(&sb, "Date: %s\n", r.Date.Format(time.DateOnly))
	fmt.Fprintf(&sb, "Status: %s\n", strings.ToUpper(string(r.Status)))
	if r.Reason != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", r.Reason)
	}
	fmt.Fprintf(&sb, "Trends: %d\n", r.TrendCount)
	fmt.Fprintf(&sb, "Niches: %d (min score %.2f)\n", len(r.Concepts), r.MinScore)

	for _, sec := range summarySections {
		n := r.Count(sec.status)
		if n == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s (%d):\n", sec.title, n)
		for _, c := range r.Concepts {
			if c.Status != sec.status {
				continue
			}
			fmt.Fprintf(&sb, "  - %s (score: %.2f)", c.NicheName, c.Score)
			if c.RecordID != "" {
				fmt.Fprintf(&sb, " [record %s]", c.RecordID)
			}
			if c.Reason != "" {
				fmt.Fprintf(&sb, ": %s", c.Reason)
			}
			sb.WriteString("\n")
		}
	}
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return sb.String()
	}
	fmt.Fprintf(&sb, "\nDuration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	return sb.String()
}
