// Package agents 细分市场分析、文案策划、设计提示词和合规检查。
package agents

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/llm"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/scoring"
)

// DefaultAudience LLM 摘要缺失时的受众
const DefaultAudience = "General consumers"

// Analyzer 对趋势词评分并过门槛。评分完全由规则决定，LLM 摘要只补充说明，由调用方按需请求。
type Analyzer struct {
	gen llm.Generator // 可以为 nil
	now func() time.Time
}

// NewAnalyzer gen 为 nil 时 Summarize 不做任何事
func NewAnalyzer(gen llm.Generator) *Analyzer {
	return &Analyzer{gen: gen, now: time.Now}
}

// Analyze 评分、过门槛、排序。低于门槛的条目保留为 recorded。
func (a *Analyzer) Analyze(ctx context.Context, report model.TrendReport, minScore float64) (model.NicheReport, error) {
	entries := make([]model.NicheEntry, 0, len(report.Entries))
	qualified := 0
	// Caser 有状态，不能跨 goroutine 共享
	title := cases.Title(language.English)

	for _, trend := range report.Entries {
		score, err := scoring.Score(scoring.InputsFromTrend(trend))
		if err != nil {
			return model.NicheReport{}, fmt.Errorf("score %q: %w", trend.Query, err)
		}

		entry := model.NicheEntry{
			NicheName:     title.String(trend.Query),
			TrendingQuery: trend.Query,
			Score:         score,
			Audience:      DefaultAudience,
			Status:        model.NicheRecorded,
		}
		if scoring.Qualifies(score.OpportunityScore, minScore) {
			entry.Status = model.NicheQualified
			qualified++
		} else {
			logger.Log.Debugf("跳过 '%s' (score %.2f < %.2f)", trend.Query, score.OpportunityScore, minScore)
		}
		entries = append(entries, entry)
	}

	scoring.Rank(entries)
	logger.Log.Infof("细分市场分析: %d/%d 通过门槛 (min_score=%.1f)", qualified, len(entries), minScore)

	return model.NicheReport{Entries: entries, MinScore: minScore, CreatedAt: a.now()}, nil
}

type nicheSummary struct {
	Audience string `json:"audience"`
	Summary  string `json:"summary"`
}

// Summarize 为细分市场补充受众和分析摘要。出错时 entry 保持不变，错误类别来自 llm 包。
func (a *Analyzer) Summarize(ctx context.Context, entry *model.NicheEntry) error {
	if a.gen == nil {
		return nil
	}
	var out nicheSummary
	err := a.gen.GenerateJSON(ctx, llm.Request{
		Op:     "analyzer.summary",
		System: "You are a niche analysis assistant.",
		Prompt: fmt.Sprintf("Niche: %s\nQuery: %s\nOpportunity Score: %.2f\n\n"+
			"Provide a 2-sentence analysis summary and a one-line target audience description for this Amazon Merch niche.",
			entry.NicheName, entry.TrendingQuery, entry.Score.OpportunityScore),
		Schema: `{"audience": "...", "summary": "..."}`,
	}, &out)
	if err != nil {
		return err
	}
	if out.Audience != "" {
		entry.Audience = out.Audience
	}
	entry.AnalysisSummary = out.Summary
	return nil
}
