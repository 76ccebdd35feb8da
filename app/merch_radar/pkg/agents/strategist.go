package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/llm"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
)

const strategistSystem = `You are an Amazon Merch-on-Demand listing strategist. Your job is to create
compelling, policy-compliant listing content for t-shirt designs.

Rules:
- Title: max 60 characters, include primary keyword.
- Bullet points: exactly 5 items, each highlighting a unique selling point.
- Description: 150-350 characters, persuasive and keyword-rich.
- Keywords/tags: 10-15 relevant SEO terms.
- Design style: a short phrase describing the visual direction.
- NEVER reference trademarked brands, characters, or copyrighted material.`

const strategistSchema = `{"title": "...", "bullet_points": ["..."], "description": "...", "keywords": ["..."], "design_style": "..."}`

// Strategist 生成商品文案
type Strategist struct {
	gen llm.Generator
	now func() time.Time
}

// NewStrategist 创建 Strategist
func NewStrategist(gen llm.Generator) *Strategist {
	return &Strategist{gen: gen, now: time.Now}
}

type strategyResponse struct {
	Title        string   `json:"title"`
	BulletPoints []string `json:"bullet_points"`
	Description  string   `json:"description"`
	Keywords     []string `json:"keywords"`
	DesignStyle  string   `json:"design_style"`
}

// CreateIdea 为细分市场生成 IdeaPackage
func (s *Strategist) CreateIdea(ctx context.Context, niche model.NicheEntry) (model.IdeaPackage, error) {
	const op = "strategist"

	var out strategyResponse
	err := s.gen.GenerateJSON(ctx, llm.Request{
		Op:     op,
		System: strategistSystem,
		Prompt: fmt.Sprintf("Niche: %s\nTrending query: %s\nTarget audience: %s\nOpportunity score: %.2f\nAnalysis: %s\n\n"+
			"Generate a complete Amazon Merch listing package.",
			niche.NicheName, niche.TrendingQuery, niche.Audience, niche.Score.OpportunityScore, niche.AnalysisSummary),
		Schema: strategistSchema,
	}, &out)
	if err != nil {
		return model.IdeaPackage{}, err
	}
	if strings.TrimSpace(out.Title) == "" || len(out.BulletPoints) == 0 || strings.TrimSpace(out.Description) == "" {
		return model.IdeaPackage{}, failure.Newf(failure.ParseFailure, op, "incomplete listing for %q", niche.NicheName)
	}

	idea := model.IdeaPackage{
		NicheName:        niche.NicheName,
		Audience:         niche.Audience,
		OpportunityScore: niche.Score.OpportunityScore,
		Title:            out.Title,
		BulletPoints:     out.BulletPoints,
		Description:      out.Description,
		Keywords:         out.Keywords,
		DesignStyle:      out.DesignStyle,
		CreatedAt:        s.now(),
	}
	logger.Log.Infof("文案生成完成: %s", idea.NicheName)
	return idea, nil
}
