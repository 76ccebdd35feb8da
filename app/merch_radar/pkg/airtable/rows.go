package airtable

import (
	"strings"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
)

// IdeaRow Ideas 表的一行，JSON 字段名即 Airtable 列名
type IdeaRow struct {
	Date              string  `json:"Date"`
	TrendName         string  `json:"Trend Name"`
	NicheName         string  `json:"Niche Name"`
	Audience          string  `json:"Audience"`
	OpportunityScore  float64 `json:"Opportunity Score"`
	Title             string  `json:"Final Approved Title"`
	BulletPoints      string  `json:"Final Approved Bullet Points"`
	Description       string  `json:"Final Approved Description"`
	KeywordsTags      string  `json:"Final Approved Keywords/Tags"`
	DesignPrompt      string  `json:"Design Prompt"`
	ComplianceStatus  string  `json:"Compliance Status"`
	ComplianceNotes   string  `json:"Compliance Notes"`
	RiskTermsDetected string  `json:"Risk Terms Detected"`
	DesignStyle       string  `json:"Design Style"`
	Status            string  `json:"Status"`
}

// NicheRow Weekly Niche 表的一行
type NicheRow struct {
	NicheName           string  `json:"Niche Name"`
	WeekStartDate       string  `json:"Week Start Date"`
	WeeklyGrowthPercent float64 `json:"Weekly Growth %"`
	RisingStatus        string  `json:"Rising Status"`
	OpportunityScore    float64 `json:"Opportunity Score"`
	Notes               string  `json:"Notes"`
}

// NewIdeaRow 组装 Ideas 行，新记录状态为 draft
func NewIdeaRow(runDate time.Time, trend string, idea model.IdeaPackage, prompt model.DesignPrompt, report model.ComplianceReport) IdeaRow {
	return IdeaRow{
		Date:              runDate.Format(time.DateOnly),
		TrendName:         trend,
		NicheName:         idea.NicheName,
		Audience:          idea.Audience,
		OpportunityScore:  idea.OpportunityScore,
		Title:             idea.Title,
		BulletPoints:      strings.Join(idea.BulletPoints, "\n"),
		Description:       idea.Description,
		KeywordsTags:      strings.Join(idea.Keywords, ", "),
		DesignPrompt:      prompt.PromptText,
		ComplianceStatus:  string(report.Status),
		ComplianceNotes:   report.Notes,
		RiskTermsDetected: strings.Join(report.RiskTermsDetected, ", "),
		DesignStyle:       idea.DesignStyle,
		Status:            "draft",
	}
}

// NewNicheRow 由评分推导涨势：>=7 rising，>=5 stable，否则 declining
func NewNicheRow(entry model.NicheEntry, weekStart time.Time) NicheRow {
	opp := entry.Score.OpportunityScore
	rising, growth := "declining", -5.0
	switch {
	case opp >= 7:
		rising, growth = "rising", 25
	case opp >= 5:
		rising, growth = "stable", 10
	}
	return NicheRow{
		NicheName:           entry.NicheName,
		WeekStartDate:       weekStart.Format(time.DateOnly),
		WeeklyGrowthPercent: growth,
		RisingStatus:        rising,
		OpportunityScore:    opp,
		Notes:               entry.AnalysisSummary,
	}
}

// WeekStart 所在周的周一
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
