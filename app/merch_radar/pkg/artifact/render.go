package artifact

import (
	"fmt"
	"strings"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
)

// ListingText 商品文案
func ListingText(idea model.IdeaPackage) string {
	var sb strings.Builder
	sb.WriteString(idea.Title)
	sb.WriteString("\n\nBULLET POINTS:\n")
	for _, bp := range idea.BulletPoints {
		fmt.Fprintf(&sb, "  - %s\n", bp)
	}
	sb.WriteString("\nDESCRIPTION:\n")
	sb.WriteString(idea.Description)
	return sb.String()
}

// KeywordsText 每行一个关键词
func KeywordsText(idea model.IdeaPackage) string {
	return strings.Join(idea.Keywords, "\n")
}

// FinalSummaryText 单个概念的处理摘要
func FinalSummaryText(idea model.IdeaPackage, report model.ComplianceReport) string {
	status := strings.ToUpper(string(report.Status))
	lines := []string{
		fmt.Sprintf("PIPELINE SUMMARY - %s", idea.NicheName),
		fmt.Sprintf("Status: %s", status),
		"",
		fmt.Sprintf("Title: %s", idea.Title),
		fmt.Sprintf("Audience: %s", idea.Audience),
		fmt.Sprintf("Opportunity Score: %.2f", idea.OpportunityScore),
		fmt.Sprintf("Design Style: %s", idea.DesignStyle),
		"",
		fmt.Sprintf("Compliance: %s", status),
		fmt.Sprintf("Notes: %s", report.Notes),
	}
	if len(report.RiskTermsDetected) > 0 {
		lines = append(lines, fmt.Sprintf("Risk Terms: %s", strings.Join(report.RiskTermsDetected, ", ")))
	}
	return strings.Join(lines, "\n")
}

// DailySummaryText 日报摘要
func DailySummaryText(date time.Time, trends model.TrendReport, niches model.NicheReport) string {
	lines := []string{
		fmt.Sprintf("DAILY TREND REPORT - %s", date.Format(time.DateOnly)),
		"",
		fmt.Sprintf("Geo: %s", trends.Geo),
		fmt.Sprintf("Timeframe: %s", trends.Timeframe),
		fmt.Sprintf("Trends Discovered: %d", len(trends.Entries)),
		fmt.Sprintf("Niches Analyzed: %d", len(niches.Entries)),
		fmt.Sprintf("Niches Qualified: %d (min score %.2f)", len(niches.Qualified()), niches.MinScore),
		"",
		"=== TREND ENTRIES ===",
	}
	for _, e := range trends.Entries {
		src := ""
		if e.Source != "" {
			src = fmt.Sprintf(" [%s]", e.Source)
		}
		lines = append(lines, fmt.Sprintf("  - %s%s", e.Query, src))
	}
	lines = append(lines, "", "=== NICHE ENTRIES ===")
	for _, e := range niches.Entries {
		lines = append(lines, fmt.Sprintf("  - %s (score: %.2f, %s)", e.NicheName, e.Score.OpportunityScore, e.Status))
	}
	return strings.Join(lines, "\n")
}
