package artifact

import (
	"strings"
	"testing"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
)

func TestListingText(t *testing.T) {
	idea := model.IdeaPackage{
		Title:        "Retro Sunset Tee",
		BulletPoints: []string{"Soft", "Bold"},
		Description:  "A warm retro sunset.",
	}
	want := "Retro Sunset Tee\n\nBULLET POINTS:\n  - Soft\n  - Bold\n\nDESCRIPTION:\nA warm retro sunset."
	if got := ListingText(idea); got != want {
		t.Errorf("ListingText() = %q, want %q", got, want)
	}
}

func TestFinalSummaryText_RiskTerms(t *testing.T) {
	idea := model.IdeaPackage{NicheName: "Cat Dad", OpportunityScore: 7.5}
	report := model.ComplianceReport{Status: model.ComplianceNeedsReview, Notes: "check", RiskTermsDetected: []string{"official"}}

	got := FinalSummaryText(idea, report)
	for _, want := range []string{"PIPELINE SUMMARY - Cat Dad", "Status: NEEDS_REVIEW", "Opportunity Score: 7.50", "Risk Terms: official"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestDailySummaryText(t *testing.T) {
	trends := model.TrendReport{Geo: "US", Timeframe: "today 1-m", Entries: []model.TrendEntry{{Query: "cat tee", Source: "google_trends"}}}
	niches := model.NicheReport{MinScore: 6.5, Entries: []model.NicheEntry{
		{NicheName: "Cat Tee", Status: model.NicheQualified, Score: model.NicheScore{OpportunityScore: 7}},
	}}
	got := DailySummaryText(day, trends, niches)
	for _, want := range []string{"DAILY TREND REPORT - 2026-10-19", "  - cat tee [google_trends]", "Niches Qualified: 1", "  - Cat Tee (score: 7.00, qualified)"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}
