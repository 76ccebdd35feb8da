package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/llm"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
)

const inspectorSystem = `You are an Amazon Merch compliance inspector. Review the listing content
and design prompt for policy violations.

Amazon Merch policies prohibit:
- Hate speech, violence, adult content
- Copyrighted / trademarked material (characters, logos, brand names)
- Personal information
- Misleading claims (FDA, official, licensed -- unless true)`

// Verdict LLM 合规意见
type Verdict struct {
	Compliant bool     `json:"compliant"`
	Issues    []string `json:"issues"`
	Notes     string   `json:"notes"`
}

// Inspector 合规检查：规则扫描 + LLM 复核
type Inspector struct {
	gen llm.Generator
	now func() time.Time
}

// NewInspector 创建 Inspector
func NewInspector(gen llm.Generator) *Inspector {
	return &Inspector{gen: gen, now: time.Now}
}

// Review 请求 LLM 合规意见
func (i *Inspector) Review(ctx context.Context, idea model.IdeaPackage, prompt model.DesignPrompt) (Verdict, error) {
	mood := prompt.ColorMoodNotes
	if mood == "" {
		mood = "N/A"
	}
	v := Verdict{Compliant: true}
	err := i.gen.GenerateJSON(ctx, llm.Request{
		Op:     "inspector",
		System: inspectorSystem,
		Prompt: fmt.Sprintf("Title: %s\nBullet Points: %s\nDescription: %s\nKeywords: %s\nDesign Prompt: %s\nColor/Mood: %s\n",
			idea.Title, strings.Join(idea.BulletPoints, "\n"), idea.Description,
			strings.Join(idea.Keywords, ", "), prompt.PromptText, mood),
		Schema: `{"compliant": true, "issues": ["..."], "notes": "..."}`,
	}, &v)
	if err != nil {
		return Verdict{}, err
	}
	return v, nil
}

// Decide 汇总规则扫描和 LLM 意见。verdict 为 nil 表示 LLM 意见不可用，按合规处理并记录说明。
//
//	禁用词 -> rejected；LLM 判定不合规 -> rejected；风险词 -> needs_review；否则 approved
func (i *Inspector) Decide(idea model.IdeaPackage, prompt model.DesignPrompt, verdict *Verdict) model.ComplianceReport {
	text := strings.Join([]string{
		idea.Title,
		strings.Join(idea.BulletPoints, " "),
		idea.Description,
		strings.Join(idea.Keywords, " "),
		prompt.PromptText,
		prompt.ColorMoodNotes,
	}, " ")
	banned := ScanBanned(text)
	risk := ScanRisk(text)

	if verdict == nil {
		verdict = &Verdict{Compliant: true, Notes: "LLM check unavailable"}
	}

	status := model.ComplianceApproved
	switch {
	case len(banned) > 0:
		status = model.ComplianceRejected
	case !verdict.Compliant:
		status = model.ComplianceRejected
	case len(risk) > 0:
		status = model.ComplianceNeedsReview
	}

	var notes []string
	if len(banned) > 0 {
		notes = append(notes, "BANNED terms found: "+strings.Join(banned, ", "))
	}
	if len(risk) > 0 {
		notes = append(notes, "Risk terms found: "+strings.Join(risk, ", "))
	}
	if verdict.Notes != "" {
		notes = append(notes, "LLM: "+verdict.Notes)
	}
	if len(verdict.Issues) > 0 {
		notes = append(notes, "LLM issues: "+strings.Join(verdict.Issues, "; "))
	}
	if len(notes) == 0 {
		notes = append(notes, "All checks passed. No issues detected.")
	}

	detected := append(append([]string{}, banned...), risk...)
	report := model.ComplianceReport{
		IdeaNicheName:     idea.NicheName,
		Status:            status,
		Notes:             strings.Join(notes, " | "),
		RiskTermsDetected: detected,
		CreatedAt:         i.now(),
	}
	logger.Log.Infof("合规检查 '%s': %s", idea.NicheName, status)
	return report
}
