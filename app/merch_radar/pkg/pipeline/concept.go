package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/agents"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/airtable"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/artifact"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/stage"
)

type conceptInput struct {
	trends  model.TrendReport
	niches  model.NicheReport
	entry   model.NicheEntry
	trend   string
	concept int
}

// processConcept Strategizing -> Designing -> Inspecting -> Persisted -> (Publishing | Skipped)。
// 每个成功阶段的产物先落盘，再进入下一步；任何失败只结束本分支。
func (o *Orchestrator) processConcept(ctx context.Context, r *run, in conceptInput) ConceptResult {
	key := artifact.ConceptKey(r.result.Date, in.trend, in.concept)
	res := ConceptResult{
		NicheName:   in.entry.NicheName,
		Trend:       in.trend,
		Score:       in.entry.Score.OpportunityScore,
		ArtifactDir: key.Dir(),
	}
	log := r.log.WithField("niche", in.entry.NicheName)
	withLog := func(name string) stage.Option {
		return stage.WithLog(log.WithField("stage", name))
	}

	if err := o.persistReports(ctx, key, in.trends, in.niches); err != nil {
		return persistFailed(res, err)
	}

	ideaOut := stage.Run(ctx, "strategize", r.pol.llm, func(ctx context.Context) (model.IdeaPackage, error) {
		return o.d.Strategist.CreateIdea(ctx, in.entry)
	}, withLog("strategize"))
	if !ideaOut.OK() {
		return stopped(res, ideaOut.Stage, ideaOut.Kind, ideaOut.Reason)
	}
	idea := ideaOut.Value
	if err := artifact.PersistJSON(ctx, o.d.Store, key, artifact.IdeaPackageFile, idea); err != nil {
		return persistFailed(res, err)
	}

	promptOut := stage.Run(ctx, "design", r.pol.llm, func(ctx context.Context) (model.DesignPrompt, error) {
		return o.d.Designer.CreatePrompt(ctx, idea)
	}, withLog("design"))
	if !promptOut.OK() {
		return stopped(res, promptOut.Stage, promptOut.Kind, promptOut.Reason)
	}
	prompt := promptOut.Value
	if err := artifact.PersistJSON(ctx, o.d.Store, key, artifact.DesignPromptFile, prompt); err != nil {
		return persistFailed(res, err)
	}

	// LLM 意见不可用时降级为规则扫描；内容策略、鉴权失败和取消仍然终止分支
	verdictOut := stage.Run(ctx, "inspect", r.pol.llm, func(ctx context.Context) (agents.Verdict, error) {
		return o.d.Inspector.Review(ctx, idea, prompt)
	}, stage.DegradeOn(failure.ParseFailure, failure.RateLimited, failure.Timeout, failure.Unknown), withLog("inspect"))
	var verdict *agents.Verdict
	switch verdictOut.Status {
	case stage.Success:
		verdict = &verdictOut.Value
	case stage.SoftFailure:
		log.Warnf("LLM 合规意见不可用，仅按规则判断: %s", verdictOut.Reason)
	default:
		return stopped(res, verdictOut.Stage, verdictOut.Kind, verdictOut.Reason)
	}

	report := o.d.Inspector.Decide(idea, prompt, verdict)
	res.Compliance = report.Status
	res.RiskTerms = report.RiskTermsDetected
	if err := artifact.PersistJSON(ctx, o.d.Store, key, artifact.ComplianceReportFile, report); err != nil {
		return persistFailed(res, err)
	}
	o.persistRenderings(ctx, key, idea, report, log)

	res.Status = ConceptPersisted
	if !report.Approved() {
		res.Reason = fmt.Sprintf("compliance %s, not published", report.Status)
		log.Infof("跳过发布 (status=%s)", report.Status)
		return res
	}
	if reason := o.publishDisabled(r.cfg); reason != "" {
		res.Reason = reason
		return res
	}

	row := airtable.NewIdeaRow(r.result.Date, in.trend, idea, prompt, report)
	published := stage.Run(ctx, "publish", r.pol.upload, func(ctx context.Context) (string, error) {
		return o.d.Publisher.CreateIdea(ctx, row)
	}, withLog("publish"))
	o.applyPublish(r, &res, published, "ideas", row)
	return res
}

// persistRenderings 文本渲染只是格式化，失败不影响流程
func (o *Orchestrator) persistRenderings(ctx context.Context, key artifact.RunKey, idea model.IdeaPackage, report model.ComplianceReport, log *logrus.Entry) {
	texts := []struct {
		name string
		body string
	}{
		{artifact.ListingFile, artifact.ListingText(idea)},
		{artifact.KeywordsFile, artifact.KeywordsText(idea)},
		{artifact.FinalSummaryFile, artifact.FinalSummaryText(idea, report)},
	}
	for _, t := range texts {
		if err := o.d.Store.Persist(ctx, key, t.name, []byte(t.body)); err != nil {
			log.Warnf("写入 %s 失败: %v", t.name, err)
		}
	}
}

// applyPublish 上传成功记录 ID；鉴权失败结束分支；其余失败降级，校验失败进入人工修复队列
func (o *Orchestrator) applyPublish(r *run, res *ConceptResult, out stage.Outcome[string], table string, row any) {
	switch {
	case out.OK():
		res.Status = ConceptPublished
		res.RecordID = out.Value
		res.Reason = ""
		return
	case out.Kind == failure.AuthFailure || out.Status == stage.HardFailure:
		res.Status = ConceptFailed
		res.Stage = out.Stage
		res.Reason = out.Reason
		return
	}

	res.Stage = out.Stage
	res.Reason = "publish degraded: " + out.Reason
	if out.Kind != failure.ValidationFailure || o.d.Remediation == nil {
		return
	}
	item := artifact.RemediationItem{
		RunID:     r.result.RunID,
		NicheName: res.NicheName,
		Table:     table,
		Reason:    out.Reason,
		Fields:    toFields(row),
		RunDate:   r.result.Date,
		QueuedAt:  o.d.Now(),
	}
	if err := o.d.Remediation.Enqueue(item); err != nil {
		r.log.Errorf("人工修复队列写入失败 [%s]: %v", res.NicheName, err)
		return
	}
	res.Reason += " (queued for remediation)"
}

func stopped(res ConceptResult, stageName string, kind failure.Kind, reason string) ConceptResult {
	res.Stage = stageName
	res.Reason = reason
	res.Status = ConceptFailed
	if kind == failure.ContentPolicy {
		res.Status = ConceptSkipped
	}
	return res
}

func persistFailed(res ConceptResult, err error) ConceptResult {
	res.Status = ConceptFailed
	res.Stage = "persist"
	res.Reason = err.Error()
	return res
}

func toFields(row any) map[string]any {
	data, err := json.Marshal(row)
	if err != nil {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	return fields
}
