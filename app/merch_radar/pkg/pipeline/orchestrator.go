// Package pipeline 编排趋势发现、评分、策划、设计、合规、落盘和发布。
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/agents"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/airtable"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/artifact"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/config"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/retry"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/stage"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/storage"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/trends"
)

// NicheAnalyzer 评分与过门槛；Summarize 只对将要推进的细分市场调用
type NicheAnalyzer interface {
	Analyze(ctx context.Context, report model.TrendReport, minScore float64) (model.NicheReport, error)
	Summarize(ctx context.Context, entry *model.NicheEntry) error
}

// IdeaStrategist 商品文案
type IdeaStrategist interface {
	CreateIdea(ctx context.Context, niche model.NicheEntry) (model.IdeaPackage, error)
}

// PromptDesigner 设计提示词
type PromptDesigner interface {
	CreatePrompt(ctx context.Context, idea model.IdeaPackage) (model.DesignPrompt, error)
}

// ComplianceInspector 合规检查，Review 调用 LLM，Decide 是纯规则
type ComplianceInspector interface {
	Review(ctx context.Context, idea model.IdeaPackage, prompt model.DesignPrompt) (agents.Verdict, error)
	Decide(idea model.IdeaPackage, prompt model.DesignPrompt, verdict *agents.Verdict) model.ComplianceReport
}

// NicheLister 可选能力：查询某周已写入的细分市场，日报重跑时跳过
type NicheLister interface {
	ListNiches(ctx context.Context, weekStart time.Time) ([]airtable.NicheRow, error)
}

// Ledger 运行台账
type Ledger interface {
	SaveRun(ctx context.Context, r storage.RunRecord) error
	SaveConcept(ctx context.Context, c storage.ConceptRecord) error
}

// Deps 编排器依赖。Publisher、Remediation、Ledger 可以为空。
type Deps struct {
	Trends      trends.Fetcher
	Analyzer    NicheAnalyzer
	Strategist  IdeaStrategist
	Designer    PromptDesigner
	Inspector   ComplianceInspector
	Store       artifact.Store
	Publisher   airtable.Publisher
	Remediation *artifact.RemediationQueue
	Ledger      Ledger

	// Sleep 覆盖所有重试策略的等待，测试用
	Sleep retry.SleepFunc
	Now   func() time.Time
	NewID func() string
}

// Orchestrator 流水线编排器。自身不持有运行状态，每次调用相互独立。
type Orchestrator struct {
	d Deps
}

// New 创建编排器
func New(d Deps) *Orchestrator {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return &Orchestrator{d: d}
}

type policies struct {
	trends retry.Policy
	llm    retry.Policy
	upload retry.Policy
}

func (o *Orchestrator) policies(cfg *config.Config) policies {
	p := policies{
		trends: retry.TrendFetch().Apply(cfg.Retry.Trends),
		llm:    retry.LLM().Apply(cfg.Retry.LLM),
		upload: retry.Upload().Apply(cfg.Retry.Upload),
	}
	if o.d.Sleep != nil {
		p.trends.Sleep, p.llm.Sleep, p.upload.Sleep = o.d.Sleep, o.d.Sleep, o.d.Sleep
	}
	return p
}

// run 单次运行的上下文，只在本次调用内使用
type run struct {
	cfg    *config.Config
	result RunResult
	pol    policies
	log    *logrus.Entry
}

func (o *Orchestrator) newRun(mode Mode, cfg *config.Config) *run {
	now := o.d.Now()
	id := o.d.NewID()
	return &run{
		cfg: cfg,
		result: RunResult{
			RunID:     id,
			Mode:      mode,
			Date:      now,
			MinScore:  cfg.Pipeline.MinNicheScore,
			StartedAt: now,
		},
		pol: o.policies(cfg),
		log: logger.Log.WithFields(logrus.Fields{"run_id": id, "mode": mode}),
	}
}

// discover Fetching -> Scoring，硬失败时返回 false。
// advance 为继续推进的细分市场数，只有它们会请求 LLM 摘要；小于 0 表示全部。
func (o *Orchestrator) discover(ctx context.Context, r *run, advance int) (model.TrendReport, model.NicheReport, bool) {
	cfg := r.cfg
	fetched := stage.Run(ctx, "trends", r.pol.trends, func(ctx context.Context) (*model.TrendReport, error) {
		return o.d.Trends.Fetch(ctx, &trends.Request{
			SeedKeywords: cfg.Trends.SeedKeywords,
			Geo:          cfg.Trends.Geo,
			Timeframe:    cfg.Trends.Timeframe,
			MaxEntries:   cfg.Trends.MaxEntries,
		})
	}, stage.WithLog(r.log.WithField("stage", "trends")))

	trendReport := model.TrendReport{Geo: cfg.Trends.Geo, Timeframe: cfg.Trends.Timeframe, CreatedAt: o.d.Now()}
	switch fetched.Status {
	case stage.HardFailure:
		r.fail(fetched.Reason)
		return trendReport, model.NicheReport{}, false
	default:
		// 空结果不是错误，按零条目报告继续
		if fetched.Value != nil {
			trendReport = *fetched.Value
		}
	}
	r.result.TrendCount = len(trendReport.Entries)

	niches, err := o.d.Analyzer.Analyze(ctx, trendReport, cfg.Pipeline.MinNicheScore)
	if err != nil {
		r.fail("scoring: " + err.Error())
		return trendReport, model.NicheReport{}, false
	}
	o.summarize(ctx, r, &niches, advance)
	return trendReport, niches, true
}

// summarize 按排名顺序为前 limit 个通过门槛的细分市场请求摘要。失败沿用默认受众，不影响评分。
func (o *Orchestrator) summarize(ctx context.Context, r *run, niches *model.NicheReport, limit int) {
	done := 0
	for i, entry := range niches.Entries {
		if entry.Status != model.NicheQualified {
			continue
		}
		if limit >= 0 && done >= limit {
			return
		}
		done++

		out := stage.Run(ctx, "summary", r.pol.llm, func(ctx context.Context) (model.NicheEntry, error) {
			e := entry
			err := o.d.Analyzer.Summarize(ctx, &e)
			return e, err
		}, stage.WithLog(r.log.WithFields(logrus.Fields{"stage": "summary", "niche": entry.NicheName})))
		if !out.OK() {
			r.log.Warnf("细分市场摘要失败 '%s'，使用默认值: %s", entry.NicheName, out.Reason)
			continue
		}
		niches.Entries[i] = out.Value
	}
}

func (r *run) fail(reason string) {
	r.result.Status = RunFailed
	r.result.Reason = reason
	r.log.Errorf("运行失败: %s", reason)
}

// RunDaily Fetching -> Scoring，落盘细分市场报告后结束；开启发布时写入每周细分市场表
func (o *Orchestrator) RunDaily(ctx context.Context, cfg *config.Config) RunResult {
	r := o.newRun(ModeDaily, cfg)
	r.log.Info("开始日报流程")

	trendReport, niches, ok := o.discover(ctx, r, -1)
	if ok {
		key := artifact.DailyKey(r.result.Date)
		if err := o.persistReports(ctx, key, trendReport, niches); err != nil {
			r.fail(err.Error())
		} else {
			summary := artifact.DailySummaryText(r.result.Date, trendReport, niches)
			if err := o.d.Store.Persist(ctx, key, artifact.DailySummaryFile, []byte(summary)); err != nil {
				r.log.Warnf("日报摘要写入失败: %v", err)
			}
			r.result.Concepts = o.publishNiches(ctx, r, niches)
		}
	}

	return o.complete(ctx, r)
}

func (o *Orchestrator) publishNiches(ctx context.Context, r *run, niches model.NicheReport) []ConceptResult {
	weekStart := airtable.WeekStart(r.result.Date)
	dir := artifact.DailyKey(r.result.Date).Dir()
	existing := o.existingNiches(ctx, r, weekStart)

	out := make([]ConceptResult, 0, len(niches.Entries))
	for _, entry := range niches.Entries {
		res := ConceptResult{
			NicheName:   entry.NicheName,
			Trend:       entry.TrendingQuery,
			Score:       entry.Score.OpportunityScore,
			Status:      ConceptRecorded,
			ArtifactDir: dir,
		}
		if entry.Status != model.NicheQualified {
			out = append(out, res)
			continue
		}

		res.Status = ConceptQualified
		if reason := o.publishDisabled(r.cfg); reason != "" {
			res.Reason = reason
			out = append(out, res)
			continue
		}

		if existing[entry.NicheName] {
			res.Reason = "already in weekly niche table"
			out = append(out, res)
			continue
		}

		row := airtable.NewNicheRow(entry, weekStart)
		published := stage.Run(ctx, "publish_niche", r.pol.upload, func(ctx context.Context) (string, error) {
			return o.d.Publisher.CreateNiche(ctx, row)
		}, stage.WithLog(r.log.WithFields(logrus.Fields{"stage": "publish_niche", "niche": entry.NicheName})))
		o.applyPublish(r, &res, published, "weekly_niche", row)
		out = append(out, res)
	}
	return out
}

// existingNiches 查询失败只记日志，按无记录处理
func (o *Orchestrator) existingNiches(ctx context.Context, r *run, weekStart time.Time) map[string]bool {
	lister, ok := o.d.Publisher.(NicheLister)
	if !ok || o.publishDisabled(r.cfg) != "" {
		return nil
	}
	rows, err := lister.ListNiches(ctx, weekStart)
	if err != nil {
		r.log.Warnf("查询本周细分市场失败: %v", err)
		return nil
	}
	names := make(map[string]bool, len(rows))
	for _, row := range rows {
		names[row.NicheName] = true
	}
	return names
}

// RunWeekly 对每个通过门槛的细分市场跑完整链路，受 max_designs_per_run 和 fan_out 限制
func (o *Orchestrator) RunWeekly(ctx context.Context, cfg *config.Config) RunResult {
	r := o.newRun(ModeWeekly, cfg)
	r.log.Info("开始周报流程")

	trendReport, niches, ok := o.discover(ctx, r, cfg.Pipeline.MaxDesignsPerRun)
	if !ok {
		return o.complete(ctx, r)
	}

	runKey := artifact.RunKey{Date: r.result.Date}
	if err := o.persistReports(ctx, runKey, trendReport, niches); err != nil {
		r.fail(err.Error())
		return o.complete(ctx, r)
	}

	results := make([]ConceptResult, len(niches.Entries))
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(max(cfg.Pipeline.FanOut, 1))

	advanced := 0
	for i, entry := range niches.Entries {
		res := ConceptResult{
			NicheName: entry.NicheName,
			Trend:     entry.TrendingQuery,
			Score:     entry.Score.OpportunityScore,
		}
		switch {
		case entry.Status != model.NicheQualified:
			res.Status = ConceptRecorded
			results[i] = res
			continue
		case advanced >= cfg.Pipeline.MaxDesignsPerRun:
			res.Status = ConceptSkipped
			res.Reason = "max_designs_per_run reached"
			results[i] = res
			continue
		}
		advanced++

		concept := advanced
		g.Go(func() error {
			res := o.processConcept(ctx, r, conceptInput{
				trends:  trendReport,
				niches:  niches,
				entry:   entry,
				trend:   entry.TrendingQuery,
				concept: concept,
			})
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	r.result.Concepts = results
	return o.complete(ctx, r)
}

// RunSingle 按关键词生成一个概念，不受评分门槛限制
func (o *Orchestrator) RunSingle(ctx context.Context, keyword string, cfg *config.Config) ConceptResult {
	r := o.newRun(ModeSingle, cfg)
	r.log.Infof("开始单次创建: %s", keyword)

	if keyword == "" {
		res := ConceptResult{Status: ConceptFailed, Stage: "input", Reason: "keyword is required"}
		r.result.Concepts = []ConceptResult{res}
		o.complete(ctx, r)
		return res
	}

	trendReport := model.TrendReport{
		Entries:   trends.FromKeywords([]string{keyword}).Entries,
		Geo:       cfg.Trends.Geo,
		Timeframe: cfg.Trends.Timeframe,
		CreatedAt: o.d.Now(),
	}
	r.result.TrendCount = 1
	r.result.MinScore = 0

	niches, err := o.d.Analyzer.Analyze(ctx, trendReport, 0)
	if err != nil || len(niches.Entries) == 0 {
		reason := "no niche generated"
		if err != nil {
			reason = err.Error()
		}
		res := ConceptResult{NicheName: keyword, Trend: keyword, Status: ConceptFailed, Stage: "scoring", Reason: reason}
		r.result.Concepts = []ConceptResult{res}
		o.complete(ctx, r)
		return res
	}
	o.summarize(ctx, r, &niches, 1)

	res := o.processConcept(ctx, r, conceptInput{
		trends:  trendReport,
		niches:  niches,
		entry:   niches.Entries[0],
		trend:   keyword,
		concept: 1,
	})
	r.result.Concepts = []ConceptResult{res}
	o.complete(ctx, r)
	return res
}

// complete 写运行摘要和台账。台账失败只记日志。
func (o *Orchestrator) complete(ctx context.Context, r *run) RunResult {
	r.result.finish(o.d.Now())
	summary := r.result.Summary()
	// 运行被取消时摘要和台账仍然记录结果
	lctx := context.WithoutCancel(ctx)

	if r.result.Mode != ModeSingle {
		name := "run_summary_" + string(r.result.Mode) + ".txt"
		if err := o.d.Store.Persist(lctx, artifact.RunKey{Date: r.result.Date}, name, []byte(summary)); err != nil {
			r.log.Warnf("运行摘要写入失败: %v", err)
		}
	}

	if o.d.Ledger != nil {
		if err := o.d.Ledger.SaveRun(lctx, storage.RunRecord{
			ID:         r.result.RunID,
			Mode:       string(r.result.Mode),
			Status:     string(r.result.Status),
			StartedAt:  r.result.StartedAt,
			FinishedAt: r.result.FinishedAt,
			Summary:    summary,
		}); err != nil {
			r.log.Warnf("台账写入失败: %v", err)
		} else {
			for _, c := range r.result.Concepts {
				if err := o.d.Ledger.SaveConcept(lctx, conceptRecord(r.result.RunID, c)); err != nil {
					r.log.Warnf("台账写入失败 [%s]: %v", c.NicheName, err)
				}
			}
		}
	}

	r.log.WithFields(logrus.Fields{
		"status":    r.result.Status,
		"published": r.result.Count(ConceptPublished),
		"failed":    r.result.Count(ConceptFailed),
	}).Info("运行结束")
	return r.result
}

func conceptRecord(runID string, c ConceptResult) storage.ConceptRecord {
	return storage.ConceptRecord{
		RunID:       runID,
		NicheName:   c.NicheName,
		Trend:       c.Trend,
		Score:       c.Score,
		Status:      string(c.Status),
		Stage:       c.Stage,
		Reason:      c.Reason,
		Compliance:  string(c.Compliance),
		RiskTerms:   c.RiskTerms,
		RecordID:    c.RecordID,
		ArtifactDir: c.ArtifactDir,
	}
}

func (o *Orchestrator) persistReports(ctx context.Context, key artifact.RunKey, trendReport model.TrendReport, niches model.NicheReport) error {
	if err := artifact.PersistJSON(ctx, o.d.Store, key, artifact.TrendReportFile, trendReport); err != nil {
		return err
	}
	return artifact.PersistJSON(ctx, o.d.Store, key, artifact.NicheReportFile, niches)
}

func (o *Orchestrator) publishDisabled(cfg *config.Config) string {
	switch {
	case !cfg.Pipeline.AutoPublish:
		return "auto_publish disabled"
	case o.d.Publisher == nil:
		return "publisher not configured"
	}
	return ""
}
