package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kratos/kratos/v2/errors"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/config"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/pipeline"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/scheduler"
)

const helpText = `Merch Radar commands:
/daily - run trend discovery and niche scoring
/weekly - run the full pipeline for qualifying niches
/create <keyword> - create one concept from a keyword
/help - show this message`

// Runner 命令触发的流水线入口
type Runner interface {
	scheduler.Runner
	RunSingle(ctx context.Context, keyword string, cfg *config.Config) pipeline.ConceptResult
}

// Dispatcher 解析 "/cmd args" 文本命令并同步执行
type Dispatcher struct {
	runner Runner
	cfg    *config.Config
	jobs   *scheduler.Jobs
}

// NewDispatcher jobs 与定时器共用，保证同类任务不并发
func NewDispatcher(runner Runner, cfg *config.Config, jobs *scheduler.Jobs) *Dispatcher {
	if jobs == nil {
		jobs = scheduler.NewJobs()
	}
	return &Dispatcher{runner: runner, cfg: cfg, jobs: jobs}
}

// Dispatch 返回回复文本；参数错误和任务冲突返回 kratos 错误
func (d *Dispatcher) Dispatch(ctx context.Context, text string) (string, error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(text), " ")
	arg = strings.TrimSpace(arg)
	// Telegram 风格的 /cmd@bot
	cmd, _, _ = strings.Cut(strings.ToLower(cmd), "@")

	switch cmd {
	case "/start", "/help":
		return helpText, nil
	case "/daily":
		return d.exclusive(scheduler.JobDaily, func() string {
			return d.runner.RunDaily(ctx, d.cfg).Summary()
		})
	case "/weekly":
		return d.exclusive(scheduler.JobWeekly, func() string {
			return d.runner.RunWeekly(ctx, d.cfg).Summary()
		})
	case "/create":
		if arg == "" {
			return "", errors.BadRequest("MISSING_KEYWORD", "usage: /create <keyword>")
		}
		return d.exclusive("create:"+strings.ToLower(arg), func() string {
			return conceptReply(d.runner.RunSingle(ctx, arg, d.cfg))
		})
	case "":
		return "", errors.BadRequest("EMPTY_COMMAND", "command text is required")
	default:
		logger.Log.Infof("未知命令: %s", cmd)
		return fmt.Sprintf("Unknown command %s. Send /help for the list of commands.", cmd), nil
	}
}

func (d *Dispatcher) exclusive(job string, fn func() string) (string, error) {
	release, ok := d.jobs.TryStart(job)
	if !ok {
		return "", errors.Conflict("JOB_RUNNING", fmt.Sprintf("%s is already running", job))
	}
	defer release()
	return fn(), nil
}

func conceptReply(c pipeline.ConceptResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Concept: %s\n", c.NicheName)
	fmt.Fprintf(&sb, "Status: %s\n", strings.ToUpper(string(c.Status)))
	if c.Score > 0 {
		fmt.Fprintf(&sb, "Score: %.2f\n", c.Score)
	}
	if c.Compliance != "" {
		fmt.Fprintf(&sb, "Compliance: %s\n", c.Compliance)
	}
	if len(c.RiskTerms) > 0 {
		fmt.Fprintf(&sb, "Risk terms: %s\n", strings.Join(c.RiskTerms, ", "))
	}
	if c.RecordID != "" {
		fmt.Fprintf(&sb, "Airtable record: %s\n", c.RecordID)
	}
	if c.Stage != "" {
		fmt.Fprintf(&sb, "Stage: %s\n", c.Stage)
	}
	if c.Reason != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", c.Reason)
	}
	if c.ArtifactDir != "" {
		fmt.Fprintf(&sb, "Artifacts: %s\n", c.ArtifactDir)
	}
	return sb.String()
}
