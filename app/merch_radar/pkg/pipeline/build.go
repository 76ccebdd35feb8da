package pipeline

import (
	"context"
	"fmt"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/agents"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/airtable"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/artifact"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/config"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/llm"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/storage"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/trends/factory"
)

// NewFromConfig 按配置组装真实依赖，返回的 cleanup 关闭数据库连接
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Orchestrator, func(), error) {
	fetcher, err := factory.NewFetcher(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("趋势客户端初始化失败: %w", err)
	}

	gen, err := llm.NewClient(ctx, cfg.LLM, cfg.Concurrency)
	if err != nil {
		return nil, nil, err
	}

	deps := Deps{
		Trends:      fetcher,
		Analyzer:    agents.NewAnalyzer(gen),
		Strategist:  agents.NewStrategist(gen),
		Designer:    agents.NewDesigner(gen),
		Inspector:   agents.NewInspector(gen),
		Store:       artifact.NewFileStore(cfg.OutputDir),
		Remediation: artifact.NewRemediationQueue(cfg.OutputDir),
	}
	// 未配置时保持接口为 nil
	if client := airtable.NewClient(cfg.Airtable); client != nil {
		deps.Publisher = client
	} else {
		logger.Log.Warn("Airtable 未配置，只写本地产物")
	}

	cleanup := func() {}
	if cfg.DB.DSN != "" {
		store, err := storage.NewStorage(cfg.DB.DSN)
		if err != nil {
			// 台账是可选的，连接失败不阻止运行
			logger.Log.Errorf("运行台账不可用: %v", err)
		} else {
			deps.Ledger = store
			cleanup = func() { store.Close() }
		}
	}

	return New(deps), cleanup, nil
}
