// Package trends 发现热门搜索词，对应趋势抓取协作方。
package trends

import (
	"context"
	"strings"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
)

// Request 趋势抓取请求
type Request struct {
	SeedKeywords []string
	Geo          string
	Timeframe    string
	MaxEntries   int
}

// Fetcher 趋势抓取接口。空结果不是错误，返回零条目的报告。
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*model.TrendReport, error)
}

// Source 单个数据来源
type Source interface {
	// Trending 国家级热门搜索，不支持时返回 nil, nil
	Trending(ctx context.Context, geo string) ([]model.TrendEntry, error)
	// Related 种子词的相关搜索
	Related(ctx context.Context, keyword, geo string) ([]model.TrendEntry, error)
}

// Enricher 可选能力：按时间窗口补充单个条目的搜索量和增长率。
// 数据不足时原样返回条目。
type Enricher interface {
	Enrich(ctx context.Context, entry model.TrendEntry, geo, timeframe string) (model.TrendEntry, error)
}

// SourceManual 人工指定的趋势词
const SourceManual = "manual"

const (
	maxTrending       = 10
	defaultMaxEntries = 20
)

// Scout 组合热门搜索和相关搜索，去重后截断
type Scout struct {
	source Source
	now    func() time.Time
}

var _ Fetcher = (*Scout)(nil)

// NewScout 创建 Scout
func NewScout(source Source) *Scout {
	return &Scout{source: source, now: time.Now}
}

// Fetch 实现 Fetcher
func (s *Scout) Fetch(ctx context.Context, req *Request) (*model.TrendReport, error) {
	limit := req.MaxEntries
	if limit <= 0 {
		limit = defaultMaxEntries
	}

	var entries []model.TrendEntry
	seen := make(map[string]bool)
	add := func(list []model.TrendEntry) {
		for _, e := range list {
			key := strings.ToLower(strings.TrimSpace(e.Query))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			entries = append(entries, e)
		}
	}

	trending, err := s.source.Trending(ctx, req.Geo)
	if err != nil {
		return nil, err
	}
	if len(trending) > maxTrending {
		trending = trending[:maxTrending]
	}
	add(trending)

	for _, kw := range req.SeedKeywords {
		related, err := s.source.Related(ctx, kw, req.Geo)
		if err != nil {
			return nil, err
		}
		add(related)
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}
	if err := s.enrich(ctx, entries, req); err != nil {
		return nil, err
	}
	logger.Log.Infof("趋势发现完成: %d 条", len(entries))

	return &model.TrendReport{
		Entries:   entries,
		Geo:       req.Geo,
		Timeframe: req.Timeframe,
		CreatedAt: s.now(),
	}, nil
}

// enrich 单条失败时保留原条目，只有运行被取消才返回错误
func (s *Scout) enrich(ctx context.Context, entries []model.TrendEntry, req *Request) error {
	en, ok := s.source.(Enricher)
	if !ok {
		return nil
	}
	for i, e := range entries {
		enriched, err := en.Enrich(ctx, e, req.Geo, req.Timeframe)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.Warnf("补充趋势数据失败 '%s'，保留原条目: %v", e.Query, err)
			continue
		}
		entries[i] = enriched
	}
	return nil
}

// Static 固定结果的 Fetcher，manual 模式下直接把种子词当作趋势
type Static struct {
	Entries []model.TrendEntry
}

// FromKeywords 每个关键词一条 manual 来源的条目
func FromKeywords(keywords []string) Static {
	entries := make([]model.TrendEntry, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			entries = append(entries, model.TrendEntry{Query: kw, Source: SourceManual})
		}
	}
	return Static{Entries: entries}
}

// Fetch 实现 Fetcher
func (s Static) Fetch(ctx context.Context, req *Request) (*model.TrendReport, error) {
	return &model.TrendReport{
		Entries:   append([]model.TrendEntry(nil), s.Entries...),
		Geo:       req.Geo,
		Timeframe: req.Timeframe,
		CreatedAt: time.Now(),
	}, nil
}
