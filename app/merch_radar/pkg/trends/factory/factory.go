package factory

import (
	"fmt"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/config"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/trends"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/trends/google"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/trends/searxng"
)

// NewFetcher 根据配置创建趋势抓取实例
func NewFetcher(cfg *config.Config) (trends.Fetcher, error) {
	switch cfg.Trends.Provider {
	case "", "google":
		return trends.NewScout(google.NewClient("", "", 30*time.Second)), nil

	case "searxng":
		baseURL := cfg.Trends.SearXNG.BaseURL
		if baseURL == "" {
			return nil, fmt.Errorf("searxng base url is missing")
		}
		return trends.NewScout(searxng.NewClient(baseURL, cfg.Trends.SearXNG.Timeout)), nil

	case "manual":
		if len(cfg.Trends.SeedKeywords) == 0 {
			return nil, fmt.Errorf("manual provider needs seed_keywords")
		}
		return trends.FromKeywords(cfg.Trends.SeedKeywords), nil

	default:
		return nil, fmt.Errorf("unknown trends provider: %s", cfg.Trends.Provider)
	}
}
