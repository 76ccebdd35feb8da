package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_FileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: GPT-4o-Mini
pipeline:
  min_niche_score: 7
  fan_out: 5
retry:
  trends:
    max_retries: 2
    base_delay: 500ms
trends:
  seed_keywords: ["cat shirt"]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.LLM.Model != "GPT-4o-Mini" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.MaxTokens != 4000 {
		t.Errorf("LLM.MaxTokens default lost: %d", cfg.LLM.MaxTokens)
	}
	if cfg.Pipeline.MinNicheScore != 7 || cfg.Pipeline.FanOut != 5 {
		t.Errorf("Pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.MaxDesignsPerRun != 10 {
		t.Errorf("MaxDesignsPerRun default lost: %d", cfg.Pipeline.MaxDesignsPerRun)
	}
	if cfg.Retry.Trends.MaxRetries != 2 || cfg.Retry.Trends.BaseDelay != 500*time.Millisecond {
		t.Errorf("Retry.Trends = %+v", cfg.Retry.Trends)
	}
	if len(cfg.Trends.SeedKeywords) != 1 {
		t.Errorf("SeedKeywords = %v", cfg.Trends.SeedKeywords)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("POE_ACCESS_KEY", "poe-secret")
	t.Setenv("AIRTABLE_BASE_ID", "appXYZ")
	t.Setenv("MIN_NICHE_SCORE", "8.5")
	t.Setenv(configPathEnv, "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.LLM.APIKey != "poe-secret" || cfg.Airtable.BaseID != "appXYZ" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.LLM, cfg.Airtable)
	}
	if cfg.Pipeline.MinNicheScore != 8.5 {
		t.Errorf("MinNicheScore = %v", cfg.Pipeline.MinNicheScore)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"score too high", func(c *Config) { c.Pipeline.MinNicheScore = 11 }, "min_niche_score"},
		{"fan out", func(c *Config) { c.Pipeline.FanOut = 0 }, "fan_out"},
		{"clock", func(c *Config) { c.Scheduler.DailyRunTime = "9am" }, "HH:MM"},
		{"provider", func(c *Config) { c.Trends.Provider = "bing" }, "unknown trends provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestSchedulerConfig_DailyClock(t *testing.T) {
	h, m, err := SchedulerConfig{DailyRunTime: "07:45"}.DailyClock()
	if err != nil || h != 7 || m != 45 {
		t.Errorf("DailyClock() = %d, %d, %v", h, m, err)
	}
}
