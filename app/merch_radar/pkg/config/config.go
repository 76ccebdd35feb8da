package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/retry"
)

const (
	configPathEnv = "MERCH_RADAR_CONFIG"

	defaultTimezone = "Asia/Riyadh"
)

// Config 项目配置结构体，显式传入每次运行，不做全局单例
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Trends      TrendsConfig      `yaml:"trends"`
	Airtable    AirtableConfig    `yaml:"airtable"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Retry       RetryConfig       `yaml:"retry"`
	OutputDir   string            `yaml:"output_dir"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Server      ServerConfig      `yaml:"server"`
	DB          DBConfig          `yaml:"db"`
}

// LLMConfig LLM 相关配置（Poe 提供 OpenAI 兼容接口）
type LLMConfig struct {
	BaseURL       string  `yaml:"base_url"`
	APIKey        string  `yaml:"api_key"`
	Model         string  `yaml:"model"`
	FallbackModel string  `yaml:"fallback_model"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float32 `yaml:"temperature"`
}

// TrendsConfig 趋势来源配置
type TrendsConfig struct {
	Provider     string        `yaml:"provider"` // google | searxng | manual
	Geo          string        `yaml:"geo"`
	Timeframe    string        `yaml:"timeframe"`
	SeedKeywords []string      `yaml:"seed_keywords"`
	MaxEntries   int           `yaml:"max_entries"`
	SearXNG      SearXNGConfig `yaml:"searxng"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// AirtableConfig Airtable 配置
type AirtableConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseID       string `yaml:"base_id"`
	TableID      string `yaml:"table_id"`
	NicheTableID string `yaml:"niche_table_id"`
	BaseURL      string `yaml:"base_url"`
}

// PipelineConfig 流水线参数
type PipelineConfig struct {
	MinNicheScore    float64 `yaml:"min_niche_score"`
	MaxDesignsPerRun int     `yaml:"max_designs_per_run"`
	FanOut           int     `yaml:"fan_out"`
	AutoPublish      bool    `yaml:"auto_publish"`
}

// RetryConfig 各协作方的重试覆盖
type RetryConfig struct {
	Trends retry.Settings `yaml:"trends"`
	LLM    retry.Settings `yaml:"llm"`
	Upload retry.Settings `yaml:"upload"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig LLM 并发控制配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// SchedulerConfig 定时任务配置
type SchedulerConfig struct {
	DailyRunTime string `yaml:"daily_run_time"` // HH:MM
	WeeklyRunDay int    `yaml:"weekly_run_day"` // 0=周一
	Timezone     string `yaml:"timezone"`
}

// ServerConfig HTTP 入口
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Timeout string `yaml:"timeout"`
}

// DBConfig 运行台账数据库，DSN 为空时不启用
type DBConfig struct {
	DSN string `yaml:"dsn"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:       "https://api.poe.com/v1",
			Model:         "GPT-4o",
			FallbackModel: "Claude-3.5-Sonnet",
			MaxTokens:     4000,
			Temperature:   0.7,
		},
		Trends: TrendsConfig{
			Provider:     "google",
			Geo:          "US",
			Timeframe:    "today 1-m",
			SeedKeywords: []string{"funny shirt", "trending tee", "graphic t-shirt", "gift idea shirt"},
			MaxEntries:   20,
		},
		Airtable: AirtableConfig{BaseURL: "https://api.airtable.com/v0"},
		Pipeline: PipelineConfig{
			MinNicheScore:    6.5,
			MaxDesignsPerRun: 10,
			FanOut:           3,
			AutoPublish:      true,
		},
		OutputDir:   "./outputs",
		Log:         LogConfig{Level: "info"},
		Concurrency: ConcurrencyConfig{QPS: 1, RPM: 30},
		Scheduler: SchedulerConfig{
			DailyRunTime: "09:00",
			WeeklyRunDay: 0,
			Timezone:     defaultTimezone,
		},
		Server: ServerConfig{Addr: ":8080", Timeout: "30m"},
	}
}

// LoadConfig 加载配置：默认值 -> YAML 文件 -> 环境变量。path 为空时读取 MERCH_RADAR_CONFIG。
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		// 在默认值上解码，文件中缺省的字段保持默认
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"POE_ACCESS_KEY", &c.LLM.APIKey},
		{"LLM_API_KEY", &c.LLM.APIKey},
		{"LLM_MODEL", &c.LLM.Model},
		{"AIRTABLE_API_KEY", &c.Airtable.APIKey},
		{"AIRTABLE_BASE_ID", &c.Airtable.BaseID},
		{"AIRTABLE_TABLE_ID", &c.Airtable.TableID},
		{"AIRTABLE_NICHE_TABLE_ID", &c.Airtable.NicheTableID},
		{"DATABASE_DSN", &c.DB.DSN},
		{"LOG_LEVEL", &c.Log.Level},
		{"OUTPUT_DIR", &c.OutputDir},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
	if v := os.Getenv("MIN_NICHE_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Pipeline.MinNicheScore = f
		}
	}
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	var errs []string
	if c.Pipeline.MinNicheScore < 1 || c.Pipeline.MinNicheScore > 10 {
		errs = append(errs, fmt.Sprintf("pipeline.min_niche_score %.2f outside [1,10]", c.Pipeline.MinNicheScore))
	}
	if c.Pipeline.FanOut < 1 {
		errs = append(errs, "pipeline.fan_out must be >= 1")
	}
	if c.Pipeline.MaxDesignsPerRun < 1 {
		errs = append(errs, "pipeline.max_designs_per_run must be >= 1")
	}
	if c.OutputDir == "" {
		errs = append(errs, "output_dir is required")
	}
	if _, _, err := c.Scheduler.DailyClock(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scheduler.WeeklyRunDay < 0 || c.Scheduler.WeeklyRunDay > 6 {
		errs = append(errs, "scheduler.weekly_run_day must be 0-6")
	}
	switch c.Trends.Provider {
	case "google", "searxng", "manual":
	default:
		errs = append(errs, fmt.Sprintf("unknown trends provider: %s", c.Trends.Provider))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DailyClock 解析 HH:MM
func (s SchedulerConfig) DailyClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.DailyRunTime)
	if err != nil {
		return 0, 0, fmt.Errorf("scheduler.daily_run_time %q is not HH:MM", s.DailyRunTime)
	}
	return t.Hour(), t.Minute(), nil
}

// Location 时区，无法识别时回退到 UTC
func (s SchedulerConfig) Location() *time.Location {
	tz := s.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
