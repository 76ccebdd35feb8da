// Package llm 封装语言模型调用：限流、结构化 JSON 输出、错误归类和备用模型。
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/config"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
)

// Generator 结构化生成接口，agents 依赖它而不是具体客户端
type Generator interface {
	GenerateJSON(ctx context.Context, req Request, out any) error
}

// Request 一次结构化生成请求
type Request struct {
	Op     string // 日志和错误中的操作名
	System string
	Prompt string
	// Schema 期望输出的 JSON 形状示例
	Schema string
}

type namedModel struct {
	name string
	cm   model.BaseChatModel
}

// Client 语言模型客户端。
// 限流重试交给调用方的 retry.Policy；解析失败时先用更严格的请求重试一次，再切换到备用模型。
type Client struct {
	models  []namedModel
	limiter *rate.Limiter
	opts    []model.Option
}

var _ Generator = (*Client)(nil)

// New 使用现成的模型创建客户端，fallback 可以为 nil
func New(primary model.BaseChatModel, primaryName string, fallback model.BaseChatModel, fallbackName string, limiter *rate.Limiter, opts ...model.Option) *Client {
	c := &Client{
		models:  []namedModel{{name: primaryName, cm: primary}},
		limiter: limiter,
		opts:    opts,
	}
	if fallback != nil {
		c.models = append(c.models, namedModel{name: fallbackName, cm: fallback})
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return c
}

// NewClient 按配置创建 OpenAI 兼容的主模型和备用模型
func NewClient(ctx context.Context, cfg config.LLMConfig, conc config.ConcurrencyConfig) (*Client, error) {
	primary, err := NewChatModel(ctx, cfg, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	var fallback model.BaseChatModel
	if cfg.FallbackModel != "" && cfg.FallbackModel != cfg.Model {
		fallback, err = NewChatModel(ctx, cfg, cfg.FallbackModel)
		if err != nil {
			return nil, fmt.Errorf("备用 LLM 初始化失败: %w", err)
		}
	}
	return New(primary, cfg.Model, fallback, cfg.FallbackModel, NewLimiter(conc)), nil
}

// NewChatModel 创建指定模型名的 ChatModel
func NewChatModel(ctx context.Context, cfg config.LLMConfig, name string) (model.BaseChatModel, error) {
	mc := &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   name,
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		mc.MaxTokens = &maxTokens
	}
	if cfg.Temperature > 0 {
		temp := cfg.Temperature
		mc.Temperature = &temp
	}
	cm, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, err
	}
	return cm, nil
}

// NewLimiter RPM 决定速率，QPS 决定突发
func NewLimiter(conc config.ConcurrencyConfig) *rate.Limiter {
	if conc.RPM <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(conc.RPM)/60.0), max(conc.QPS, 1))
}

// GenerateJSON 生成并解析为 out。
// 返回的错误携带 failure.Kind：rate_limited、auth_failure、content_policy、timeout 或 parse_failure。
func (c *Client) GenerateJSON(ctx context.Context, req Request, out any) error {
	op := req.Op
	if op == "" {
		op = "llm.generate"
	}

	var lastErr error
	for _, m := range c.models {
		for _, strict := range []bool{false, true} {
			text, err := c.generate(ctx, m, buildMessages(req, strict))
			if err != nil {
				return classify(ctx, op, err)
			}
			if err := decodeJSON(text, out); err != nil {
				lastErr = err
				logger.Log.Warnf("[%s] 模型 %s 输出无法解析 (strict=%v): %v", op, m.name, strict, err)
				continue
			}
			return nil
		}
	}
	return failure.New(failure.ParseFailure, op, lastErr)
}

func (c *Client) generate(ctx context.Context, m namedModel, msgs []*schema.Message) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := m.cm.Generate(ctx, msgs, c.opts...)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("empty response")
	}
	if resp.ResponseMeta != nil && resp.ResponseMeta.FinishReason == "content_filter" {
		return "", failure.New(failure.ContentPolicy, "llm.generate", fmt.Errorf("model %s flagged the request", m.name))
	}
	return resp.Content, nil
}

func buildMessages(req Request, strict bool) []*schema.Message {
	system := req.System
	if system == "" {
		system = "You are a JSON generator. Only output JSON."
	}
	var sb strings.Builder
	sb.WriteString(req.Prompt)
	if req.Schema != "" {
		sb.WriteString("\n\nRespond with JSON in exactly this shape:\n")
		sb.WriteString(req.Schema)
	}
	if strict {
		system = "You are a strict JSON generator. Output a single valid JSON object and nothing else: no markdown, no code fences, no commentary."
		sb.WriteString("\n\nYour previous answer could not be parsed. Return ONLY the JSON object. Keep string values short and escape quotes.")
	}
	return []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(sb.String()),
	}
}

// decodeJSON 去掉 markdown 代码块后解析第一个 JSON 对象
func decodeJSON(text string, out any) error {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); start >= 0 && end > start {
		s = s[start : end+1]
	}
	if s == "" {
		return errors.New("empty content")
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

// classify 把模型返回的错误归入 failure.Kind；运行被取消时原样返回
func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit"):
		return failure.New(failure.RateLimited, op, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid api key") || strings.Contains(msg, "incorrect api key"):
		return failure.New(failure.AuthFailure, op, err)
	case strings.Contains(msg, "content_policy") || strings.Contains(msg, "content policy") ||
		strings.Contains(msg, "content_filter") || strings.Contains(msg, "safety system"):
		return failure.New(failure.ContentPolicy, op, err)
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout"):
		return failure.New(failure.Timeout, op, err)
	}
	return failure.New(failure.Unknown, op, err)
}
