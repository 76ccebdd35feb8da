// Package retry 对单次外部调用做有界的指数退避重试。
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
)

// OnExhausted 重试耗尽后的处理方式
type OnExhausted string

const (
	Fail    OnExhausted = "fail"
	Degrade OnExhausted = "degrade"
)

// SleepFunc 等待指定时长，ctx 结束时提前返回
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy 重试策略。值类型、无共享计数器，可在并发调用间复用。
type Policy struct {
	Name        string
	MaxRetries  int // 总尝试次数上限
	BaseDelay   time.Duration
	Multiplier  float64
	Retryable   failure.Set
	OnExhausted OnExhausted

	// Sleep 为空时使用真实计时器
	Sleep SleepFunc
	// Log 为空时使用 logger.Log
	Log *logrus.Entry
}

// Settings 可由配置覆盖的字段，零值表示沿用默认
type Settings struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	Multiplier float64       `yaml:"multiplier"`
}

// TrendFetch 趋势抓取：限流和超时可重试，最多 5 次
func TrendFetch() Policy {
	return Policy{
		Name:        "trends",
		MaxRetries:  5,
		BaseDelay:   time.Second,
		Multiplier:  2,
		Retryable:   failure.NewSet(failure.RateLimited, failure.Timeout),
		OnExhausted: Fail,
	}
}

// LLM 语言模型调用：只重试限流。解析失败和内容策略由 llm 包自行处理。
func LLM() Policy {
	return Policy{
		Name:        "llm",
		MaxRetries:  3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
		Retryable:   failure.NewSet(failure.RateLimited),
		OnExhausted: Fail,
	}
}

// Upload 记录上传：只重试限流，耗尽后降级（本地已落盘）
func Upload() Policy {
	return Policy{
		Name:        "airtable",
		MaxRetries:  5,
		BaseDelay:   time.Second,
		Multiplier:  2,
		Retryable:   failure.NewSet(failure.RateLimited),
		OnExhausted: Degrade,
	}
}

// Apply 用配置覆盖非零字段
func (p Policy) Apply(s Settings) Policy {
	if s.MaxRetries > 0 {
		p.MaxRetries = s.MaxRetries
	}
	if s.BaseDelay > 0 {
		p.BaseDelay = s.BaseDelay
	}
	if s.Multiplier > 0 {
		p.Multiplier = s.Multiplier
	}
	return p
}

// MaxDelay 单次退避的上限
const MaxDelay = 5 * time.Minute

// Delay 第 attempt 次（从 0 开始）失败后的等待时长：base * multiplier^attempt，不超过 MaxDelay
func (p Policy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(attempt))
	if math.IsNaN(d) || d > float64(MaxDelay) {
		return MaxDelay
	}
	return time.Duration(d)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p Policy) log() *logrus.Entry {
	if p.Log != nil {
		return p.Log
	}
	return logger.Log.WithField("policy", p.Name)
}

// Do 在策略下执行 fn。
//
// 可重试错误按退避等待后再试，直到 MaxRetries 次尝试；不可重试错误立即返回。
// 返回的错误总是 *failure.Error，携带原始类别和已尝试次数。
// ctx 被取消时停止重试并返回 ctx 的错误。
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	maxAttempts := max(p.MaxRetries, 1)
	log := p.log().WithField("op", op)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: %w", op, err)
		}

		v, err := fn(ctx)
		if err == nil {
			log.WithFields(logrus.Fields{"attempt": attempt, "outcome": "success"}).Debug("调用完成")
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return zero, fmt.Errorf("%s: %w", op, err)
		}

		kind := failure.KindOf(err)
		if !p.Retryable.Has(kind) {
			log.WithFields(logrus.Fields{"attempt": attempt, "outcome": string(kind)}).Warnf("不可重试错误: %v", err)
			return zero, &failure.Error{Kind: kind, Op: op, Attempts: attempt, Err: err}
		}
		if attempt >= maxAttempts {
			log.WithFields(logrus.Fields{"attempt": attempt, "outcome": string(kind)}).Errorf("重试耗尽: %v", err)
			return zero, &failure.Error{Kind: kind, Op: op, Attempts: attempt, Err: err}
		}

		delay := p.Delay(attempt - 1)
		log.WithFields(logrus.Fields{"attempt": attempt, "delay": delay, "outcome": string(kind)}).Warnf("调用失败，准备重试: %v", err)
		if err := p.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
	}
}
