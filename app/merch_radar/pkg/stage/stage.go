// Package stage 在重试策略下执行单个流水线阶段，并把结果归一为 Outcome。
package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/retry"
)

// Status 阶段结果
type Status string

const (
	Success Status = "success"
	// SoftFailure 流水线继续，但没有该阶段的输出
	SoftFailure Status = "soft_failure"
	// HardFailure 当前作用域（运行或细分市场分支）必须停止
	HardFailure Status = "hard_failure"
)

// Outcome 阶段的统一结果，按值在阶段间传递
type Outcome[T any] struct {
	Stage    string
	Status   Status
	Value    T
	Reason   string
	Kind     failure.Kind
	Attempts int
	Err      error
}

// OK 是否成功
func (o Outcome[T]) OK() bool { return o.Status == Success }

// Options 单个阶段的降级规则
type Options struct {
	// DegradeOn 这些类别的终止失败降级为 SoftFailure
	DegradeOn failure.Set
	Log       *logrus.Entry
}

// Option 配置函数
type Option func(*Options)

// DegradeOn 指定降级的错误类别
func DegradeOn(kinds ...failure.Kind) Option {
	return func(o *Options) {
		if o.DegradeOn == nil {
			o.DegradeOn = failure.NewSet()
		}
		for _, k := range kinds {
			o.DegradeOn[k] = struct{}{}
		}
	}
}

// WithLog 指定日志条目
func WithLog(l *logrus.Entry) Option {
	return func(o *Options) { o.Log = l }
}

// Run 在 policy 下执行 fn。
// 策略的终止失败映射为 HardFailure，除非策略本身或阶段选项声明降级。
// 运行被取消时总是 HardFailure。
func Run[T any](ctx context.Context, name string, policy retry.Policy, fn func(ctx context.Context) (T, error), opts ...Option) Outcome[T] {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.Log
	if log == nil {
		log = logger.Log.WithField("stage", name)
	}
	if policy.Log == nil {
		policy.Log = log
	}

	v, err := retry.Do(ctx, policy, name, fn)
	if err == nil {
		return Outcome[T]{Stage: name, Status: Success, Value: v}
	}

	out := Outcome[T]{
		Stage:    name,
		Kind:     failure.KindOf(err),
		Attempts: failure.AttemptsOf(err),
		Err:      err,
		Reason:   fmt.Sprintf("%s: %v", name, err),
	}

	switch {
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		out.Status = HardFailure
		out.Reason = fmt.Sprintf("%s: cancelled", name)
	case policy.OnExhausted == retry.Degrade || o.DegradeOn.Has(out.Kind):
		out.Status = SoftFailure
	default:
		out.Status = HardFailure
	}

	log.WithFields(logrus.Fields{
		"status":   out.Status,
		"kind":     out.Kind,
		"attempts": out.Attempts,
	}).Warn("阶段未成功")
	return out
}
