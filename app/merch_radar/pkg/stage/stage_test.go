package stage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/retry"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func noWait(p retry.Policy) retry.Policy {
	p.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return p
}

func TestRun_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		policy retry.Policy
		opts   []Option
		err    error
		want   Status
	}{
		{"success", retry.LLM(), nil, nil, Success},
		{"auth is hard", retry.LLM(), nil, failure.New(failure.AuthFailure, "llm", nil), HardFailure},
		{"exhausted rate limit is hard", retry.LLM(), nil, failure.New(failure.RateLimited, "llm", nil), HardFailure},
		{"upload degrades", retry.Upload(), nil, failure.New(failure.RateLimited, "airtable", nil), SoftFailure},
		{"upload validation degrades", retry.Upload(), nil, failure.New(failure.ValidationFailure, "airtable", nil), SoftFailure},
		{"content policy degrade option", retry.LLM(), []Option{DegradeOn(failure.ContentPolicy)}, failure.New(failure.ContentPolicy, "llm", nil), SoftFailure},
		{"timeout degrade option", retry.TrendFetch(), []Option{DegradeOn(failure.Timeout)}, failure.New(failure.Timeout, "trends", nil), SoftFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithLog(quietLog())}, tt.opts...)
			out := Run(context.Background(), "s", noWait(tt.policy), func(ctx context.Context) (int, error) {
				if tt.err != nil {
					return 0, tt.err
				}
				return 42, nil
			}, opts...)

			if out.Status != tt.want {
				t.Errorf("Status = %s, want %s (reason %s)", out.Status, tt.want, out.Reason)
			}
			if tt.err == nil && out.Value != 42 {
				t.Errorf("Value = %d, want 42", out.Value)
			}
			if tt.err != nil && out.Kind != failure.KindOf(tt.err) {
				t.Errorf("Kind = %s, want %s", out.Kind, failure.KindOf(tt.err))
			}
		})
	}
}

func TestRun_CancelledIsHard(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := Run(ctx, "design", retry.Upload(), func(ctx context.Context) (int, error) {
		return 1, nil
	}, WithLog(quietLog()))
	if out.Status != HardFailure {
		t.Errorf("Status = %s, want hard_failure", out.Status)
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Errorf("Err = %v", out.Err)
	}
}

func TestRun_AttemptsRecorded(t *testing.T) {
	calls := 0
	out := Run(context.Background(), "trends", noWait(retry.TrendFetch()), func(ctx context.Context) (int, error) {
		calls++
		return 0, failure.New(failure.Timeout, "trends", nil)
	}, WithLog(quietLog()))

	if out.Attempts != 5 || calls != 5 {
		t.Errorf("Attempts = %d calls = %d, want 5", out.Attempts, calls)
	}
	if out.OK() {
		t.Error("OK() = true on failure")
	}
}
