// Package scheduler 按配置时间触发日报和周报，作为 kratos transport.Server 挂到 App 上。
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/transport"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/config"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/pipeline"
)

var _ transport.Server = (*Scheduler)(nil)

const (
	JobDaily  = "daily"
	JobWeekly = "weekly"
)

// Runner 定时触发的流水线入口
type Runner interface {
	RunDaily(ctx context.Context, cfg *config.Config) pipeline.RunResult
	RunWeekly(ctx context.Context, cfg *config.Config) pipeline.RunResult
}

// Jobs 同名任务互斥，定时器和 HTTP 入口共用
type Jobs struct {
	mu      sync.Mutex
	running map[string]bool
}

// NewJobs 创建互斥表
func NewJobs() *Jobs {
	return &Jobs{running: make(map[string]bool)}
}

// TryStart 任务未在运行时占用并返回释放函数
func (j *Jobs) TryStart(name string) (release func(), ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running[name] {
		return nil, false
	}
	j.running[name] = true
	return func() {
		j.mu.Lock()
		delete(j.running, name)
		j.mu.Unlock()
	}, true
}

// NextDaily 下一次 hour:minute，严格晚于 now
func NextDaily(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NextWeekly 下一个 weekday（0=周一）的 hour:00，严格晚于 now
func NextWeekly(now time.Time, weekday, hour int) time.Time {
	target := time.Weekday((weekday + 1) % 7)
	ahead := (int(target) - int(now.Weekday()) + 7) % 7
	next := time.Date(now.Year(), now.Month(), now.Day()+ahead, hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// Scheduler 日报在 daily_run_time，周报在 weekly_run_day 的下一个整点
type Scheduler struct {
	runner Runner
	cfg    *config.Config
	jobs   *Jobs
	loc    *time.Location
	hour   int
	minute int

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time

	runCtx    context.Context
	cancelRun context.CancelFunc
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New 创建定时器，jobs 为空时自建
func New(runner Runner, cfg *config.Config, jobs *Jobs) (*Scheduler, error) {
	hour, minute, err := cfg.Scheduler.DailyClock()
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = NewJobs()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:    runner,
		cfg:       cfg,
		jobs:      jobs,
		loc:       cfg.Scheduler.Location(),
		hour:      hour,
		minute:    minute,
		now:       time.Now,
		after:     time.After,
		runCtx:    runCtx,
		cancelRun: cancel,
		stop:      make(chan struct{}),
	}, nil
}

// next 最近的一次触发
func (s *Scheduler) next(now time.Time) (string, time.Time) {
	local := now.In(s.loc)
	daily := NextDaily(local, s.hour, s.minute)
	weekly := NextWeekly(local, s.cfg.Scheduler.WeeklyRunDay, (s.hour+1)%24)
	if weekly.Before(daily) {
		return JobWeekly, weekly
	}
	return JobDaily, daily
}

// Start 阻塞直到 ctx 结束或 Stop
func (s *Scheduler) Start(ctx context.Context) error {
	logger.Log.Infof("定时任务启动: 日报 %02d:%02d, 周报 weekday=%d (%s)",
		s.hour, s.minute, s.cfg.Scheduler.WeeklyRunDay, s.loc)
	for {
		now := s.now()
		job, at := s.next(now)
		logger.Log.Debugf("下一次任务 %s 于 %s", job, at.Format(time.RFC3339))
		select {
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		case <-s.after(at.Sub(now)):
			s.fire(job)
		}
	}
}

// Stop 停止计时并取消在跑的任务，等待其写完摘要
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.cancelRun()
	})
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) fire(job string) {
	release, ok := s.jobs.TryStart(job)
	if !ok {
		logger.Log.Warnf("任务 %s 仍在运行，本次跳过", job)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()

		var res pipeline.RunResult
		switch job {
		case JobWeekly:
			res = s.runner.RunWeekly(s.runCtx, s.cfg)
		default:
			res = s.runner.RunDaily(s.runCtx, s.cfg)
		}
		logger.Log.Infof("定时任务 %s 结束: %s (run_id=%s)", job, res.Status, res.RunID)
	}()
}
