package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kratos/kratos/v2"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/config"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/pipeline"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/scheduler"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/server"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 服务名
	Name = "merch_radar"
	// Version 版本号
	Version string

	flagconf string
	mode     string
	keyword  string
)

func init() {
	flag.StringVar(&flagconf, "conf", "app/merch_radar/configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.StringVar(&mode, "mode", "serve", "run mode: daily | weekly | create | serve")
	flag.StringVar(&keyword, "keyword", "", "keyword for -mode create")
}

func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}

	// 2. 初始化日志
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Infof("启动 Merch Radar (mode=%s)", mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 组装流水线
	orch, cleanup, err := pipeline.NewFromConfig(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("初始化流水线失败: %v", err)
	}
	defer cleanup()

	code := 0
	switch mode {
	case "daily":
		code = report(orch.RunDaily(ctx, cfg))
	case "weekly":
		code = report(orch.RunWeekly(ctx, cfg))
	case "create":
		if keyword == "" {
			logger.Log.Error("-mode create 需要 -keyword")
			code = 2
			break
		}
		res := orch.RunSingle(ctx, keyword, cfg)
		fmt.Printf("%s: %s %s\n", res.NicheName, res.Status, res.Reason)
		if res.Status == pipeline.ConceptFailed {
			code = 1
		}
	case "serve":
		if err := serve(ctx, orch, cfg); err != nil {
			logger.Log.Errorf("服务退出: %v", err)
			code = 1
		}
	default:
		logger.Log.Errorf("未知模式: %s", mode)
		code = 2
	}

	if code != 0 {
		cleanup()
		os.Exit(code)
	}
}

// report 打印摘要，运行失败时返回非零退出码
func report(res pipeline.RunResult) int {
	fmt.Print(res.Summary())
	if res.Status == pipeline.RunFailed {
		return 1
	}
	return 0
}

// serve 挂载 HTTP 入口和定时器，直到收到退出信号
func serve(ctx context.Context, orch *pipeline.Orchestrator, cfg *config.Config) error {
	jobs := scheduler.NewJobs()
	sched, err := scheduler.New(orch, cfg, jobs)
	if err != nil {
		return err
	}
	httpSrv := server.NewHTTPServer(cfg.Server, server.NewDispatcher(orch, cfg, jobs))

	app := kratos.New(
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Context(ctx),
		kratos.Logger(logger.Kratos()),
		kratos.Server(httpSrv, sched),
	)
	return app.Run()
}
