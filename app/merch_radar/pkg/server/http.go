// Package server HTTP 入口：健康检查和文本命令
package server

import (
	nethttp "net/http"
	"time"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/config"
)

// CommandRequest POST /command 请求体
type CommandRequest struct {
	Text string `json:"text"`
}

// CommandReply POST /command 回复
type CommandReply struct {
	Text string `json:"text"`
}

// NewHTTPServer 注册 GET /health 和 POST /command
func NewHTTPServer(c config.ServerConfig, d *Dispatcher) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout != "" {
		if t, err := time.ParseDuration(c.Timeout); err == nil {
			opts = append(opts, http.Timeout(t))
		}
	}

	srv := http.NewServer(opts...)
	r := srv.Route("/")
	r.GET("/health", func(ctx http.Context) error {
		return ctx.Result(nethttp.StatusOK, map[string]string{"status": "ok"})
	})
	r.POST("/command", func(ctx http.Context) error {
		var req CommandRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		text, err := d.Dispatch(ctx, req.Text)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, CommandReply{Text: text})
	})
	return srv
}
