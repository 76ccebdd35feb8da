package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// FromHTTPStatus 按响应码归类，2xx 返回 nil
func FromHTTPStatus(op string, status int, body string) error {
	if status >= 200 && status < 300 {
		return nil
	}
	body = strings.TrimSpace(body)
	if len(body) > 512 {
		body = body[:512]
	}
	err := fmt.Errorf("status %d: %s", status, body)

	switch {
	case status == http.StatusTooManyRequests:
		return New(RateLimited, op, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return New(AuthFailure, op, err)
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return New(ValidationFailure, op, err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout ||
		status == http.StatusServiceUnavailable || status == http.StatusBadGateway:
		return New(Timeout, op, err)
	}
	return New(Unknown, op, err)
}

// FromTransport 归类请求层错误；调用方自身 ctx 的取消原样返回
func FromTransport(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() || errors.Is(err, context.DeadlineExceeded) {
		return New(Timeout, op, err)
	}
	return New(Unknown, op, err)
}
