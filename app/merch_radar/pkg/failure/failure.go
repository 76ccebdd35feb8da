// Package failure 定义所有外部协作方共享的错误分类。
package failure

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind string

const (
	Unknown           Kind = "unknown"
	RateLimited       Kind = "rate_limited"
	Timeout           Kind = "timeout"
	AuthFailure       Kind = "auth_failure"
	ParseFailure      Kind = "parse_failure"
	ContentPolicy     Kind = "content_policy"
	ValidationFailure Kind = "validation_failure"
	PersistenceError  Kind = "persistence_error"
	InvalidScoreInput Kind = "invalid_score_input"
)

// Error 带类别的错误，Attempts 为放弃前的尝试次数（未经重试时为 0）
type Error struct {
	Kind     Kind
	Op       string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, &Error{Kind: k}) 按类别匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// New 创建带类别的错误
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf 以格式化消息创建带类别的错误
func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf 返回错误链上最近的类别，没有则为 Unknown
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// AttemptsOf 返回错误链上记录的尝试次数
func AttemptsOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Attempts
	}
	return 0
}

// Set 错误类别集合
type Set map[Kind]struct{}

// NewSet 构造类别集合
func NewSet(kinds ...Kind) Set {
	s := make(Set, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

// Has 判断集合是否包含某类别
func (s Set) Has(k Kind) bool {
	_, ok := s[k]
	return ok
}
