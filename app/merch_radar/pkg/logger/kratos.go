package logger

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/sirupsen/logrus"
)

// kratosLogger 把 kratos 的 key/value 日志转到 logrus
type kratosLogger struct {
	component string
}

// Kratos 返回给 kratos.App 和 transport 使用的 log.Logger
func Kratos() log.Logger {
	return kratosLogger{component: "kratos"}
}

// Log 实现 log.Logger
func (k kratosLogger) Log(level log.Level, keyvals ...any) error {
	entry := Component(k.component)
	msg := ""
	fields := logrus.Fields{}
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		var val any = "(MISSING)"
		if i+1 < len(keyvals) {
			val = keyvals[i+1]
		}
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(val)
			continue
		}
		fields[key] = val
	}
	entry = entry.WithFields(fields)

	switch level {
	case log.LevelDebug:
		entry.Debug(msg)
	case log.LevelWarn:
		entry.Warn(msg)
	case log.LevelError, log.LevelFatal:
		entry.Error(msg)
	default:
		entry.Info(msg)
	}
	return nil
}
