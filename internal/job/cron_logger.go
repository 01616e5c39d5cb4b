package job

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger 把 cron 内部日志（包括 Recover 捕获的 panic）转到 zap。
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func newCronLogger(logger *zap.Logger) cron.Logger {
	return cronLogger{sugar: logger.Sugar()}
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// newCron 构建带 panic 恢复的 cron，单次任务 panic 不会带走整个进程。
func newCron(logger *zap.Logger, opts ...cron.Option) *cron.Cron {
	cl := newCronLogger(logger)
	base := []cron.Option{cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))}
	return cron.New(append(base, opts...)...)
}
