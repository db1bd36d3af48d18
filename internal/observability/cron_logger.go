package observability

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var _ cron.Logger = (*CronLogger)(nil)

// CronLogger routes robfig/cron's internal logging into zap. Info messages
// are emitted at debug level; cron is chatty about every schedule tick.
type CronLogger struct {
	sugar *zap.SugaredLogger
}

func NewCronLogger(logger *zap.Logger) *CronLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronLogger{sugar: logger.Named("cron").Sugar()}
}

func (l *CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
