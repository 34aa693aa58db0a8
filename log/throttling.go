package log

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// NewThrottlingLogger suppresses repeats of the same message for a
// minute. Used for per-response failures that would otherwise flood
// the output on a misbehaving worker population.
func NewThrottlingLogger(baseLogger Logger) Logger {
	return &throttlingLogger{
		logger: baseLogger,
		seen:   cache.New(time.Minute, time.Minute*5),
	}
}

type throttlingLogger struct {
	logger Logger
	seen   *cache.Cache
}

func (t *throttlingLogger) New(ctx ...interface{}) Logger {
	return NewThrottlingLogger(t.logger.New(ctx...))
}

func (t *throttlingLogger) Trace(msg string, ctx ...interface{}) {
	t.logIfNeeded(msg, t.logger.Trace, ctx...)
}

func (t *throttlingLogger) Debug(msg string, ctx ...interface{}) {
	t.logIfNeeded(msg, t.logger.Debug, ctx...)
}

func (t *throttlingLogger) Info(msg string, ctx ...interface{}) {
	t.logIfNeeded(msg, t.logger.Info, ctx...)
}

func (t *throttlingLogger) Warn(msg string, ctx ...interface{}) {
	t.logIfNeeded(msg, t.logger.Warn, ctx...)
}

func (t *throttlingLogger) Error(msg string, ctx ...interface{}) {
	t.logIfNeeded(msg, t.logger.Error, ctx...)
}

func (t *throttlingLogger) Crit(msg string, ctx ...interface{}) {
	t.logIfNeeded(msg, t.logger.Crit, ctx...)
}

func (t *throttlingLogger) logIfNeeded(msg string, log func(msg string, ctx ...interface{}), ctx ...interface{}) {
	if err := t.seen.Add(msg, struct{}{}, cache.DefaultExpiration); err == nil {
		log(msg, ctx...)
	}
}
