package log

import (
	"github.com/inconshreveable/log15"
)

// Logger writes key/value structured records. Trace maps to the debug
// level of the backing handler.
type Logger interface {
	New(ctx ...interface{}) Logger
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type logger struct {
	l log15.Logger
}

func New(ctx ...interface{}) Logger {
	return &logger{l: log15.New(ctx...)}
}

func (l *logger) New(ctx ...interface{}) Logger {
	return &logger{l: l.l.New(ctx...)}
}

func (l *logger) Trace(msg string, ctx ...interface{}) {
	l.l.Debug(msg, ctx...)
}

func (l *logger) Debug(msg string, ctx ...interface{}) {
	l.l.Debug(msg, ctx...)
}

func (l *logger) Info(msg string, ctx ...interface{}) {
	l.l.Info(msg, ctx...)
}

func (l *logger) Warn(msg string, ctx ...interface{}) {
	l.l.Warn(msg, ctx...)
}

func (l *logger) Error(msg string, ctx ...interface{}) {
	l.l.Error(msg, ctx...)
}

func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.l.Crit(msg, ctx...)
}

var root = &logger{l: log15.Root()}

// SetVerbosity filters root output to records at lvl or above.
func SetVerbosity(lvl string) error {
	level, err := log15.LvlFromString(lvl)
	if err != nil {
		return err
	}
	log15.Root().SetHandler(log15.LvlFilterHandler(level, log15.StdoutHandler))
	return nil
}

func Trace(msg string, ctx ...interface{}) {
	root.Trace(msg, ctx...)
}

func Debug(msg string, ctx ...interface{}) {
	root.Debug(msg, ctx...)
}

func Info(msg string, ctx ...interface{}) {
	root.Info(msg, ctx...)
}

func Warn(msg string, ctx ...interface{}) {
	root.Warn(msg, ctx...)
}

func Error(msg string, ctx ...interface{}) {
	root.Error(msg, ctx...)
}

func Crit(msg string, ctx ...interface{}) {
	root.Crit(msg, ctx...)
}
