// Package logger provides a leveled logger used throughout rain.
package logger

import (
	"go.uber.org/zap"
)

// Logger is the leveled logging interface used by every package in this
// module. It mirrors the small set of methods the rest of the code calls,
// backed by a zap.SugaredLogger so call sites stay terse.
type Logger struct {
	s *zap.SugaredLogger
}

var base *zap.Logger

func init() {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "t"
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	base = l
}

// New returns a Logger tagged with name, e.g. logger.New("torrent").
func New(name string) Logger {
	return Logger{s: base.Sugar().Named(name)}
}

func (l Logger) Debug(args ...interface{})            { l.s.Debug(args...) }
func (l Logger) Debugln(args ...interface{})          { l.s.Debug(args...) }
func (l Logger) Debugf(f string, args ...interface{}) { l.s.Debugf(f, args...) }

func (l Logger) Info(args ...interface{})            { l.s.Info(args...) }
func (l Logger) Infoln(args ...interface{})          { l.s.Info(args...) }
func (l Logger) Infof(f string, args ...interface{}) { l.s.Infof(f, args...) }

func (l Logger) Warning(args ...interface{})            { l.s.Warn(args...) }
func (l Logger) Warningln(args ...interface{})          { l.s.Warn(args...) }
func (l Logger) Warningf(f string, args ...interface{}) { l.s.Warnf(f, args...) }

func (l Logger) Error(args ...interface{})            { l.s.Error(args...) }
func (l Logger) Errorln(args ...interface{})          { l.s.Error(args...) }
func (l Logger) Errorf(f string, args ...interface{}) { l.s.Errorf(f, args...) }

// With returns a child logger annotated with the given key/value pairs.
func (l Logger) With(args ...interface{}) Logger {
	return Logger{s: l.s.With(args...)}
}
