// Package logrus adapts sirupsen/logrus to scopecache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/scopecache"
)

var _ scopecache.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New wraps l with component=scopecache.
func New(l logrus.FieldLogger) LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return LogrusLogger{E: l.WithField("component", "scopecache")}
}

func (l LogrusLogger) Debug(msg string, f scopecache.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f scopecache.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f scopecache.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f scopecache.Fields) { l.with(f).Error(msg) }

// "err" goes through WithError so hooks that look for logrus.ErrorKey see it.
func (l LogrusLogger) with(f scopecache.Fields) *logrus.Entry {
	e := l.E
	if len(f) == 0 {
		return e
	}
	fields := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			e = e.WithError(err)
			continue
		}
		fields[k] = v
	}
	return e.WithFields(fields)
}
