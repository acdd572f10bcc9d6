// Package zerolog adapts rs/zerolog to scopecache.Logger.
package zerolog

import (
	"github.com/rs/zerolog"

	"github.com/unkn0wn-root/scopecache"
)

var _ scopecache.Logger = Logger{}

type Logger struct{ L zerolog.Logger }

// New returns a Logger tagged with component=scopecache.
func New(l zerolog.Logger) Logger {
	return Logger{L: l.With().Str("component", "scopecache").Logger()}
}

func (z Logger) Debug(msg string, f scopecache.Fields) { emit(z.L.Debug(), msg, f) }
func (z Logger) Info(msg string, f scopecache.Fields)  { emit(z.L.Info(), msg, f) }
func (z Logger) Warn(msg string, f scopecache.Fields)  { emit(z.L.Warn(), msg, f) }
func (z Logger) Error(msg string, f scopecache.Fields) { emit(z.L.Error(), msg, f) }

// emit is a no-op for disabled levels: zerolog returns a nil event.
func emit(e *zerolog.Event, msg string, f scopecache.Fields) {
	if e == nil {
		return
	}
	for k, v := range f {
		if err, ok := v.(error); ok {
			e = e.AnErr(k, err)
			continue
		}
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}
