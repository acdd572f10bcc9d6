// Package logr adapts go-logr/logr to scopecache.Logger. logr has no warn
// level: warnings go to Info with level=warn, debug to V(1).
package logr

import (
	"errors"
	"maps"
	"slices"

	"github.com/go-logr/logr"

	"github.com/unkn0wn-root/scopecache"
)

var _ scopecache.Logger = Logger{}

type Logger struct{ L logr.Logger }

func New(l logr.Logger) Logger { return Logger{L: l.WithName("scopecache")} }

func (l Logger) Debug(msg string, f scopecache.Fields) { l.L.V(1).Info(msg, kv(f)...) }
func (l Logger) Info(msg string, f scopecache.Fields)  { l.L.Info(msg, kv(f)...) }

func (l Logger) Warn(msg string, f scopecache.Fields) {
	l.L.Info(msg, append(kv(f), "level", "warn")...)
}

func (l Logger) Error(msg string, f scopecache.Fields) {
	err, _ := f["err"].(error)
	if err == nil {
		err = errors.New(msg)
	}
	rest := make(scopecache.Fields, len(f))
	for k, v := range f {
		if k != "err" {
			rest[k] = v
		}
	}
	l.L.Error(err, msg, kv(rest)...)
}

func kv(f scopecache.Fields) []any {
	out := make([]any, 0, 2*len(f))
	for _, k := range slices.Sorted(maps.Keys(f)) {
		out = append(out, k, f[k])
	}
	return out
}
