// Package ctxd adapts bool64/ctxd to scopecache.Logger.
package ctxd

import (
	"context"
	"maps"
	"slices"

	"github.com/bool64/ctxd"

	"github.com/unkn0wn-root/scopecache"
)

var _ scopecache.Logger = Logger{}

// Logger forwards to L with a fixed context. Use Ctx to carry request fields
// (set with ctxd.AddFields) into every cache log line.
type Logger struct {
	L   ctxd.Logger
	Ctx context.Context
}

func New(l ctxd.Logger) Logger {
	if l == nil {
		l = ctxd.NoOpLogger{}
	}
	return Logger{L: l, Ctx: context.Background()}
}

func (l Logger) Debug(msg string, f scopecache.Fields) { l.L.Debug(l.ctx(), msg, kv(f)...) }
func (l Logger) Info(msg string, f scopecache.Fields)  { l.L.Info(l.ctx(), msg, kv(f)...) }
func (l Logger) Warn(msg string, f scopecache.Fields)  { l.L.Warn(l.ctx(), msg, kv(f)...) }
func (l Logger) Error(msg string, f scopecache.Fields) { l.L.Error(l.ctx(), msg, kv(f)...) }

func (l Logger) ctx() context.Context {
	if l.Ctx == nil {
		return context.Background()
	}
	return l.Ctx
}

func kv(f scopecache.Fields) []any {
	out := make([]any, 0, 2*len(f)+2)
	out = append(out, "component", "scopecache")
	for _, k := range slices.Sorted(maps.Keys(f)) {
		out = append(out, k, f[k])
	}
	return out
}
