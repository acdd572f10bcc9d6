package logr

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/scopecache"
)

func TestLogrLogger(t *testing.T) {
	var lines []string
	base := funcr.New(func(prefix, args string) {
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{Verbosity: 1})
	l := New(base)

	l.Debug("gc sweep", scopecache.Fields{"evicted": 2})
	l.Warn("generation snapshot failed", scopecache.Fields{"key": "k"})
	l.Error("persist snapshot failed", scopecache.Fields{"key": "k", "err": errors.New("redis down")})

	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"evicted"=2`)
	assert.Contains(t, lines[1], `"level"="warn"`)
	assert.Contains(t, lines[2], `"error"="redis down"`)
	assert.NotContains(t, lines[2], `"err"=`)
	for _, line := range lines {
		assert.Contains(t, line, "scopecache")
	}
}

func TestLogrOverZerolog(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	l := New(zerologr.New(&zl))

	l.Info("cache reset", scopecache.Fields{"dropped": 3})
	l.Error("fetch failed", scopecache.Fields{"err": errors.New("timeout")})

	out := buf.String()
	assert.Contains(t, out, "cache reset")
	assert.Contains(t, out, `"dropped":3`)
	assert.Contains(t, out, "timeout")
}
