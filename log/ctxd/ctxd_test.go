package ctxd

import (
	"context"
	"testing"

	"github.com/bool64/ctxd"
	"github.com/stretchr/testify/assert"

	"github.com/unkn0wn-root/scopecache"
)

func TestLoggerForwardsContextAndFields(t *testing.T) {
	var got ctxd.LoggerMock
	l := New(&got)
	l.Ctx = ctxd.AddFields(context.Background(), "session", "s-1")

	l.Warn("fetch failed", scopecache.Fields{"tag": "products"})

	out := got.String()
	assert.Contains(t, out, "fetch failed")
	assert.Contains(t, out, "products")
	assert.Contains(t, out, "scopecache")
	assert.Contains(t, out, "s-1")
}
