package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/scopecache"
)

func newBuf() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestKeysAreRedacted(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{})
	h.FetchFailed(scopecache.NewKey("productCount", "user-secret", "b-1"), errors.New("boom"))

	out := buf.String()
	if strings.Contains(out, "user-secret") {
		t.Fatalf("scope value leaked: %q", out)
	}
	if !strings.Contains(out, "tag=productCount") || !strings.Contains(out, "err=boom") {
		t.Fatalf("missing fields: %q", out)
	}
}

func TestCustomRedact(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{Redact: func(string) string { return "***" }})
	h.SnapshotDiscarded(scopecache.NewKey("branches", "u-1"), "gen_mismatch")
	if !strings.Contains(buf.String(), "key=***") {
		t.Fatalf("custom redactor not used: %q", buf.String())
	}
}

func TestSampling(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{InvalidateEvery: 3})
	k := scopecache.NewKey("products", "u-1", "b-1")
	for i := 0; i < 9; i++ {
		h.Invalidated(k, false)
	}
	if n := strings.Count(buf.String(), "scopecache.invalidated"); n != 3 {
		t.Fatalf("logged %d of 9, want 3", n)
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	h := New(nil, Options{})
	h.GenStoreError("bump", errors.New("x"))
	h.Evicted(scopecache.NewKey("branches", "u-1"))
}
