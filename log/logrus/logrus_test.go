package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/scopecache"
)

func TestLogrusLogger(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Warn("generation bump failed", scopecache.Fields{"names": 2, "err": errors.New("timeout")})

	e := hook.LastEntry()
	if e == nil || e.Level != logrus.WarnLevel || e.Message != "generation bump failed" {
		t.Fatalf("entry = %+v", e)
	}
	if e.Data["component"] != "scopecache" || e.Data["names"] != 2 {
		t.Fatalf("data = %v", e.Data)
	}
	if err, ok := e.Data[logrus.ErrorKey].(error); !ok || err.Error() != "timeout" {
		t.Fatalf("error field = %v", e.Data[logrus.ErrorKey])
	}
}
