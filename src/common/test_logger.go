package common

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
)

// testWriter sends every log line to t.Log, so the logs of a test are only
// shown when it fails. Lines written once the test is over are dropped.
type testWriter struct {
	t    testing.TB
	done int32
}

func (w *testWriter) Write(d []byte) (int, error) {
	if atomic.LoadInt32(&w.done) == 0 {
		w.t.Log(strings.TrimSuffix(string(d), "\n"))
	}
	return len(d), nil
}

// NewTestLogger returns a logrus Logger which writes to t.Log at the given
// level.
func NewTestLogger(t testing.TB, level logrus.Level) *logrus.Logger {
	w := &testWriter{t: t}
	t.Cleanup(func() { atomic.StoreInt32(&w.done, 1) })

	logger := logrus.New()
	logger.Out = w
	logger.Level = level
	return logger
}

// NewTestEntry returns an Entry of a test logger, with its prefix field set.
func NewTestEntry(t testing.TB, level logrus.Level, prefix string) *logrus.Entry {
	return NewTestLogger(t, level).WithField("prefix", prefix)
}
