package log

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newDiscardEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestNewBadgerLogrusAdapter(t *testing.T) {
	adapter := NewBadgerLogrusAdapter(newDiscardEntry())
	assert.NotNil(t, adapter)
}

func TestBadgerLogrusAdapter_Methods(t *testing.T) {
	adapter := NewBadgerLogrusAdapter(newDiscardEntry())

	assert.NotPanics(t, func() { adapter.Errorf("error %s", "test") })
	assert.NotPanics(t, func() { adapter.Warningf("warning %d", 42) })
	assert.NotPanics(t, func() { adapter.Infof("info %v", true) })
	assert.NotPanics(t, func() { adapter.Debugf("debug") })
}

func TestPgxLogrusAdapter_LevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.WarnLevel)
	adapter := NewPgxLogrusAdapter(logrus.NewEntry(logger))

	adapter.Log(context.Background(), tracelog.LogLevelInfo, "Query", map[string]any{"sql": "SELECT 1"})
	assert.Empty(t, buf.String(), "info is demoted below warn")

	adapter.Log(context.Background(), tracelog.LogLevelError, "Query", map[string]any{"sql": "SELECT 1"})
	assert.Contains(t, buf.String(), "level=error")
	assert.Contains(t, buf.String(), `sql="SELECT 1"`)
}

func TestPgxLogLevel(t *testing.T) {
	assert.Equal(t, tracelog.LogLevelTrace, PgxLogLevel(logrus.TraceLevel))
	assert.Equal(t, tracelog.LogLevelInfo, PgxLogLevel(logrus.DebugLevel))
	assert.Equal(t, tracelog.LogLevelWarn, PgxLogLevel(logrus.InfoLevel))
	assert.Equal(t, tracelog.LogLevelWarn, PgxLogLevel(logrus.WarnLevel))
	assert.Equal(t, tracelog.LogLevelError, PgxLogLevel(logrus.ErrorLevel))
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l := New("debug", &buf)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	buf.Reset()
	l = New("loud", &buf)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	assert.Contains(t, buf.String(), "Invalid log level")
}
