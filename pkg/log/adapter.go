package log

import (
	"context"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/sirupsen/logrus"
)

// BadgerLogrusAdapter implements badger.Logger interface using logrus
type BadgerLogrusAdapter struct {
	*logrus.Entry // Embed logrus Entry
}

// NewBadgerLogrusAdapter creates a new adapter
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry}
}

// Errorf logs an error message
func (l *BadgerLogrusAdapter) Errorf(f string, v ...interface{}) { l.Entry.Errorf(f, v...) }

// Warningf logs a warning message
func (l *BadgerLogrusAdapter) Warningf(f string, v ...interface{}) { l.Entry.Warningf(f, v...) }

// Infof logs an info message
func (l *BadgerLogrusAdapter) Infof(f string, v ...interface{}) { l.Entry.Infof(f, v...) }

// Debugf logs a debug message. Badger is chatty at debug level, so it is demoted to trace.
func (l *BadgerLogrusAdapter) Debugf(f string, v ...interface{}) { l.Entry.Tracef(f, v...) }

// PgxLogrusAdapter implements tracelog.Logger so pgx query tracing goes through logrus
type PgxLogrusAdapter struct {
	entry *logrus.Entry
}

// NewPgxLogrusAdapter creates a new adapter
func NewPgxLogrusAdapter(entry *logrus.Entry) *PgxLogrusAdapter {
	return &PgxLogrusAdapter{entry: entry}
}

// Log implements tracelog.Logger
func (l *PgxLogrusAdapter) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	entry := l.entry.WithFields(logrus.Fields(data))
	switch level {
	case tracelog.LogLevelError:
		entry.Error(msg)
	case tracelog.LogLevelWarn:
		entry.Warn(msg)
	case tracelog.LogLevelInfo:
		entry.Debug(msg) // pgx logs every query at info
	default:
		entry.Trace(msg)
	}
}

// PgxLogLevel maps the logger's level onto the closest pgx trace level
func PgxLogLevel(level logrus.Level) tracelog.LogLevel {
	switch {
	case level >= logrus.TraceLevel:
		return tracelog.LogLevelTrace
	case level >= logrus.DebugLevel:
		return tracelog.LogLevelInfo
	case level >= logrus.WarnLevel:
		return tracelog.LogLevelWarn
	default:
		return tracelog.LogLevelError
	}
}
