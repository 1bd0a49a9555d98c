// Package log holds logger construction and adapters that route third-party logging into logrus.
package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New creates a text logger writing to out at the given level.
// An unparseable level falls back to info with a warning.
func New(levelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", levelStr, err)
		return log
	}
	log.SetLevel(level)
	log.Debugf("Log level set to: %s", level.String())
	return log
}
