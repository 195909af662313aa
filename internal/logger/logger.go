package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New creates the application logger with full timestamps.
// Unknown levels fall back to info.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}

// NewNop returns a logger that discards everything
func NewNop() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
