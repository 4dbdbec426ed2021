package logger

import (
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// New builds a logger writing to out. format is "json" or "text"; an
// unknown level falls back to info with a warning.
func New(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	if out == nil {
		out = os.Stdout
	}
	log.SetOutput(out)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if level == "" {
		level = "info"
	}
	if lvl, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", level).Warn("Invalid LOG_LEVEL, using INFO")
	}
	return log
}

// Init builds the process logger on stdout.
func Init(level, format string) *logrus.Logger {
	return New(level, format, os.Stdout)
}

// WithRun tags every line of one pull with a fresh run id.
func WithRun(log *logrus.Logger, tool string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"tool":   tool,
		"run_id": uuid.NewString(),
	})
}
