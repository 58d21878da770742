// Package logging configures the process-wide structured logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the root logger: text output to stdout, level Info, full
// timestamps.
func New() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}

// Stage returns a logger scoped to one pipeline stage, so every log line it
// emits carries the stage name without the caller repeating it.
func Stage(log *logrus.Logger, stage string) *logrus.Entry {
	return log.WithField("stage", stage)
}

// Submission scopes an entry to one submission within a stage.
func Submission(entry *logrus.Entry, submissionID string) *logrus.Entry {
	return entry.WithField("submission_id", submissionID)
}
