package core

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the logger used across core. Every
// subsystem receives this via constructor injection rather than reaching
// for a global.
func NewLogger(level logrus.Level) *logrus.Logger {
	lg := logrus.New()
	lg.SetOutput(os.Stderr)
	lg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lg.SetLevel(level)
	return lg
}
