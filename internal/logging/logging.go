// Package logging sets up the shared logrus logger used across the daemon
// and CLI. Kept deliberately small: one constructor, no package-level logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logger. debug raises the level to Debug; text formatting is
// used when stderr is a terminal, JSON otherwise (journald doesn't care
// either way, but this keeps interactive runs readable).
func New(debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level := logrus.InfoLevel
	if debug {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	if isTerminal(os.Stderr) {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return log
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
