package testutil

import (
	"io"

	"github.com/sirupsen/logrus"
)

// DiscardLogger returns an entry that writes nowhere.
func DiscardLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.ErrorLevel)
	return log.WithField("service", "test")
}
