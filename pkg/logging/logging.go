// Package logging constructs the process logger. Services receive a
// *logrus.Entry scoped with their component name instead of logging
// through package-level state.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

func New(environment string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if environment == "development" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
		return log
	}

	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})
	log.SetLevel(logrus.InfoLevel)
	return log
}

// Component tags an entry with the originating component name.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
