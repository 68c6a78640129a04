// Package logging constructs the node's single logrus.FieldLogger,
// handed by reference into every component constructor (no global
// modules/library lookup, per the node's dependency-injection convention).
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.FieldLogger configured from the node's Logging
// config section: level (parsed via logrus.ParseLevel, defaulting to Info
// on an empty or invalid value) and an optional file destination, always
// also writing to stdout.
func New(level, file string) (logrus.FieldLogger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed := logrus.InfoLevel
	if level != "" {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			parsed = lvl
		}
	}
	log.SetLevel(parsed)

	out := io.Writer(os.Stdout)
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(os.Stdout, f)
	}
	log.SetOutput(out)

	return log, nil
}

// Component returns a child logger tagged with the component name, the
// only field every log line in this node carries.
func Component(base logrus.FieldLogger, name string) logrus.FieldLogger {
	return base.WithField("component", name)
}
