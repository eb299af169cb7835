package node

import (
	"github.com/sirupsen/logrus"
)

// NewLogger builds a logrus.Logger at the given level (one of the strings
// accepted by ValidateConfig's log_level check). An unrecognized level
// falls back to info rather than failing, since by the time a logger is
// built the config has already passed validation.
func NewLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}
