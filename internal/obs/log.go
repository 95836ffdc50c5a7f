package obs

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	loggerOnce sync.Once
	logger     *logrus.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *logrus.Logger {
	loggerOnce.Do(func() {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetLevel(logrus.InfoLevel)
		logger.SetOutput(os.Stdout)
	})
	return logger
}

// Warn records a degraded-but-recovered path with component context.
// Detector failures and treasury chain lookups log here instead of
// failing the caller.
func Warn(component, msg string, err error, fields map[string]any) {
	entry := Logger().WithField("component", component)
	if err != nil {
		entry = entry.WithError(err)
	}
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Warn(msg)
}
