// File: selector/logger.go
// Author: momentics <momentics@gmail.com>

package selector

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the selector package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the selector package's logger.
// This must be called before any selector operations.
func SetLogger(l *zap.Logger) {
	logger = l
}
