// Package observability provides Prometheus metrics for the birdclef-go toolkit.
package observability

import "github.com/tphakala/birdclef-go/internal/logger"

// GetLogger returns the observability package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("observability")
}
