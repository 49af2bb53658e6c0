// Package metrics provides Prometheus metrics for observability.
package metrics

import "github.com/tphakala/birdclef-go/internal/logger"

// GetLogger returns the metrics package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("metrics")
}
