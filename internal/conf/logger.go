// Package conf provides configuration management for birdclef-go.
package conf

import "github.com/tphakala/birdclef-go/internal/logger"

// GetLogger returns the config package logger. It is resolved on every call
// so it follows the central logger installed after package init.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
