// Package dataset handles the on-disk data layout: strong label and chunk
// CSV files, species folder datasets, fold splits and parallel feature loading.
package dataset

import "github.com/tphakala/birdclef-go/internal/logger"

// GetLogger returns the dataset package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("dataset")
}
