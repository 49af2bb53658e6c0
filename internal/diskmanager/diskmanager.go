// Package diskmanager checks file system space before datasets are written.
package diskmanager

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tphakala/birdclef-go/internal/errors"
)

// wavHeaderBytes is the size of a canonical PCM WAV header
const wavHeaderBytes = 44

// DiskSpaceInfo holds detailed disk space information.
type DiskSpaceInfo struct {
	TotalBytes  uint64
	UsedBytes   uint64
	FreeBytes   uint64 // available to unprivileged users
	UsedPercent float64
}

// existingAncestor returns path or its closest parent that exists
func existingAncestor(path string) string {
	path = filepath.Clean(path)
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

// GetDetailedDiskUsage returns the usage of the file system that holds path.
// path does not need to exist yet.
func GetDetailedDiskUsage(path string) (DiskSpaceInfo, error) {
	target := existingAncestor(path)
	usage, err := disk.Usage(target)
	if err != nil {
		return DiskSpaceInfo{}, errors.New(fmt.Errorf("failed to get disk usage for '%s': %w", target, err)).
			Component("diskmanager").
			Category(errors.CategorySystem).
			Context("path", path).
			Build()
	}
	return DiskSpaceInfo{
		TotalBytes:  usage.Total,
		UsedBytes:   usage.Used,
		FreeBytes:   usage.Free,
		UsedPercent: usage.UsedPercent,
	}, nil
}

// EstimateWAVBytes returns the size of count 16-bit mono WAV files of the
// given length.
func EstimateWAVBytes(count int, seconds float64, sampleRate int) uint64 {
	if count <= 0 || seconds <= 0 || sampleRate <= 0 {
		return 0
	}
	perFile := wavHeaderBytes + uint64(seconds*float64(sampleRate))*2
	return uint64(count) * perFile
}

// EnsureFreeSpace returns an error when the file system holding path has
// less than need bytes available.
func EnsureFreeSpace(path string, need uint64) error {
	info, err := GetDetailedDiskUsage(path)
	if err != nil {
		return err
	}
	if info.FreeBytes < need {
		return errors.Newf("not enough free space for %s: need %d bytes, %d available", path, need, info.FreeBytes).
			Component("diskmanager").
			Category(errors.CategorySystem).
			Context("need_bytes", need).
			Context("free_bytes", info.FreeBytes).
			Build()
	}
	return nil
}
