package diskmanager

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdclef-go/internal/errors"
)

func TestGetDetailedDiskUsage(t *testing.T) {
	t.Parallel()

	info, err := GetDetailedDiskUsage(filepath.Join(t.TempDir(), "not", "created", "yet"))
	require.NoError(t, err)
	assert.Positive(t, info.TotalBytes)
	assert.LessOrEqual(t, info.FreeBytes, info.TotalBytes)
}

func TestEstimateWAVBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(2*(44+5*32000*2)), EstimateWAVBytes(2, 5, 32000))
	assert.Zero(t, EstimateWAVBytes(0, 5, 32000))
	assert.Zero(t, EstimateWAVBytes(3, 0, 32000))
}

func TestEnsureFreeSpace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, EnsureFreeSpace(dir, 1))

	err := EnsureFreeSpace(dir, math.MaxUint64)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategorySystem))
}
