package chunker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdclef-go/internal/dataset"
	"github.com/tphakala/birdclef-go/internal/myaudio"
)

func offsets(rows []dataset.ChunkRow) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Offset
	}
	return out
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		label dataset.StrongLabel
		opts  Options
		want  []float64
	}{
		{
			name:  "long event slides without overlap",
			label: dataset.StrongLabel{File: "a.wav", Offset: 0, Duration: 12},
			opts:  DefaultOptions(),
			want:  []float64{0, 5},
		},
		{
			name:  "long event with half step",
			label: dataset.StrongLabel{File: "a.wav", Offset: 2, Duration: 8},
			opts:  Options{ChunkDuration: 5, ChunkCount: 5, SlideStep: 2.5},
			want:  []float64{2, 4.5},
		},
		{
			name:  "short event gets count windows containing it",
			label: dataset.StrongLabel{File: "a.wav", Offset: 10, Duration: 1},
			opts:  DefaultOptions(),
			want:  []float64{6, 7, 8, 9, 10},
		},
		{
			name:  "short event near start is clamped at zero",
			label: dataset.StrongLabel{File: "a.wav", Offset: 1, Duration: 1},
			opts:  DefaultOptions(),
			want:  []float64{0, 0.25, 0.5, 0.75, 1},
		},
		{
			name:  "short event near clip end is clamped to clip length",
			label: dataset.StrongLabel{File: "a.wav", Offset: 28, Duration: 1, ClipLength: 30},
			opts:  DefaultOptions(),
			want:  []float64{24, 24.25, 24.5, 24.75, 25},
		},
		{
			name:  "single window is centered",
			label: dataset.StrongLabel{File: "a.wav", Offset: 10, Duration: 1},
			opts:  Options{ChunkDuration: 5, ChunkCount: 1},
			want:  []float64{8},
		},
		{
			name:  "event spanning exactly one chunk",
			label: dataset.StrongLabel{File: "a.wav", Offset: 3, Duration: 5},
			opts:  DefaultOptions(),
			want:  []float64{3},
		},
		{
			name:  "only slide keeps a short event as one window",
			label: dataset.StrongLabel{File: "a.wav", Offset: 10, Duration: 1},
			opts:  Options{ChunkDuration: 5, ChunkCount: 5, OnlySlide: true},
			want:  []float64{10},
		},
		{
			name:  "recording shorter than chunk",
			label: dataset.StrongLabel{File: "a.wav", Offset: 0, Duration: 1, ClipLength: 3},
			opts:  DefaultOptions(),
			want:  []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rows := Generate([]dataset.StrongLabel{tt.label}, tt.opts)
			assert.Equal(t, tt.want, offsets(rows))
			for _, r := range rows {
				assert.InDelta(t, tt.opts.ChunkDuration, r.Duration, 1e-12)
				if !tt.opts.OnlySlide && tt.label.Duration < tt.opts.ChunkDuration {
					assert.LessOrEqual(t, r.Offset, tt.label.Offset+1e-9, "window starts before the event")
					assert.GreaterOrEqual(t, r.Offset+r.Duration, tt.label.End()-1e-9, "window ends after the event")
				}
			}
		})
	}
}

func TestGenerateDeduplicatesAndIndexesPerFile(t *testing.T) {
	t.Parallel()

	labels := []dataset.StrongLabel{
		{File: "a.wav", Label: "amapar", Offset: 0, Duration: 10},
		{File: "a.wav", Label: "amapar", Offset: 5, Duration: 5},
		{File: "b.wav", Label: "blfnun", Offset: 0, Duration: 5},
		{File: "b.wav", Label: "blfnun", Offset: 5, Duration: 5},
	}

	rows := Generate(labels, DefaultOptions())
	require.Len(t, rows, 4)

	assert.Equal(t, []float64{0, 5, 0, 5}, offsets(rows))
	assert.Equal(t, []int{1, 2, 1, 2}, []int{rows[0].Index, rows[1].Index, rows[2].Index, rows[3].Index})
	assert.Equal(t, "blfnun", rows[2].Label)
}

func TestGenerateZeroDuration(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Generate([]dataset.StrongLabel{{File: "a.wav", Duration: 3}}, Options{}))
}

func writeConstant(t *testing.T, path string, seconds float64) {
	t.Helper()
	const sr = 8000
	samples := make([]float32, int(seconds*sr))
	for i := range samples {
		samples[i] = 0.25
	}
	require.NoError(t, myaudio.WriteWAV(path, &myaudio.Clip{Samples: samples, SampleRate: sr}))
}

func TestExport(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConstant(t, filepath.Join(root, "amapar", "XC100.wav"), 12)

	rows := []dataset.ChunkRow{
		{File: "XC100.wav", Label: "amapar", Offset: 0, Duration: 5, Index: 1},
		{File: "XC100.wav", Label: "amapar", Offset: 5, Duration: 5, Index: 2},
		{File: "XC100.wav", Label: "amapar", Offset: 10, Duration: 5, Index: 3},
		{File: "XC404.wav", Label: "amapar", Offset: 0, Duration: 5, Index: 1},
	}

	stats, err := Export(context.Background(), root, rows, ExportOptions{OutputDir: "chunks", ChunkDuration: 5, Jobs: 2})
	require.NoError(t, err)
	assert.Equal(t, ExportStats{Written: 2, Rejected: 1, Failed: 1}, stats)

	for _, idx := range []int{1, 2} {
		path := ChunkPath(root, "chunks", rows[idx-1])
		ms, err := myaudio.DurationMs(path)
		require.NoError(t, err)
		assert.Equal(t, 5000, ms)
	}
	assert.Equal(t, filepath.Join(root, "chunks", "amapar", "XC100_1.wav"), ChunkPath(root, "chunks", rows[0]))
	assert.NoFileExists(t, ChunkPath(root, "chunks", rows[2]))

	_, err = Export(context.Background(), root, rows, ExportOptions{OutputDir: "chunks"})
	require.Error(t, err)
}

func TestExportCancelled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConstant(t, filepath.Join(root, "amapar", "XC1.wav"), 6)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Export(ctx, root, []dataset.ChunkRow{{File: "XC1.wav", Label: "amapar", Duration: 5, Index: 1}},
		ExportOptions{OutputDir: "chunks", ChunkDuration: 5})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDeleteChunksWithLength(t *testing.T) {
	t.Parallel()

	chunkDir := t.TempDir()
	writeConstant(t, filepath.Join(chunkDir, "amapar", "a_1.wav"), 5)
	writeConstant(t, filepath.Join(chunkDir, "amapar", "a_2.wav"), 3)
	writeConstant(t, filepath.Join(chunkDir, "blfnun", "b_1.wav"), 3)
	require.NoError(t, os.WriteFile(filepath.Join(chunkDir, "blfnun", "notes.txt"), []byte("x"), 0o644))

	deleted, err := DeleteChunksWithLength(chunkDir, 3*time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	assert.FileExists(t, filepath.Join(chunkDir, "amapar", "a_1.wav"))
	assert.NoFileExists(t, filepath.Join(chunkDir, "amapar", "a_2.wav"))
	assert.NoFileExists(t, filepath.Join(chunkDir, "blfnun", "b_1.wav"))
	assert.FileExists(t, filepath.Join(chunkDir, "blfnun", "notes.txt"))

	_, err = DeleteChunksWithLength(filepath.Join(chunkDir, "missing"), time.Second, nil)
	require.Error(t, err)
}
