package trainer

import (
	"context"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/dataset"
	"github.com/tphakala/birdclef-go/internal/model"
	"github.com/tphakala/birdclef-go/internal/myaudio"
	"github.com/tphakala/birdclef-go/internal/tracking"
)

type logEntry struct {
	step   int
	values map[string]float64
}

// recordingSink keeps every event it receives
type recordingSink struct {
	mu          sync.Mutex
	logs        []logEntry
	checkpoints []tracking.Checkpoint
}

func (s *recordingSink) Name() string                                        { return "recording" }
func (s *recordingSink) Start(context.Context, *tracking.Run) error          { return nil }
func (s *recordingSink) Finish(context.Context, *tracking.Run, string) error { return nil }
func (s *recordingSink) Close() error                                        { return nil }

func (s *recordingSink) Log(_ context.Context, _ *tracking.Run, step int, values map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, logEntry{step, values})
	return nil
}

func (s *recordingSink) Checkpoint(_ context.Context, _ *tracking.Run, ckpt tracking.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints = append(s.checkpoints, ckpt)
	return nil
}

func (s *recordingSink) withKey(key string) []logEntry {
	var out []logEntry
	for _, e := range s.logs {
		if _, ok := e.values[key]; ok {
			out = append(out, e)
		}
	}
	return out
}

func testSettings(t *testing.T) *conf.TrainSettings {
	t.Helper()
	return &conf.TrainSettings{
		CheckpointDir:  t.TempDir(),
		Epochs:         3,
		TrainBatchSize: 8,
		ValidBatchSize: 5,
		Seed:           1,
		LoggingFreq:    2,
		ValidFreq:      4,
		LearningRate:   0.01,
		MinLR:          1e-4,
		TMax:           10,
		Hidden:         8,
		Dropout:        0.1,
		PadN:           5,
		Backbone:       conf.BackboneMel,
	}
}

// toySamples draws n samples per class around a class specific mean
func toySamples(n, classes, dim int, seed uint64) []dataset.Sample {
	rng := rand.New(rand.NewPCG(seed, 3))
	var out []dataset.Sample
	for c := range classes {
		for range n {
			f := make([]float32, dim)
			for j := range f {
				f[j] = float32(rng.NormFloat64() * 0.2)
			}
			f[c%dim] += 2
			out = append(out, dataset.Sample{Features: f, Label: c})
		}
	}
	return out
}

func newTestTrainer(t *testing.T, s *conf.TrainSettings, classes []string, numClasses int) (*Trainer, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	tracker := tracking.NewTracker(context.Background(), &tracking.Run{ID: "id", Name: RunName(s)}, sink)
	tr, err := New(s, model.FeatureConfig{Backbone: conf.BackboneMel}, classes, numClasses, 4, tracker, nil)
	require.NoError(t, err)
	return tr, sink
}

func TestRunName(t *testing.T) {
	t.Parallel()

	s := &conf.TrainSettings{
		Backbone: conf.BackboneMel, Epochs: 10, TrainBatchSize: 128, ValidBatchSize: 128,
		SampleRate: 32000, HopLength: 512, MaxTime: 5, NMels: 224, NFFT: 1024, Seed: 0,
	}
	assert.Equal(t, "MEL-10-128-128-32000-512-5-224-1024-0", RunName(s))

	s.Backbone = conf.BackboneTFLite
	s.MaxTime = 2.5
	assert.Equal(t, "TFLITE-10-128-128-32000-512-2.5-224-1024-0", RunName(s))
}

func TestFitLogsValidatesAndCheckpoints(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	classes := []string{"a", "b", "c"}
	tr, sink := newTestTrainer(t, s, classes, 4)

	train := toySamples(12, 3, 4, 1) // 36 samples, 5 batches per epoch
	valid := toySamples(3, 3, 4, 2)

	summary, err := tr.Fit(context.Background(), train, valid)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Epochs)
	assert.Equal(t, 15, summary.Steps)
	assert.Greater(t, summary.BestScore, 0.0)
	assert.LessOrEqual(t, summary.BestScore, 1.0)
	assert.FileExists(t, summary.BestCheckpoint)

	// batches 0, 2 and 4 of every epoch
	trainLogs := sink.withKey(KeyTrainLoss)
	require.Len(t, trainLogs, 9)
	assert.Equal(t, 0, trainLogs[0].step)
	assert.InDelta(t, 0, trainLogs[0].values[KeyStep], 0)
	for _, e := range trainLogs {
		assert.GreaterOrEqual(t, e.values[KeyTrainAccuracy], 0.0)
		assert.LessOrEqual(t, e.values[KeyTrainAccuracy], 100.0)
	}

	// steps 0, 4, 8 and 12 plus one per epoch
	validLogs := sink.withKey(KeyValidCMAP)
	require.Len(t, validLogs, 7)
	assert.Equal(t, 0, validLogs[0].step)

	// a checkpoint is written exactly when cmAP strictly improves
	best := 0.0
	improvements := 0
	for _, e := range validLogs {
		if e.values[KeyValidCMAP] > best {
			best = e.values[KeyValidCMAP]
			improvements++
		}
	}
	assert.Len(t, sink.checkpoints, improvements)
	assert.InDelta(t, best, summary.BestScore, 0)
	require.NotEmpty(t, sink.checkpoints)
	last := sink.checkpoints[len(sink.checkpoints)-1]
	assert.Equal(t, summary.BestCheckpoint, last.Path)

	ckpt, err := model.LoadCheckpoint(summary.BestCheckpoint)
	require.NoError(t, err)
	assert.Equal(t, classes, ckpt.Classes)
	assert.Equal(t, 4, ckpt.Head.Out)
	assert.InDelta(t, best, ckpt.Score, 0)
}

func TestFitLearnsSeparableClasses(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.Epochs = 20
	s.ValidFreq = 1000
	tr, _ := newTestTrainer(t, s, []string{"a", "b"}, 2)

	summary, err := tr.Fit(context.Background(), toySamples(20, 2, 4, 5), toySamples(5, 2, 4, 6))
	require.NoError(t, err)
	assert.InDelta(t, 1, summary.BestScore, 1e-9)
}

func TestFitErrors(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	tr, _ := newTestTrainer(t, s, []string{"a"}, 1)

	_, err := tr.Fit(context.Background(), nil, toySamples(1, 1, 4, 1))
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Fit(ctx, toySamples(4, 1, 4, 1), toySamples(1, 1, 4, 1))
	require.ErrorIs(t, err, context.Canceled)

	tracker := tracking.NewTracker(context.Background(), &tracking.Run{Name: "x"})
	_, err = New(s, model.FeatureConfig{}, []string{"a", "b"}, 1, 4, tracker, nil)
	require.Error(t, err)
}

func writeTone(t *testing.T, path string, freq float64) {
	t.Helper()
	const sr = 8000
	samples := make([]float32, sr/2)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/sr))
	}
	require.NoError(t, myaudio.WriteWAV(path, &myaudio.Clip{Samples: samples, SampleRate: sr}))
}

func writeToneDataset(t *testing.T, root string) {
	t.Helper()
	for species, freq := range map[string]float64{"eurbla": 500, "comsan": 2500} {
		for i := range 5 {
			writeTone(t, filepath.Join(root, species, species+"_"+string(rune('a'+i))+".wav"), freq+float64(i*20))
		}
	}
}

func TestPrepareData(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeToneDataset(t, root)

	s := &conf.TrainSettings{TrainDir: root, NumFold: 5, Fold: 0, Seed: 3}
	data, err := PrepareData(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"comsan", "eurbla"}, data.Classes)
	assert.Equal(t, 2, data.NumClasses)
	assert.Len(t, data.Valid, 2)
	assert.Len(t, data.Train, 8)

	s.NumClasses = 1
	_, err = PrepareData(s)
	require.Error(t, err)

	validRoot := t.TempDir()
	writeTone(t, filepath.Join(validRoot, "eurbla", "v.wav"), 500)
	writeTone(t, filepath.Join(validRoot, "unknown", "v.wav"), 500)
	s.NumClasses = 264
	s.ValidDir = validRoot
	data, err = PrepareData(s)
	require.NoError(t, err)
	assert.Equal(t, 264, data.NumClasses)
	assert.Len(t, data.Train, 10)
	require.Len(t, data.Valid, 1)
	assert.Equal(t, 1, data.Valid[0].Label)
}

func TestCheckpointDirLock(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "ckpt")
	first, err := lockCheckpointDir(dir)
	require.NoError(t, err)

	_, err = lockCheckpointDir(dir)
	require.Error(t, err)

	require.NoError(t, first.Unlock())
	second, err := lockCheckpointDir(dir)
	require.NoError(t, err)
	require.NoError(t, second.Unlock())
}

// tinyRunSettings trains a small mel head on the tone dataset at root
func tinyRunSettings(t *testing.T, root string) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Main.Jobs = 2
	settings.Train = conf.TrainSettings{
		TrainDir:       root,
		CheckpointDir:  filepath.Join(t.TempDir(), "ckpt"),
		NumFold:        5,
		Epochs:         3,
		TrainBatchSize: 4,
		ValidBatchSize: 4,
		SampleRate:     8000,
		HopLength:      128,
		MaxTime:        0.5,
		NMels:          16,
		NFFT:           256,
		LoggingFreq:    1,
		ValidFreq:      100,
		LearningRate:   0.01,
		MinLR:          1e-4,
		TMax:           10,
		Hidden:         8,
		Dropout:        0.1,
		PadN:           5,
		Backbone:       conf.BackboneMel,
	}
	return settings
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeToneDataset(t, root)

	settings := tinyRunSettings(t, root)
	summary, err := Run(context.Background(), settings, nil)
	require.NoError(t, err)
	assert.Equal(t, "MEL-3-4-4-8000-128-0.5-16-256-0", summary.RunName)
	assert.Equal(t, 6, summary.Steps)
	assert.FileExists(t, summary.BestCheckpoint)

	_, err = os.Stat(filepath.Join(settings.Train.CheckpointDir, lockName))
	require.NoError(t, err)
}
