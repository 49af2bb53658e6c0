package model

import (
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/errors"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(42, 7))
}

func smallMelConfig() FeatureConfig {
	return FeatureConfig{
		Backbone:   conf.BackboneMel,
		SampleRate: 8000,
		MaxTime:    0.5,
		NFFT:       256,
		HopLength:  128,
		NMels:      16,
	}
}

func tone(freq float64, n, sr int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sr)))
	}
	return out
}

func TestMelBackboneShape(t *testing.T) {
	t.Parallel()

	b, err := NewBackbone(smallMelConfig(), RuntimeOptions{})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, conf.BackboneMel, b.Name())
	assert.Equal(t, 4000, b.NumSamples())
	assert.Equal(t, 48, b.Dim())
	assert.Equal(t, "mel:8000:256:128:16:0.5", b.Key())

	feat, err := b.Embed(tone(1000, b.NumSamples(), b.SampleRate()))
	require.NoError(t, err)
	require.Len(t, feat, b.Dim())
	for _, v := range feat {
		assert.False(t, math.IsNaN(float64(v)))
	}

	_, err = b.Embed(nil)
	require.Error(t, err)
}

func TestNewBackboneErrors(t *testing.T) {
	t.Parallel()

	cfg := smallMelConfig()
	cfg.Backbone = "wav2vec"
	_, err := NewBackbone(cfg, RuntimeOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	cfg = smallMelConfig()
	cfg.MaxTime = 0
	_, err = NewBackbone(cfg, RuntimeOptions{})
	require.Error(t, err)

	_, err = NewBackbone(FeatureConfig{Backbone: conf.BackboneTFLite, ModelPath: filepath.Join(t.TempDir(), "missing.tflite")}, RuntimeOptions{})
	require.Error(t, err)
}

func TestCrossEntropy(t *testing.T) {
	t.Parallel()

	loss, grad, err := CrossEntropy([][]float64{{0, 0}}, []int{1})
	require.NoError(t, err)
	assert.InDelta(t, math.Ln2, loss, 1e-12)
	assert.InDelta(t, 0.5, grad[0][0], 1e-12)
	assert.InDelta(t, -0.5, grad[0][1], 1e-12)

	// large logits stay finite
	loss, _, err = CrossEntropy([][]float64{{1000, 0}, {0, 1000}}, []int{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0, loss, 1e-9)

	_, _, err = CrossEntropy([][]float64{{0, 0}}, []int{2})
	require.Error(t, err)
}

func TestCosineAnnealingEndpoints(t *testing.T) {
	t.Parallel()

	opt := NewAdam(1e-3)
	sched := NewCosineAnnealing(opt, 10, 1e-6)

	assert.InDelta(t, 1e-3, sched.LRAt(0), 1e-15)
	assert.InDelta(t, 1e-6, sched.LRAt(10), 1e-15)
	assert.InDelta(t, (1e-3+1e-6)/2, sched.LRAt(5), 1e-12)

	prev := sched.LR()
	for range 10 {
		sched.Step()
		assert.LessOrEqual(t, sched.LR(), prev)
		prev = sched.LR()
	}
	assert.InDelta(t, 1e-6, sched.LR(), 1e-15)
}

func TestAdamRejectsMismatchedGradients(t *testing.T) {
	t.Parallel()

	opt := NewAdam(0.1)
	require.Error(t, opt.Step([][]float64{{1}}, nil))
	require.Error(t, opt.Step([][]float64{{1, 2}}, [][]float64{{1}}))

	p := [][]float64{{1}}
	require.NoError(t, opt.Step(p, [][]float64{{1}}))
	// first bias corrected Adam step moves by lr regardless of gradient scale
	assert.InDelta(t, 0.9, p[0][0], 1e-6)
}

// separable toy problem: the class is the index of the largest feature
func toyData(n, classes int, rng *rand.Rand) ([][]float32, []int) {
	x := make([][]float32, n)
	y := make([]int, n)
	for i := range n {
		y[i] = i % classes
		x[i] = make([]float32, classes)
		for j := range x[i] {
			x[i][j] = float32(rng.NormFloat64() * 0.1)
		}
		x[i][y[i]] += 1
	}
	return x, y
}

func TestTrainingReducesLoss(t *testing.T) {
	t.Parallel()

	for _, hidden := range []int{0, 16} {
		rng := testRand()
		x, y := toyData(60, 3, rng)

		head, err := NewMLP(3, hidden, 3, rng)
		require.NoError(t, err)
		head.FitStandardizer(x)
		opt := NewAdam(0.05)

		first, _, grads, err := head.TrainStep(x, y, 0, rng)
		require.NoError(t, err)
		require.Len(t, grads, len(head.Params()))
		require.NoError(t, opt.Step(head.Params(), grads))

		var last float64
		for range 100 {
			last, _, grads, err = head.TrainStep(x, y, 0.1, rng)
			require.NoError(t, err)
			require.NoError(t, opt.Step(head.Params(), grads))
		}
		assert.Less(t, last, first/2, "hidden=%d", hidden)

		logits, err := head.Logits(x)
		require.NoError(t, err)
		correct := 0
		for i, row := range logits {
			best := 0
			for j := range row {
				if row[j] > row[best] {
					best = j
				}
			}
			if best == y[i] {
				correct++
			}
		}
		assert.Equal(t, len(x), correct, "hidden=%d", hidden)
	}
}

func TestTrainStepValidation(t *testing.T) {
	t.Parallel()

	head, err := NewMLP(2, 4, 2, testRand())
	require.NoError(t, err)

	_, _, _, err = head.TrainStep([][]float32{{1, 2}}, []int{0, 1}, 0, testRand())
	require.Error(t, err)
	_, _, _, err = head.TrainStep([][]float32{{1, 2}}, []int{0}, 1, testRand())
	require.Error(t, err)
	_, err = head.Logits([][]float32{{1, 2, 3}})
	require.Error(t, err)

	_, err = NewMLP(0, 1, 1, testRand())
	require.Error(t, err)
}

func TestFitStandardizerConstantFeature(t *testing.T) {
	t.Parallel()

	head, err := NewMLP(2, 0, 2, testRand())
	require.NoError(t, err)
	head.FitStandardizer([][]float32{{1, 5}, {3, 5}})

	assert.InDelta(t, 2, head.Mean[0], 1e-12)
	assert.InDelta(t, 1, head.Std[0], 1e-12)
	assert.InDelta(t, 5, head.Mean[1], 1e-12)
	assert.InDelta(t, 1, head.Std[1], 1e-12)
}

func TestCheckpointRoundTrip(t *testing.T) {
	t.Parallel()

	head, err := NewMLP(4, 3, 2, testRand())
	require.NoError(t, err)
	head.FitStandardizer([][]float32{{0, 1, 2, 3}, {1, 2, 3, 5}})

	path := filepath.Join(t.TempDir(), "ckpt", CheckpointName(3))
	assert.Equal(t, "model_3.ckpt", filepath.Base(path))

	in := &Checkpoint{
		Epoch:   3,
		Step:    120,
		Score:   0.71,
		Classes: []string{"comsan", "eurbla"},
		Feature: smallMelConfig(),
		Head:    head.State(),
	}
	require.NoError(t, SaveCheckpoint(path, in))

	out, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, in.Classes, out.Classes)
	assert.Equal(t, in.Feature, out.Feature)
	assert.InDelta(t, 0.71, out.Score, 0)

	restored, err := MLPFromState(out.Head)
	require.NoError(t, err)

	batch := [][]float32{{0.5, 1, 2, 4}}
	want, err := head.Logits(batch)
	require.NoError(t, err)
	got, err := restored.Logits(batch)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want[0], got[0], 1e-12)
}

func TestLoadCheckpointErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadCheckpoint(filepath.Join(t.TempDir(), "none.ckpt"))
	require.Error(t, err)

	bad := HeadState{In: 2, Out: 2, W2: []float64{1}}
	_, err = MLPFromState(bad)
	require.Error(t, err)
}
