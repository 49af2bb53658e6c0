package model

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
)

// TFLiteBackbone runs a TFLite audio model, such as the BirdNET classifier,
// and uses its first output tensor as the feature vector. Input sample rate
// is taken from the model's known rate, input length from its input tensor.
type TFLiteBackbone struct {
	mu          sync.Mutex
	path        string
	model       *tflite.Model
	interpreter *tflite.Interpreter
	sampleRate  int
	numSamples  int
	dim         int
}

// birdNETSampleRate is the input rate of BirdNET models
const birdNETSampleRate = 48000

// NewTFLiteBackbone loads the model at path
func NewTFLiteBackbone(path string, opts RuntimeOptions) (*TFLiteBackbone, error) {
	start := time.Now()
	log := GetLogger()

	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, errors.New(fmt.Errorf("cannot load TensorFlow Lite model")).
			Component("model").
			Category(errors.CategoryModelLoad).
			ModelContext(path, conf.BackboneTFLite).
			Timing("model-load", time.Since(start)).
			Build()
	}

	threads := determineThreadCount(opts.Threads)
	options := tflite.NewInterpreterOptions()
	if opts.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // bounded by CPU count
		if delegate == nil {
			log.Warn("failed to create XNNPACK delegate, falling back to default CPU")
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, errors.New(fmt.Errorf("cannot create interpreter")).
			Component("model").
			Category(errors.CategoryModelInit).
			ModelContext(path, conf.BackboneTFLite).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, errors.New(fmt.Errorf("tensor allocation failed")).
			Component("model").
			Category(errors.CategoryModelInit).
			ModelContext(path, conf.BackboneTFLite).
			Build()
	}

	input := interpreter.GetInputTensor(0)
	output := interpreter.GetOutputTensor(0)
	b := &TFLiteBackbone{
		path:        path,
		model:       model,
		interpreter: interpreter,
		sampleRate:  birdNETSampleRate,
		numSamples:  input.Dim(input.NumDims() - 1),
		dim:         output.Dim(output.NumDims() - 1),
	}

	log.Info("TFLite backbone initialized",
		logger.String("model", filepath.Base(path)),
		logger.Int("threads", threads),
		logger.Int("input_samples", b.numSamples),
		logger.Int("features", b.dim),
		logger.Bool("xnnpack", opts.UseXNNPACK),
		logger.Duration("elapsed", time.Since(start)))

	return b, nil
}

func determineThreadCount(configured int) int {
	cpus := runtime.NumCPU()
	if configured <= 0 || configured > cpus {
		return cpus
	}
	return configured
}

func (b *TFLiteBackbone) Name() string { return conf.BackboneTFLite }

func (b *TFLiteBackbone) Key() string {
	return fmt.Sprintf("tflite:%s:%d", filepath.Base(b.path), b.numSamples)
}

func (b *TFLiteBackbone) SampleRate() int { return b.sampleRate }
func (b *TFLiteBackbone) NumSamples() int { return b.numSamples }
func (b *TFLiteBackbone) Dim() int        { return b.dim }

// Embed runs the interpreter on one waveform. Calls are serialized.
func (b *TFLiteBackbone) Embed(samples []float32) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.interpreter == nil {
		return nil, fmt.Errorf("interpreter closed")
	}

	input := b.interpreter.GetInputTensor(0)
	buf := input.Float32s()
	n := copy(buf, samples)
	clear(buf[n:])

	if status := b.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.New(fmt.Errorf("tensor invoke failed: %v", status)).
			Component("model").
			Category(errors.CategoryProcessing).
			ModelContext(b.path, conf.BackboneTFLite).
			Build()
	}

	features := make([]float32, b.dim)
	copy(features, b.interpreter.GetOutputTensor(0).Float32s())
	return features, nil
}

// Close releases the interpreter and model
func (b *TFLiteBackbone) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.interpreter != nil {
		b.interpreter.Delete()
		b.interpreter = nil
	}
	if b.model != nil {
		b.model.Delete()
		b.model = nil
	}
	return nil
}
