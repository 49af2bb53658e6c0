package model

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/errors"
)

// Checkpoint is a trained head together with what is needed to rebuild its inputs
type Checkpoint struct {
	Epoch     int
	Step      int
	Score     float64
	Classes   []string
	Feature   FeatureConfig
	Head      HeadState
	CreatedAt time.Time
}

// HeadState is the serializable form of an MLP
type HeadState struct {
	In, Hidden, Out int
	Mean, Std       []float64
	W1, B1          []float64
	W2, B2          []float64
}

// State captures the head's parameters
func (m *MLP) State() HeadState {
	s := HeadState{
		In: m.In, Hidden: m.Hidden, Out: m.Out,
		Mean: clone(m.Mean), Std: clone(m.Std),
		W2: clone(m.W2.RawMatrix().Data), B2: clone(m.B2),
	}
	if m.W1 != nil {
		s.W1 = clone(m.W1.RawMatrix().Data)
		s.B1 = clone(m.B1)
	}
	return s
}

// MLPFromState rebuilds a head
func MLPFromState(s HeadState) (*MLP, error) {
	fanIn := s.In
	if s.Hidden > 0 {
		fanIn = s.Hidden
		if len(s.W1) != s.Hidden*s.In || len(s.B1) != s.Hidden {
			return nil, fmt.Errorf("hidden layer has %d weights, want %d", len(s.W1), s.Hidden*s.In)
		}
	}
	if len(s.W2) != s.Out*fanIn || len(s.B2) != s.Out || len(s.Mean) != s.In || len(s.Std) != s.In {
		return nil, fmt.Errorf("head state does not match shape %d-%d-%d", s.In, s.Hidden, s.Out)
	}

	m := &MLP{
		In: s.In, Hidden: s.Hidden, Out: s.Out,
		Mean: clone(s.Mean), Std: clone(s.Std),
		W2: mat.NewDense(s.Out, fanIn, clone(s.W2)), B2: clone(s.B2),
	}
	if s.Hidden > 0 {
		m.W1 = mat.NewDense(s.Hidden, s.In, clone(s.W1))
		m.B1 = clone(s.B1)
	}
	return m, nil
}

func clone(s []float64) []float64 {
	return append([]float64(nil), s...)
}

// CheckpointName returns model_<epoch>.ckpt
func CheckpointName(epoch int) string {
	return fmt.Sprintf("model_%d.ckpt", epoch)
}

// SaveCheckpoint writes ckpt to path through a temporary file
func SaveCheckpoint(path string, ckpt *Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return checkpointError(err, path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".ckpt-*")
	if err != nil {
		return checkpointError(err, path)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(ckpt); err != nil {
		tmp.Close()
		return checkpointError(fmt.Errorf("encode checkpoint: %w", err), path)
	}
	if err := tmp.Close(); err != nil {
		return checkpointError(err, path)
	}
	if err := conf.MoveFile(tmp.Name(), path); err != nil {
		return checkpointError(err, path)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint written by SaveCheckpoint
func LoadCheckpoint(path string) (*Checkpoint, error) {
	file, err := os.Open(path) //nolint:gosec // user supplied checkpoint
	if err != nil {
		return nil, checkpointError(err, path)
	}
	defer file.Close()

	var ckpt Checkpoint
	if err := gob.NewDecoder(file).Decode(&ckpt); err != nil {
		return nil, errors.New(fmt.Errorf("decode checkpoint: %w", err)).
			Component("model").
			Category(errors.CategoryModelLoad).
			FileContext(path, 0).
			Build()
	}
	return &ckpt, nil
}

func checkpointError(err error, path string) error {
	return errors.New(err).
		Component("model").
		Category(errors.CategoryFileIO).
		Context("operation", "save_checkpoint").
		FileContext(path, 0).
		Build()
}
