package tracking

import (
	"context"

	"github.com/tphakala/birdclef-go/internal/datastore"
)

// DatastoreSink records runs, metric points and checkpoints in a datastore
type DatastoreSink struct {
	store datastore.Interface
}

// NewDatastoreSink returns a sink writing to store. The store is opened on Start.
func NewDatastoreSink(store datastore.Interface) *DatastoreSink {
	return &DatastoreSink{store: store}
}

func (s *DatastoreSink) Name() string { return "datastore" }

func (s *DatastoreSink) Start(ctx context.Context, run *Run) error {
	if err := s.store.Open(); err != nil {
		return err
	}
	return s.store.CreateRun(ctx, &datastore.Run{
		RunID:     run.ID,
		Name:      run.Name,
		Node:      run.Node,
		Config:    run.Config,
		StartedAt: run.StartedAt,
	})
}

func (s *DatastoreSink) Log(ctx context.Context, run *Run, step int, values map[string]float64) error {
	return s.store.SaveMetrics(ctx, run.ID, step, values)
}

func (s *DatastoreSink) Checkpoint(ctx context.Context, run *Run, ckpt Checkpoint) error {
	return s.store.SaveCheckpoint(ctx, &datastore.CheckpointRecord{
		RunID: run.ID,
		Epoch: ckpt.Epoch,
		Step:  ckpt.Step,
		Score: ckpt.Score,
		Path:  ckpt.Path,
	})
}

func (s *DatastoreSink) Finish(ctx context.Context, run *Run, status string) error {
	return s.store.FinishRun(ctx, run.ID, status)
}

func (s *DatastoreSink) Close() error { return s.store.Close() }
