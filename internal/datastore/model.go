// model.go defines the records kept for training runs
package datastore

import "time"

// Run is one training run
type Run struct {
	ID             uint   `gorm:"primaryKey"`
	RunID          string `gorm:"uniqueIndex;size:64;not null"`
	Name           string `gorm:"index:idx_runs_name;size:255"`
	Node           string `gorm:"size:255"`
	Config         string `gorm:"type:text"` // YAML snapshot of the settings
	Status         string `gorm:"size:20"`
	BestScore      float64
	BestCheckpoint string
	StartedAt      time.Time `gorm:"index"`
	FinishedAt     *time.Time
	Metrics        []MetricPoint      `gorm:"foreignKey:RunID;references:RunID;constraint:OnDelete:CASCADE"`
	Checkpoints    []CheckpointRecord `gorm:"foreignKey:RunID;references:RunID;constraint:OnDelete:CASCADE"`
}

// MetricPoint is one logged value at a step
type MetricPoint struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"index:idx_metric_run_key_step;size:64;not null"`
	Key       string `gorm:"column:metric_key;index:idx_metric_run_key_step;size:64;not null"`
	Step      int    `gorm:"index:idx_metric_run_key_step"`
	Value     float64
	CreatedAt time.Time
}

// CheckpointRecord is a checkpoint written during a run
type CheckpointRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"index;size:64;not null"`
	Epoch     int
	Step      int
	Score     float64
	Path      string
	CreatedAt time.Time
}

// Run statuses
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)
