// interfaces.go defines the run store operations
package datastore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
	"github.com/tphakala/birdclef-go/internal/observability/metrics"
)

// Interface abstracts the underlying database implementation
type Interface interface {
	Open() error
	Close() error
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, runID, status string) error
	SaveMetrics(ctx context.Context, runID string, step int, values map[string]float64) error
	SaveCheckpoint(ctx context.Context, record *CheckpointRecord) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetMetricHistory(ctx context.Context, runID, key string) ([]MetricPoint, error)
}

// DataStore implements Interface on a GORM database
type DataStore struct {
	DB       *gorm.DB
	recorder metrics.Recorder // nil records nothing
}

// New returns the store selected by the datastore settings. recorder may be nil.
func New(settings *conf.Settings, recorder metrics.Recorder) (Interface, error) {
	ds := DataStore{recorder: metrics.OrNoop(recorder)}
	cfg := settings.Tracking.Datastore
	switch cfg.Type {
	case conf.DatastoreSQLite, "":
		return &SQLiteStore{DataStore: ds, Path: cfg.SQLite.Path}, nil
	case conf.DatastoreMySQL:
		return &MySQLStore{DataStore: ds, Settings: cfg.MySQL}, nil
	default:
		return nil, errors.New(fmt.Errorf("unknown datastore type %q", cfg.Type)).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// GetLogger returns the datastore package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// slowQueryThreshold marks statements logged as slow
const slowQueryThreshold = 500 * time.Millisecond

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.NewGormLoggerAdapter(GetLogger(), slowQueryThreshold)}
}

func (ds *DataStore) migrate(dbType string) error {
	start := time.Now()
	if err := ds.DB.AutoMigrate(&Run{}, &MetricPoint{}, &CheckpointRecord{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("db_type", dbType).
			Build()
	}
	GetLogger().Debug("database migration completed",
		logger.String("db_type", dbType),
		logger.Duration("duration", time.Since(start)))
	return nil
}

func (ds *DataStore) db(ctx context.Context) (*gorm.DB, error) {
	if ds.DB == nil {
		return nil, errors.New(fmt.Errorf("database connection is not initialized")).
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}
	return ds.DB.WithContext(ctx), nil
}

// observe records the outcome of a write
func (ds *DataStore) observe(op string, start time.Time, err error) error {
	rec := metrics.OrNoop(ds.recorder)
	rec.RecordDuration(op, time.Since(start).Seconds())
	if err != nil {
		rec.RecordOperation(op, metrics.StatusError)
		rec.RecordError(op, "database")
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", op).
			Build()
	}
	rec.RecordOperation(op, metrics.StatusSuccess)
	return nil
}

// Close releases the connection pool
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	ds.DB = nil
	return sqlDB.Close()
}

// CreateRun inserts run, StartedAt and Status default to now and running
func (ds *DataStore) CreateRun(ctx context.Context, run *Run) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	start := time.Now()
	return ds.observe(metrics.OpDbInsert, start, db.Create(run).Error)
}

// FinishRun sets the final status and the best checkpoint recorded for the run
func (ds *DataStore) FinishRun(ctx context.Context, runID, status string) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	start := time.Now()

	err = db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"status": status, "finished_at": time.Now()}

		var best CheckpointRecord
		res := tx.Where("run_id = ?", runID).Order("score desc").Limit(1).Find(&best)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			updates["best_score"] = best.Score
			updates["best_checkpoint"] = best.Path
		}

		res = tx.Model(&Run{}).Where("run_id = ?", runID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return ds.observe(metrics.OpDbUpdate, start, err)
}

// SaveMetrics stores one row per key, in key order
func (ds *DataStore) SaveMetrics(ctx context.Context, runID string, step int, values map[string]float64) error {
	if len(values) == 0 {
		return nil
	}
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now()
	points := make([]MetricPoint, 0, len(keys))
	for _, k := range keys {
		points = append(points, MetricPoint{RunID: runID, Key: k, Step: step, Value: values[k], CreatedAt: now})
	}
	return ds.observe(metrics.OpDbInsert, now, db.Create(&points).Error)
}

// SaveCheckpoint records a written checkpoint
func (ds *DataStore) SaveCheckpoint(ctx context.Context, record *CheckpointRecord) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	return ds.observe(metrics.OpDbInsert, start, db.Create(record).Error)
}

// GetRun returns a run with its checkpoints
func (ds *DataStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var run Run
	if err := db.Preload("Checkpoints").Where("run_id = ?", runID).First(&run).Error; err != nil {
		category := errors.CategoryDatabase
		if errors.Is(err, gorm.ErrRecordNotFound) {
			category = errors.CategoryNotFound
		}
		return nil, errors.New(err).
			Component("datastore").
			Category(category).
			Context("run_id", runID).
			Build()
	}
	return &run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (ds *DataStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Order("started_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runs []Run
	if err := q.Find(&runs).Error; err != nil {
		return nil, errors.New(err).Component("datastore").Category(errors.CategoryDatabase).Build()
	}
	return runs, nil
}

// GetMetricHistory returns the values of key ordered by step
func (ds *DataStore) GetMetricHistory(ctx context.Context, runID, key string) ([]MetricPoint, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var points []MetricPoint
	if err := db.Where("run_id = ? AND metric_key = ?", runID, key).Order("step asc, id asc").Find(&points).Error; err != nil {
		return nil, errors.New(err).Component("datastore").Category(errors.CategoryDatabase).Build()
	}
	return points, nil
}
