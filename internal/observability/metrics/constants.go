// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation names recorded through Recorder.
const (
	OpAudioDecode     = "audio_decode"
	OpFeatureExtract  = "feature_extract"
	OpFeatureCache    = "feature_cache"
	OpChunkExport     = "chunk_export"
	OpChunkReject     = "chunk_reject"
	OpChunkDelete     = "chunk_delete"
	OpFileMove        = "file_move"
	OpTrainBatch      = "train_batch"
	OpValidation      = "validation"
	OpCheckpointSave  = "checkpoint_save"
	OpDbInsert        = "db_insert"
	OpDbUpdate        = "db_update"
	OpTrackingPublish = "tracking_publish"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
	StatusHit     = "hit"
	StatusMiss    = "miss"
)

// Histogram bucket configuration.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketFactor2 doubles each bucket.
	BucketFactor2 = 2
	// BucketCount15 covers 1ms to ~16s with BucketFactor2.
	BucketCount15 = 15
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics endpoint.
const ShutdownTimeout = 5 * time.Second

const namespace = "birdclef"
