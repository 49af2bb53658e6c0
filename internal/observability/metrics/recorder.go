// Package metrics provides custom Prometheus metrics for the birdclef-go toolkit.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on this instead of concrete collectors so tests can
// pass a stub and commands without metrics can pass NoopRecorder.
type Recorder interface {
	// RecordOperation records an operation with its outcome, e.g. ("chunk_export", "success").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	RecordError(operation, errorType string)
}

// NoopRecorder discards everything
type NoopRecorder struct{}

func (NoopRecorder) RecordOperation(string, string) {}
func (NoopRecorder) RecordDuration(string, float64) {}
func (NoopRecorder) RecordError(string, string)     {}

// OrNoop returns r, or NoopRecorder when r is nil
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
