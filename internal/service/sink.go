package service

import (
	"context"
	"time"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/export"
)

// Sink receives a complete dataset, either freshly generated or reloaded from CSV.
type Sink interface {
	Name() string
	Ingest(ctx context.Context, tables export.Tables) error
}

// BatchRecorder observes every batch a sink pushes.
type BatchRecorder interface {
	RecordSinkBatch(sink string, records int, elapsed time.Duration, err error)
}

type noopRecorder struct{}

func (noopRecorder) RecordSinkBatch(string, int, time.Duration, error) {}

// NoopRecorder discards batch observations.
var NoopRecorder BatchRecorder = noopRecorder{}

// Timed runs fn and reports its outcome to rec.
func Timed(rec BatchRecorder, sink string, records int, fn func() error) error {
	if rec == nil {
		rec = NoopRecorder
	}
	start := time.Now()
	err := fn()
	rec.RecordSinkBatch(sink, records, time.Since(start), err)
	return err
}
