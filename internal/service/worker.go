package service

import (
	"context"
	"errors"
	"sync"
)

// TaskError accumulates the errors of failed batches.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "multiple errors:"
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

// Unwrap exposes the individual batch errors to errors.Is and errors.As.
func (e *TaskError) Unwrap() []error {
	return e.Errors
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Batch is a half-open range [Lo, Hi) of row indexes.
type Batch struct {
	Lo, Hi int
}

// Len returns the number of rows in the batch.
func (b Batch) Len() int {
	return b.Hi - b.Lo
}

// Batches splits total rows into consecutive ranges of at most size rows.
func Batches(total, size int) []Batch {
	if total <= 0 {
		return nil
	}
	if size <= 0 {
		size = total
	}
	out := make([]Batch, 0, (total+size-1)/size)
	for lo := 0; lo < total; lo += size {
		out = append(out, Batch{Lo: lo, Hi: min(lo+size, total)})
	}
	return out
}

// BulkIngestor pushes row batches to a sink using a fixed pool of workers.
// A failed batch does not stop the others; all failures are reported together.
type BulkIngestor struct {
	workers   int
	batchSize int
}

// NewBulkIngestor creates a BulkIngestor. Non-positive values fall back to
// 4 workers and batches of 1000 rows.
func NewBulkIngestor(workers, batchSize int) *BulkIngestor {
	if workers <= 0 {
		workers = 4
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &BulkIngestor{
		workers:   workers,
		batchSize: batchSize,
	}
}

// Run calls fn once per batch of total rows.
func (bi *BulkIngestor) Run(ctx context.Context, total int, fn func(ctx context.Context, b Batch) error) error {
	batches := Batches(total, bi.batchSize)
	if len(batches) == 0 {
		return nil
	}
	batchCh := make(chan Batch)
	errCh := make(chan error, len(batches))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for b := range batchCh {
			if err := fn(ctx, b); err != nil {
				errCh <- err
			}
		}
	}

	for i := 0; i < min(bi.workers, len(batches)); i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for _, b := range batches {
		select {
		case batchCh <- b:
		case <-ctx.Done():
			break Loop
		}
	}
	close(batchCh)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return err
	}

	var taskErr TaskError
	for err := range errCh {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
