package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatches(t *testing.T) {
	tests := []struct {
		name  string
		total int
		size  int
		want  []Batch
	}{
		{name: "empty", total: 0, size: 10, want: nil},
		{name: "exact", total: 4, size: 2, want: []Batch{{0, 2}, {2, 4}}},
		{name: "remainder", total: 5, size: 2, want: []Batch{{0, 2}, {2, 4}, {4, 5}}},
		{name: "single", total: 3, size: 0, want: []Batch{{0, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Batches(tt.total, tt.size))
		})
	}
}

func TestBulkIngestorVisitsEveryRowOnce(t *testing.T) {
	bi := NewBulkIngestor(3, 7)
	var (
		mu   sync.Mutex
		seen = make([]int, 100)
	)

	err := bi.Run(context.Background(), len(seen), func(_ context.Context, b Batch) error {
		mu.Lock()
		defer mu.Unlock()
		for i := b.Lo; i < b.Hi; i++ {
			seen[i]++
		}
		return nil
	})
	require.NoError(t, err)
	for i, n := range seen {
		assert.Equal(t, 1, n, "row %d", i)
	}
}

func TestBulkIngestorAggregatesErrors(t *testing.T) {
	bi := NewBulkIngestor(2, 10)
	sentinel := errors.New("batch rejected")
	var ran atomic.Int32

	err := bi.Run(context.Background(), 40, func(_ context.Context, b Batch) error {
		ran.Add(1)
		if b.Lo%20 == 0 {
			return fmt.Errorf("rows %d-%d: %w", b.Lo, b.Hi, sentinel)
		}
		return nil
	})

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Len(t, taskErr.Errors, 2)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "multiple errors")
	assert.EqualValues(t, 4, ran.Load(), "failed batches do not stop the others")
}

func TestBulkIngestorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bi := NewBulkIngestor(1, 1)

	err := bi.Run(ctx, 50, func(ctx context.Context, b Batch) error {
		if b.Lo == 2 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTaskErrorMessages(t *testing.T) {
	var empty TaskError
	assert.Equal(t, "no errors", empty.Error())
	assert.NoError(t, empty.asError())

	single := TaskError{Errors: []error{errors.New("only")}}
	assert.Equal(t, "only", single.Error())
}
