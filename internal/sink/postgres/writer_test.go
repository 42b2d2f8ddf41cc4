package postgres

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/export"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/logging"
)

type fakeDB struct {
	mu      sync.Mutex
	execs   []string
	rows    [][]any
	copies  int
	copyErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.copies++
	var n int64
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return n, err
		}
		if len(vals) != len(columns) {
			return n, errors.New("column count mismatch")
		}
		f.rows = append(f.rows, vals)
		n++
	}
	return n, src.Err()
}

type recorder struct {
	mu      sync.Mutex
	ok, bad int
}

func (r *recorder) RecordSinkBatch(_ string, records int, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.bad += records
		return
	}
	r.ok += records
}

func testCalls(n int) []domain.CallRecord {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	out := make([]domain.CallRecord, n)
	for i := range out {
		out[i] = domain.CallRecord{
			CallID:          domain.CallID(i),
			CallerID:        "user_000001",
			CalleeID:        "user_000002",
			Start:           start,
			End:             start.Add(45 * time.Second),
			DurationSeconds: 45,
			AnomalyType:     domain.AnomalyNone,
		}
	}
	return out
}

func TestWriterCopiesAllCalls(t *testing.T) {
	db := &fakeDB{}
	rec := &recorder{}
	w := NewWriter(db, Options{Table: "cdr_calls", BatchSize: 40, Workers: 3, Replace: true, Recorder: rec, Logger: logging.Discard()})
	assert.Equal(t, SinkName, w.Name())

	require.NoError(t, w.Ingest(context.Background(), export.Tables{Calls: testCalls(100)}))

	assert.Len(t, db.rows, 100)
	assert.Equal(t, 3, db.copies)
	assert.Equal(t, 100, rec.ok)

	require.Len(t, db.execs, 4)
	assert.Contains(t, db.execs[0], `CREATE TABLE IF NOT EXISTS "cdr_calls"`)
	assert.Contains(t, db.execs[1], `"cdr_calls_caller_idx"`)
	assert.Equal(t, `TRUNCATE "cdr_calls"`, db.execs[3])
}

func TestWriterKeepsExistingRowsWithoutReplace(t *testing.T) {
	db := &fakeDB{}
	w := NewWriter(db, Options{})
	require.NoError(t, w.Ingest(context.Background(), export.Tables{Calls: testCalls(3)}))

	for _, sql := range db.execs {
		assert.False(t, strings.HasPrefix(sql, "TRUNCATE"))
	}
	assert.Contains(t, db.execs[0], `"cdr_call_records"`)
}

func TestWriterReportsFailedBatches(t *testing.T) {
	boom := errors.New("duplicate key")
	db := &fakeDB{copyErr: boom}
	rec := &recorder{}
	w := NewWriter(db, Options{BatchSize: 2, Recorder: rec})

	err := w.Ingest(context.Background(), export.Tables{Calls: testCalls(5)})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "postgres ingest")
	assert.Equal(t, 5, rec.bad)
}

func TestRowMatchesColumns(t *testing.T) {
	call := testCalls(1)[0]
	call.IsAnomaly = true
	call.AnomalyType = domain.AnomalyLong

	row := Row(call)
	require.Len(t, row, len(Columns))
	assert.Equal(t, "call_000000", row[0])
	assert.Equal(t, int32(45), row[5])
	assert.Equal(t, true, row[11])
	assert.Equal(t, "long_call", row[12])
}
