package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/export"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/graph"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/logging"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/repository"
)

type batchLog struct {
	mu      sync.Mutex
	records map[string]int
	failed  int
}

func (l *batchLog) RecordSinkBatch(sink string, records int, _ time.Duration, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.records == nil {
		l.records = make(map[string]int)
	}
	if err != nil {
		l.failed++
		return
	}
	l.records[sink] += records
}

func sampleTables(calls int) export.Tables {
	t := export.Tables{
		Towers: []domain.CellTower{{ID: "cell_001"}, {ID: "cell_002"}},
		Users: []domain.User{
			{ID: "user_000000", HomeCellID: "cell_001"},
			{ID: "user_000001", HomeCellID: "cell_002"},
			{ID: "user_000002", HomeCellID: "cell_001"},
		},
		Communities: []domain.Community{
			{ID: "family_0", Kind: domain.CommunityFamily, Members: []string{"user_000000", "user_000001"}},
		},
	}
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < calls; i++ {
		t.Calls = append(t.Calls, domain.CallRecord{
			CallID:          domain.CallID(i),
			CallerID:        "user_000000",
			CalleeID:        "user_000002",
			Start:           start.Add(time.Duration(i) * time.Minute),
			End:             start.Add(time.Duration(i)*time.Minute + 30*time.Second),
			DurationSeconds: 30,
			AnomalyType:     domain.AnomalyNone,
		})
	}
	return t
}

func TestGraphIngestorWritesStagesInOrder(t *testing.T) {
	mem := graph.NewMemoryClient()
	rec := &batchLog{}
	ingestor := NewGraphIngestor(repository.New(mem), GraphIngestorOptions{
		Workers:   2,
		BatchSize: 4,
		Recorder:  rec,
		Logger:    logging.Discard(),
	})
	assert.Equal(t, GraphSinkName, ingestor.Name())

	require.NoError(t, ingestor.Ingest(context.Background(), sampleTables(10)))

	called := mem.WritesContaining("MERGE (caller)")
	require.Len(t, called, 3)
	rows := 0
	for _, q := range called {
		rows += len(q.Rows())
	}
	assert.Equal(t, 10, rows)

	lastUser, firstCall := -1, -1
	for i, q := range mem.WriteCalls() {
		if strings.Contains(q.Query, "HOME_CELL") {
			lastUser = i
		}
		if firstCall < 0 && strings.Contains(q.Query, "MERGE (caller)") {
			firstCall = i
		}
	}
	assert.Less(t, lastUser, firstCall, "users are written before calls")

	assert.Equal(t, 2+3+1+10, rec.records[GraphSinkName])
	assert.Zero(t, rec.failed)
}

func TestGraphIngestorStopsAfterFailedStage(t *testing.T) {
	boom := errors.New("constraint violation")
	mem := graph.NewMemoryClient().FailWritesContaining("HOME_CELL", boom)
	rec := &batchLog{}
	ingestor := NewGraphIngestor(repository.New(mem), GraphIngestorOptions{BatchSize: 2, Recorder: rec})

	err := ingestor.Ingest(context.Background(), sampleTables(5))
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "graph ingest users")
	assert.Empty(t, mem.WritesContaining("MERGE (caller)"))
	assert.Equal(t, 2, rec.failed)
}

func TestTimedWithNilRecorder(t *testing.T) {
	sentinel := errors.New("x")
	assert.ErrorIs(t, Timed(nil, "s", 1, func() error { return sentinel }), sentinel)
}
