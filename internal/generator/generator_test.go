package generator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/profile"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.NumUsers = 100
	cfg.NumTowers = 10
	cfg.Days = 1
	cfg.AnomalyRatio = 0.05
	cfg.CallsPerChunk = 500
	cfg.Workers = 4
	return cfg
}

type recordingObserver struct {
	mu      sync.Mutex
	phases  []string
	records map[domain.AnomalyType]int
}

func (o *recordingObserver) ChunkCompleted(string, int, time.Duration) {}
func (o *recordingObserver) ParallelFallback()                         {}

func (o *recordingObserver) PhaseCompleted(phase string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, phase)
}

func (o *recordingObserver) RecordsGenerated(kind domain.AnomalyType, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.records == nil {
		o.records = map[domain.AnomalyType]int{}
	}
	o.records[kind] += n
}

func TestNewAppliesDefaults(t *testing.T) {
	g := New(Config{NumUsers: 10, AnomalyRatio: 1.5})
	cfg := g.Config()
	def := DefaultConfig()

	assert.Equal(t, 10, cfg.NumUsers)
	assert.Equal(t, def.NumTowers, cfg.NumTowers)
	assert.Equal(t, def.Days, cfg.Days)
	assert.Equal(t, def.AnomalyRatio, cfg.AnomalyRatio)
	assert.Equal(t, def.CallsPerUserMin, cfg.CallsPerUserMin)
	assert.Equal(t, def.CallsPerUserMax, cfg.CallsPerUserMax)
	assert.Equal(t, def.FamilyCount, cfg.FamilyCount)
	assert.Equal(t, def.WorkGroupCount, cfg.WorkGroupCount)
	assert.Equal(t, def.StartDate, cfg.StartDate)
}

func TestNewCallRangeAndGroupCounts(t *testing.T) {
	tests := []struct {
		name     string
		in       Config
		wantMax  int
		wantFam  int
		wantWork int
	}{
		{name: "min above default max", in: Config{CallsPerUserMin: 40}, wantMax: 40, wantFam: 80, wantWork: 30},
		{name: "inverted range", in: Config{CallsPerUserMin: 20, CallsPerUserMax: 5}, wantMax: 20, wantFam: 80, wantWork: 30},
		{name: "explicit range", in: Config{CallsPerUserMin: 2, CallsPerUserMax: 3}, wantMax: 3, wantFam: 80, wantWork: 30},
		{name: "families only", in: Config{FamilyCount: 5}, wantMax: 25, wantFam: 5, wantWork: 0},
		{name: "work groups only", in: Config{WorkGroupCount: 7}, wantMax: 25, wantFam: 0, wantWork: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New(tt.in).Config()
			assert.Equal(t, tt.wantMax, cfg.CallsPerUserMax)
			assert.Equal(t, tt.wantFam, cfg.FamilyCount)
			assert.Equal(t, tt.wantWork, cfg.WorkGroupCount)
		})
	}
}

func TestZeroConfigBuildsAllCommunityKinds(t *testing.T) {
	ds, err := New(Config{NumUsers: 1000, Days: 1}, WithClock(func() time.Time { return fixedNow })).Generate(context.Background())
	require.NoError(t, err)

	kinds := map[domain.CommunityKind]int{}
	for _, c := range ds.Communities {
		kinds[c.Kind]++
	}
	assert.Positive(t, kinds[domain.CommunityFamily])
	assert.Positive(t, kinds[domain.CommunityWork])
	assert.Positive(t, kinds[domain.CommunityFriend])
}

func TestGenerateDataset(t *testing.T) {
	obs := &recordingObserver{}
	ds, err := New(smallConfig(), WithClock(func() time.Time { return fixedNow }), WithObserver(obs)).Generate(context.Background())
	require.NoError(t, err)

	require.Len(t, ds.Users, 100)
	require.Len(t, ds.Towers, 10)
	require.NotEmpty(t, ds.Communities)
	assert.Equal(t, fixedNow, ds.GeneratedAt)

	ids := make(map[string]struct{}, len(ds.Calls))
	for i, rec := range ds.Calls {
		require.NoError(t, rec.Validate())
		if i > 0 {
			prev := ds.Calls[i-1]
			require.False(t, rec.Start.Before(prev.Start), "calls out of order at %d", i)
		}
		_, dup := ids[rec.CallID]
		require.False(t, dup, "duplicate call id %s", rec.CallID)
		ids[rec.CallID] = struct{}{}
	}

	for _, u := range ds.Users {
		assert.True(t, profile.ValidLuhn(u.IMEI))
	}

	sum := ds.Summary
	assert.Equal(t, len(ds.Calls), sum.TotalCalls)
	assert.Equal(t, sum.TotalCalls, sum.NormalCalls+sum.AnomalousCalls)
	assert.InDelta(t, 0.05, sum.AnomalyRatio, 0.01)
	// bursts late in the day may spill past midnight
	require.NotEmpty(t, sum.CallsPerDay)
	assert.LessOrEqual(t, len(sum.CallsPerDay), 2)
	assert.Equal(t, "2024-01-01", sum.CallsPerDay[0].Label)

	assert.Equal(t, []string{PhaseSocial, PhaseTowers, PhaseProfiles, PhaseCalls, PhaseAnomalies, PhaseMerge}, obs.phases)
	assert.Equal(t, sum.NormalCalls, obs.records[domain.AnomalyNone])
	for _, kind := range domain.AnomalyTypes {
		assert.Equal(t, sum.AnomalyTypes[string(kind)], obs.records[kind])
	}
}

func TestGenerateIsReproducibleAcrossModes(t *testing.T) {
	clock := WithClock(func() time.Time { return fixedNow })

	serialCfg := smallConfig()
	serialCfg.Parallel = false
	serial, err := New(serialCfg, clock).Generate(context.Background())
	require.NoError(t, err)

	parallelCfg := smallConfig()
	parallelCfg.Parallel = true
	parallel, err := New(parallelCfg, clock).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, serial.Users, parallel.Users)
	assert.Equal(t, serial.Towers, parallel.Towers)
	assert.Equal(t, serial.Communities, parallel.Communities)
	assert.Equal(t, serial.Calls, parallel.Calls)
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(smallConfig()).Generate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSortCallsBreaksTiesByID(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	records := []domain.CallRecord{
		{CallID: "call_000003", Start: ts},
		{CallID: "call_000001", Start: ts.Add(time.Second)},
		{CallID: "call_000002", Start: ts},
	}
	SortCalls(records)

	got := []string{records[0].CallID, records[1].CallID, records[2].CallID}
	assert.Equal(t, []string{"call_000002", "call_000003", "call_000001"}, got)
}

func TestObserversFanOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	obs := Observers(a, nil, b)

	obs.PhaseCompleted(PhaseCalls, time.Second)
	obs.RecordsGenerated(domain.AnomalyShort, 4)
	obs.ChunkCompleted("parallel", 10, time.Millisecond)
	obs.ParallelFallback()

	for _, o := range []*recordingObserver{a, b} {
		assert.Equal(t, []string{PhaseCalls}, o.phases)
		assert.Equal(t, 4, o.records[domain.AnomalyShort])
	}
}
