package generator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
)

func callOf(id string, start time.Time, seconds int, anomaly domain.AnomalyType) domain.CallRecord {
	caller := domain.User{ID: "user_000001", IMEI: "490154203237518", IMSI: "310150123456789"}
	callee := domain.User{ID: "user_000002", IMEI: "356938035643809", IMSI: "310150987654321"}
	return domain.NewCallRecord(id, caller, callee, start, seconds, "cell_001", "cell_002", anomaly)
}

func bucketCounts(sum Summary) map[string]int {
	counts := make(map[string]int, len(sum.DurationBuckets))
	for _, b := range sum.DurationBuckets {
		counts[b.Label] = b.Count
	}
	return counts
}

func TestSummarizeDurationBucketEdges(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{seconds: 1, want: "<30s"},
		{seconds: 30, want: "<30s"},
		{seconds: 31, want: "30-60s"},
		{seconds: 60, want: "30-60s"},
		{seconds: 180, want: "1-3m"},
		{seconds: 600, want: "3-10m"},
		{seconds: 1800, want: "10-30m"},
		{seconds: 3600, want: "30-60m"},
		{seconds: 3601, want: ">1h"},
	}

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		sum := Summarize([]domain.CallRecord{callOf("call_000000", start, tt.seconds, domain.AnomalyNone)}, 2, 2, 0)
		counts := bucketCounts(sum)
		assert.Equal(t, 1, counts[tt.want], "duration %ds", tt.seconds)
	}
}

func TestSummarizeCounts(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 2, 15, 0, 0, time.UTC)
	records := []domain.CallRecord{
		callOf("call_000000", day1, 100, domain.AnomalyNone),
		callOf("call_000001", day2, 300, domain.AnomalyNone),
		callOf("call_000002", day2, 3, domain.AnomalyShort),
		callOf("call_000003", day2, 5, domain.AnomalyOffHour),
	}

	sum := Summarize(records, 2, 2, 1)

	assert.Equal(t, 4, sum.TotalCalls)
	assert.Equal(t, 2, sum.NormalCalls)
	assert.Equal(t, 2, sum.AnomalousCalls)
	assert.InDelta(t, 0.5, sum.AnomalyRatio, 1e-9)
	assert.Equal(t, 1, sum.AnomalyTypes[string(domain.AnomalyShort)])
	assert.Equal(t, 3, sum.Duration.Min)
	assert.Equal(t, 300, sum.Duration.Max)
	assert.InDelta(t, 52.5, sum.Duration.Median, 1e-9)
	assert.Equal(t, 1, sum.HourlyCalls[23])
	assert.Equal(t, 3, sum.HourlyCalls[2])
	require.Len(t, sum.CallsPerDay, 2)
	assert.Equal(t, Bucket{Label: "2024-01-01", Count: 1}, sum.CallsPerDay[0])
	assert.Equal(t, Bucket{Label: "2024-01-02", Count: 3}, sum.CallsPerDay[1])
	assert.Equal(t, day1, sum.DateRange.Start)
	assert.Equal(t, day2, sum.DateRange.End)
}
