package generator

import (
	"math"
	"sort"
	"time"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
)

// DateLayout formats calendar days in summaries.
const DateLayout = "2006-01-02"

// DurationStats describes the call duration distribution in seconds.
type DurationStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
}

// Bucket is a labeled histogram bin.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DateRange spans the first and last call start.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Summary holds the dataset statistics published with every run.
type Summary struct {
	TotalCalls      int            `json:"total_calls"`
	NormalCalls     int            `json:"normal_calls"`
	AnomalousCalls  int            `json:"anomalous_calls"`
	AnomalyRatio    float64        `json:"anomaly_ratio"`
	AnomalyTypes    map[string]int `json:"anomaly_types"`
	Users           int            `json:"users"`
	Towers          int            `json:"cell_towers"`
	Communities     int            `json:"communities"`
	UniqueCallers   int            `json:"unique_callers"`
	UniqueCallees   int            `json:"unique_callees"`
	DateRange       DateRange      `json:"date_range"`
	Duration        DurationStats  `json:"duration_stats"`
	HourlyCalls     [24]int        `json:"hourly_calls"`
	DurationBuckets []Bucket       `json:"duration_buckets"`
	CallsPerDay     []Bucket       `json:"calls_per_day"`
}

type durationBucket struct {
	label string
	upper int
}

// upper bounds are inclusive; the last bucket is open
var durationBuckets = []durationBucket{
	{label: "<30s", upper: 30},
	{label: "30-60s", upper: 60},
	{label: "1-3m", upper: 180},
	{label: "3-10m", upper: 600},
	{label: "10-30m", upper: 1800},
	{label: "30-60m", upper: 3600},
	{label: ">1h", upper: math.MaxInt},
}

// Summarize computes the statistics of a call corpus.
func Summarize(records []domain.CallRecord, users, towers, communities int) Summary {
	sum := Summary{
		TotalCalls:      len(records),
		AnomalyTypes:    make(map[string]int, len(domain.AnomalyTypes)),
		Users:           users,
		Towers:          towers,
		Communities:     communities,
		DurationBuckets: make([]Bucket, len(durationBuckets)),
	}
	for i, b := range durationBuckets {
		sum.DurationBuckets[i].Label = b.label
	}
	if len(records) == 0 {
		sum.CallsPerDay = []Bucket{}
		return sum
	}

	callers := make(map[string]struct{})
	callees := make(map[string]struct{})
	perDay := make(map[string]int)
	durations := make([]int, len(records))
	var total float64

	sum.DateRange = DateRange{Start: records[0].Start, End: records[0].Start}
	sum.Duration.Min = records[0].DurationSeconds
	sum.Duration.Max = records[0].DurationSeconds

	for i, r := range records {
		if r.IsAnomaly {
			sum.AnomalousCalls++
			sum.AnomalyTypes[string(r.AnomalyType)]++
		}
		callers[r.CallerID] = struct{}{}
		callees[r.CalleeID] = struct{}{}

		if r.Start.Before(sum.DateRange.Start) {
			sum.DateRange.Start = r.Start
		}
		if r.Start.After(sum.DateRange.End) {
			sum.DateRange.End = r.Start
		}

		sum.HourlyCalls[r.Start.Hour()]++
		perDay[r.Start.Format(DateLayout)]++

		d := r.DurationSeconds
		durations[i] = d
		total += float64(d)
		if d < sum.Duration.Min {
			sum.Duration.Min = d
		}
		if d > sum.Duration.Max {
			sum.Duration.Max = d
		}
		for j, b := range durationBuckets {
			if d <= b.upper {
				sum.DurationBuckets[j].Count++
				break
			}
		}
	}

	sum.NormalCalls = sum.TotalCalls - sum.AnomalousCalls
	sum.AnomalyRatio = float64(sum.AnomalousCalls) / float64(sum.TotalCalls)
	sum.UniqueCallers = len(callers)
	sum.UniqueCallees = len(callees)

	mean := total / float64(len(durations))
	var sq float64
	for _, d := range durations {
		sq += (float64(d) - mean) * (float64(d) - mean)
	}
	sum.Duration.Mean = mean
	sum.Duration.Std = math.Sqrt(sq / float64(len(durations)))
	sum.Duration.Median = median(durations)

	days := make([]string, 0, len(perDay))
	for day := range perDay {
		days = append(days, day)
	}
	sort.Strings(days)
	sum.CallsPerDay = make([]Bucket, len(days))
	for i, day := range days {
		sum.CallsPerDay[i] = Bucket{Label: day, Count: perDay[day]}
	}
	return sum
}

func median(values []int) float64 {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
