// Package features aggregates call records into per-user behavioural features.
package features

import (
	"math"
	"time"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
)

// Thresholds used by the ratio features.
const (
	NightEndHour        = 6
	ShortCallMaxSeconds = 10
)

// UserFeatures is one row of the processed feature table.
type UserFeatures struct {
	UserID           string
	UserType         domain.UserType
	CallPattern      domain.CallPattern
	OutgoingCalls    int
	IncomingCalls    int
	UniqueCallees    int
	TotalDuration    int
	MeanDuration     float64
	StdDuration      float64
	MinDuration      int
	MaxDuration      int
	NightCallRatio   float64
	WeekendCallRatio float64
	ShortCallRatio   float64
	AnomalousCalls   int
	IsAnomalousUser  bool
}

type accumulator struct {
	outgoing  int
	incoming  int
	callees   map[string]struct{}
	total     int
	sumSq     float64
	min       int
	max       int
	night     int
	weekend   int
	short     int
	anomalous int
}

// Compute returns one row per user, in the order of users. Duration and ratio features
// cover outgoing calls; users without outgoing calls get zeros.
func Compute(users []domain.User, records []domain.CallRecord) []UserFeatures {
	acc := make(map[string]*accumulator, len(users))
	for _, u := range users {
		acc[u.ID] = &accumulator{callees: make(map[string]struct{})}
	}

	for _, r := range records {
		if callee, ok := acc[r.CalleeID]; ok {
			callee.incoming++
		}
		a, ok := acc[r.CallerID]
		if !ok {
			continue
		}
		d := r.DurationSeconds
		if a.outgoing == 0 || d < a.min {
			a.min = d
		}
		if a.outgoing == 0 || d > a.max {
			a.max = d
		}
		a.outgoing++
		a.callees[r.CalleeID] = struct{}{}
		a.total += d
		a.sumSq += float64(d) * float64(d)
		if r.Start.Hour() < NightEndHour {
			a.night++
		}
		if wd := r.Start.Weekday(); wd == time.Saturday || wd == time.Sunday {
			a.weekend++
		}
		if d < ShortCallMaxSeconds {
			a.short++
		}
		if r.IsAnomaly {
			a.anomalous++
		}
	}

	out := make([]UserFeatures, len(users))
	for i, u := range users {
		a := acc[u.ID]
		f := UserFeatures{
			UserID:          u.ID,
			UserType:        u.UserType,
			CallPattern:     u.CallPattern,
			OutgoingCalls:   a.outgoing,
			IncomingCalls:   a.incoming,
			UniqueCallees:   len(a.callees),
			TotalDuration:   a.total,
			MinDuration:     a.min,
			MaxDuration:     a.max,
			AnomalousCalls:  a.anomalous,
			IsAnomalousUser: a.anomalous > 0,
		}
		if n := float64(a.outgoing); n > 0 {
			f.MeanDuration = float64(a.total) / n
			f.StdDuration = math.Sqrt(math.Max(0, a.sumSq/n-f.MeanDuration*f.MeanDuration))
			f.NightCallRatio = float64(a.night) / n
			f.WeekendCallRatio = float64(a.weekend) / n
			f.ShortCallRatio = float64(a.short) / n
		}
		out[i] = f
	}
	return out
}
