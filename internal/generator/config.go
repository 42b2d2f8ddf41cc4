package generator

import (
	"time"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/calls"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/social"
)

// Config drives the synthetic CDR generator.
type Config struct {
	NumUsers         int                           `yaml:"num_users" json:"num_users" validate:"gte=2"`
	NumTowers        int                           `yaml:"num_towers" json:"num_towers" validate:"gte=1"`
	Days             int                           `yaml:"days" json:"days" validate:"gte=1"`
	AnomalyRatio     float64                       `yaml:"anomaly_ratio" json:"anomaly_ratio" validate:"gte=0,lt=1"`
	Seed             int64                         `yaml:"seed" json:"seed"`
	CallsPerUserMin  int                           `yaml:"calls_per_user_min" json:"calls_per_user_min" validate:"gte=1"`
	CallsPerUserMax  int                           `yaml:"calls_per_user_max" json:"calls_per_user_max" validate:"gtefield=CallsPerUserMin"`
	Parallel         bool                          `yaml:"parallel" json:"parallel"`
	Workers          int                           `yaml:"workers" json:"workers" validate:"gte=0"`
	CallsPerChunk    int                           `yaml:"calls_per_chunk" json:"calls_per_chunk" validate:"gte=1"`
	FamilyCount      int                           `yaml:"family_count" json:"family_count" validate:"gte=0"`
	WorkGroupCount   int                           `yaml:"work_group_count" json:"work_group_count" validate:"gte=0"`
	FriendCircleSize int                           `yaml:"friend_circle_size" json:"friend_circle_size" validate:"gte=2"`
	StartDate        time.Time                     `yaml:"start_date" json:"start_date"`
	Durations        map[string]calls.Distribution `yaml:"durations,omitempty" json:"durations,omitempty"`
}

// DefaultConfig returns the reference dataset layout: 150k users over one week.
func DefaultConfig() Config {
	opts := social.DefaultOptions()
	return Config{
		NumUsers:         150000,
		NumTowers:        50,
		Days:             7,
		AnomalyRatio:     0.05,
		Seed:             42,
		CallsPerUserMin:  15,
		CallsPerUserMax:  25,
		Parallel:         true,
		CallsPerChunk:    10000,
		FamilyCount:      opts.FamilyCount,
		WorkGroupCount:   opts.WorkGroupCount,
		FriendCircleSize: opts.FriendCircleSize,
		StartDate:        calls.DefaultParams().StartDate,
	}
}

func (c Config) socialOptions() social.Options {
	return social.Options{
		FamilyCount:      c.FamilyCount,
		WorkGroupCount:   c.WorkGroupCount,
		FriendCircleSize: c.FriendCircleSize,
	}
}

func (c Config) modelParams() calls.Params {
	params := calls.DefaultParams()
	params.StartDate = c.StartDate
	for key, dist := range c.Durations {
		params.Durations[key] = dist
	}
	return params
}
