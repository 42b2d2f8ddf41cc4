// Package anomaly injects labeled anomalous calls into a normal call corpus.
package anomaly

import (
	"io"
	"log/slog"
	"time"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/calls"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/sampling"
)

// Injected call ranges.
const (
	ShortMinSeconds = 1
	ShortMaxSeconds = 5
	LongMinSeconds  = 3600
	LongMaxSeconds  = 7200
	OffHourFirst    = 2
	OffHourLast     = 4
	BurstMinCalls   = 10
	BurstMaxCalls   = 20
	BurstWindow     = time.Hour
	BurstMinSeconds = 10
	BurstMaxSeconds = 60
)

// Config controls how many anomalies are injected and over which days.
type Config struct {
	Days         int
	AnomalyRatio float64
	Seed         int64
}

// Plan is the number of anomalies of each type to inject.
type Plan struct {
	Total   int
	PerType int
	Counts  map[domain.AnomalyType]int
}

// NewPlan sizes the anomaly share so that anomalies make up ratio of the final dataset.
// Short, long and off-hour calls get an equal share and bursts absorb the remainder.
func NewPlan(normalCount int, ratio float64) Plan {
	total := 0
	if ratio > 0 && ratio < 1 {
		total = int(float64(normalCount) / (1 - ratio) * ratio)
	}
	perType := total / len(domain.AnomalyTypes)
	if perType < 1 {
		perType = 1
	}
	burst := total - 3*perType
	if burst < perType {
		burst = perType
	}
	return Plan{
		Total:   total,
		PerType: perType,
		Counts: map[domain.AnomalyType]int{
			domain.AnomalyShort:   perType,
			domain.AnomalyLong:    perType,
			domain.AnomalyOffHour: perType,
			domain.AnomalyBurst:   burst,
		},
	}
}

// Injector generates anomalous calls against a traffic model.
type Injector struct {
	model  *calls.Model
	cfg    Config
	logger *slog.Logger
}

// NewInjector returns an Injector. A nil logger discards output.
func NewInjector(model *calls.Model, cfg Config, logger *slog.Logger) *Injector {
	if cfg.Days <= 0 {
		cfg.Days = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Injector{model: model, cfg: cfg, logger: logger}
}

// Inject returns the anomalies for a corpus of normal calls. Their ids continue after the
// last normal call, in short, long, off-hour, burst order.
func (inj *Injector) Inject(normal []domain.CallRecord) []domain.CallRecord {
	plan := NewPlan(len(normal), inj.cfg.AnomalyRatio)
	s := sampling.New(inj.cfg.Seed + 1)

	next := len(normal)
	nextID := func() string {
		id := domain.CallID(next)
		next++
		return id
	}

	out := make([]domain.CallRecord, 0, plan.Total+plan.PerType)
	out = inj.short(s, out, plan.Counts[domain.AnomalyShort], nextID)
	out = inj.long(s, out, plan.Counts[domain.AnomalyLong], nextID)
	out = inj.offHour(s, out, plan.Counts[domain.AnomalyOffHour], nextID)
	out = inj.burst(s, out, plan.Counts[domain.AnomalyBurst], nextID)

	inj.logger.Info("anomalies injected",
		"planned", plan.Total,
		"injected", len(out),
		"per_type", plan.PerType,
		"burst_target", plan.Counts[domain.AnomalyBurst],
	)
	return out
}

func (inj *Injector) short(s *sampling.Sampler, out []domain.CallRecord, n int, nextID func() string) []domain.CallRecord {
	for i := 0; i < n; i++ {
		caller := inj.model.RandomUser(s)
		callee := inj.model.RandomOther(s, caller.ID)
		start := inj.model.Timestamp(s, s.Intn(inj.cfg.Days), domain.CallPatternSocial)
		duration := s.IntRange(ShortMinSeconds, ShortMaxSeconds)
		out = append(out, record(nextID(), caller, callee, start, duration, domain.AnomalyShort))
	}
	return out
}

func (inj *Injector) long(s *sampling.Sampler, out []domain.CallRecord, n int, nextID func() string) []domain.CallRecord {
	index := inj.model.Population().Index
	for i := 0; i < n; i++ {
		caller := inj.model.RandomUser(s)
		callee := index[inj.model.SelectCallee(s, caller.ID)]
		start := inj.model.Timestamp(s, s.Intn(inj.cfg.Days), domain.CallPatternSocial)
		duration := s.IntRange(LongMinSeconds, LongMaxSeconds)
		out = append(out, record(nextID(), caller, callee, start, duration, domain.AnomalyLong))
	}
	return out
}

func (inj *Injector) offHour(s *sampling.Sampler, out []domain.CallRecord, n int, nextID func() string) []domain.CallRecord {
	for i := 0; i < n; i++ {
		caller := inj.model.RandomUser(s)
		callee := inj.model.RandomOther(s, caller.ID)
		base := inj.model.Day(s.Intn(inj.cfg.Days))
		start := time.Date(base.Year(), base.Month(), base.Day(),
			s.IntRange(OffHourFirst, OffHourLast), s.IntRange(0, 59), s.IntRange(0, 59), 0, base.Location())
		duration := inj.model.Duration(s, caller.UserType, domain.AnomalyNone)
		out = append(out, record(nextID(), caller, callee, start, duration, domain.AnomalyOffHour))
	}
	return out
}

// burst picks max(1, n/10) distinct callers and gives each a run of calls inside a one
// hour window, stopping once n calls exist.
func (inj *Injector) burst(s *sampling.Sampler, out []domain.CallRecord, n int, nextID func() string) []domain.CallRecord {
	users := inj.model.Population().Users
	callers := n / 10
	if callers < 1 {
		callers = 1
	}

	count := 0
	for _, idx := range s.SampleIndices(len(users), callers) {
		caller := users[idx]
		base := inj.model.Timestamp(s, s.Intn(inj.cfg.Days), domain.CallPatternSocial)
		size := s.IntRange(BurstMinCalls, BurstMaxCalls)
		for j := 0; j < size && count < n; j++ {
			callee := inj.model.RandomOther(s, caller.ID)
			start := base.Add(time.Duration(s.IntRange(0, int(BurstWindow/time.Second))) * time.Second)
			duration := s.IntRange(BurstMinSeconds, BurstMaxSeconds)
			out = append(out, record(nextID(), caller, callee, start, duration, domain.AnomalyBurst))
			count++
		}
	}
	return out
}

func record(id string, caller, callee domain.User, start time.Time, duration int, kind domain.AnomalyType) domain.CallRecord {
	return domain.NewCallRecord(id, caller, callee, start, duration, caller.HomeCellID, caller.HomeCellID, kind)
}
