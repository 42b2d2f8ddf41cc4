package generator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/anomaly"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/calls"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/cell"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/profile"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/sampling"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/social"
)

// Generation phases reported to observers.
const (
	PhaseSocial    = "social"
	PhaseTowers    = "towers"
	PhaseProfiles  = "profiles"
	PhaseCalls     = "calls"
	PhaseAnomalies = "anomalies"
	PhaseMerge     = "merge"
)

// Observer receives progress of a dataset run.
type Observer interface {
	calls.Observer
	PhaseCompleted(phase string, elapsed time.Duration)
	RecordsGenerated(kind domain.AnomalyType, n int)
}

type noopObserver struct{}

func (noopObserver) ChunkCompleted(string, int, time.Duration) {}
func (noopObserver) ParallelFallback()                         {}
func (noopObserver) PhaseCompleted(string, time.Duration)      {}
func (noopObserver) RecordsGenerated(domain.AnomalyType, int)  {}

type multiObserver []Observer

// Observers fans generation events out to every non-nil observer. Chunk events
// arrive from worker goroutines, so each observer must be safe for concurrent use.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multiObserver) ChunkCompleted(mode string, n int, elapsed time.Duration) {
	for _, o := range m {
		o.ChunkCompleted(mode, n, elapsed)
	}
}

func (m multiObserver) ParallelFallback() {
	for _, o := range m {
		o.ParallelFallback()
	}
}

func (m multiObserver) PhaseCompleted(phase string, elapsed time.Duration) {
	for _, o := range m {
		o.PhaseCompleted(phase, elapsed)
	}
}

func (m multiObserver) RecordsGenerated(kind domain.AnomalyType, n int) {
	for _, o := range m {
		o.RecordsGenerated(kind, n)
	}
}

// Dataset contains everything produced by one run.
type Dataset struct {
	Config      Config
	Users       []domain.User
	Towers      []domain.CellTower
	Communities []domain.Community
	Social      *social.Structure
	Calls       []domain.CallRecord
	Summary     Summary
	GeneratedAt time.Time
}

// Option customises a Generator.
type Option func(*Generator)

// WithLogger sets the logger used for progress output.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock overrides the reference time used for account creation dates.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithObserver registers an observer for phase and chunk progress.
func WithObserver(observer Observer) Option {
	return func(g *Generator) {
		if observer != nil {
			g.observer = observer
		}
	}
}

// Generator produces a labeled CDR dataset.
type Generator struct {
	cfg      Config
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// New returns a configured Generator instance. Zero fields fall back to DefaultConfig.
// FamilyCount and WorkGroupCount are defaulted together, only when both are zero, so a
// caller can still disable one kind of group. A CallsPerUserMax below CallsPerUserMin is
// raised to CallsPerUserMin.
func New(cfg Config, opts ...Option) *Generator {
	def := DefaultConfig()
	if cfg.NumUsers <= 0 {
		cfg.NumUsers = def.NumUsers
	}
	if cfg.NumTowers <= 0 {
		cfg.NumTowers = def.NumTowers
	}
	if cfg.Days <= 0 {
		cfg.Days = def.Days
	}
	if cfg.AnomalyRatio < 0 || cfg.AnomalyRatio >= 1 {
		cfg.AnomalyRatio = def.AnomalyRatio
	}
	if cfg.CallsPerUserMin <= 0 {
		cfg.CallsPerUserMin = def.CallsPerUserMin
	}
	if cfg.CallsPerUserMax == 0 {
		cfg.CallsPerUserMax = max(def.CallsPerUserMax, cfg.CallsPerUserMin)
	}
	if cfg.CallsPerUserMax < cfg.CallsPerUserMin {
		cfg.CallsPerUserMax = cfg.CallsPerUserMin
	}
	if cfg.FamilyCount == 0 && cfg.WorkGroupCount == 0 {
		cfg.FamilyCount = def.FamilyCount
		cfg.WorkGroupCount = def.WorkGroupCount
	}
	if cfg.CallsPerChunk <= 0 {
		cfg.CallsPerChunk = def.CallsPerChunk
	}
	if cfg.FriendCircleSize < 2 {
		cfg.FriendCircleSize = def.FriendCircleSize
	}
	if cfg.StartDate.IsZero() {
		cfg.StartDate = def.StartDate
	}

	g := &Generator{
		cfg:      cfg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer: noopObserver{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the effective configuration.
func (g *Generator) Config() Config {
	return g.cfg
}

// Generate builds the population, samples normal traffic, injects anomalies and returns
// the calls ordered by start time. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	now := g.now()
	s := sampling.New(g.cfg.Seed)

	started := time.Now()
	st := social.Build(g.cfg.NumUsers, g.cfg.socialOptions(), s)
	g.phaseDone(PhaseSocial, started, "users", len(st.Users()), "communities", len(st.Communities()))

	started = time.Now()
	towers := cell.Generate(g.cfg.NumTowers, nil, s)
	homes := cell.AssignHomeCells(st.Users(), towers, s)
	g.phaseDone(PhaseTowers, started, "towers", len(towers))

	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}

	started = time.Now()
	users := profile.Generate(st.Users(), homes, now, s)
	g.phaseDone(PhaseProfiles, started, "profiles", len(users))

	pop, err := calls.NewPopulation(users, st, towers)
	if err != nil {
		return Dataset{}, fmt.Errorf("build population: %w", err)
	}
	model := calls.NewModel(g.cfg.modelParams(), pop)

	started = time.Now()
	callGen := calls.NewGenerator(model, calls.Config{
		Days:            g.cfg.Days,
		AnomalyRatio:    g.cfg.AnomalyRatio,
		CallsPerUserMin: g.cfg.CallsPerUserMin,
		CallsPerUserMax: g.cfg.CallsPerUserMax,
		CallsPerChunk:   g.cfg.CallsPerChunk,
		Workers:         g.cfg.Workers,
		Parallel:        g.cfg.Parallel,
		Seed:            g.cfg.Seed,
	}, g.logger, g.observer)
	normal, err := callGen.Generate(ctx)
	if err != nil {
		return Dataset{}, fmt.Errorf("generate normal calls: %w", err)
	}
	g.observer.RecordsGenerated(domain.AnomalyNone, len(normal))
	g.phaseDone(PhaseCalls, started, "calls", len(normal))

	started = time.Now()
	injector := anomaly.NewInjector(model, anomaly.Config{
		Days:         g.cfg.Days,
		AnomalyRatio: g.cfg.AnomalyRatio,
		Seed:         g.cfg.Seed,
	}, g.logger)
	anomalies := injector.Inject(normal)
	for kind, n := range countByType(anomalies) {
		g.observer.RecordsGenerated(kind, n)
	}
	g.phaseDone(PhaseAnomalies, started, "anomalies", len(anomalies))

	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}

	started = time.Now()
	all := make([]domain.CallRecord, 0, len(normal)+len(anomalies))
	all = append(all, normal...)
	all = append(all, anomalies...)
	SortCalls(all)
	summary := Summarize(all, len(users), len(towers), len(st.Communities()))
	g.phaseDone(PhaseMerge, started, "total", len(all), "anomaly_ratio", summary.AnomalyRatio)

	return Dataset{
		Config:      g.cfg,
		Users:       users,
		Towers:      towers,
		Communities: st.Communities(),
		Social:      st,
		Calls:       all,
		Summary:     summary,
		GeneratedAt: now,
	}, nil
}

// SortCalls orders records by start time, then by call id.
func SortCalls(records []domain.CallRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Start.Equal(records[j].Start) {
			return records[i].Start.Before(records[j].Start)
		}
		return records[i].CallID < records[j].CallID
	})
}

func (g *Generator) phaseDone(phase string, started time.Time, attrs ...any) {
	elapsed := time.Since(started)
	g.observer.PhaseCompleted(phase, elapsed)
	g.logger.Info("phase completed", append([]any{"phase", phase, "elapsed", elapsed}, attrs...)...)
}

func countByType(records []domain.CallRecord) map[domain.AnomalyType]int {
	out := make(map[domain.AnomalyType]int)
	for _, r := range records {
		out[r.AnomalyType]++
	}
	return out
}
