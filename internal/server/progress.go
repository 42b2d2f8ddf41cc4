package server

import (
	"sync"
	"time"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
)

// Progress tracks a running generation for the /status endpoint. It implements
// generator.Observer.
type Progress struct {
	mu        sync.Mutex
	startedAt time.Time
	phases    []PhaseStatus
	chunks    int
	calls     int
	fallback  bool
	records   map[domain.AnomalyType]int
}

// PhaseStatus is one completed pipeline phase.
type PhaseStatus struct {
	Phase   string  `json:"phase"`
	Seconds float64 `json:"seconds"`
}

// Snapshot is the JSON body of /status.
type Snapshot struct {
	StartedAt        time.Time                  `json:"started_at"`
	Phases           []PhaseStatus              `json:"phases"`
	ChunksCompleted  int                        `json:"chunks_completed"`
	NormalCalls      int                        `json:"normal_calls"`
	ParallelFallback bool                       `json:"parallel_fallback"`
	Records          map[domain.AnomalyType]int `json:"records"`
}

// NewProgress creates a tracker started at now.
func NewProgress(now time.Time) *Progress {
	return &Progress{
		startedAt: now,
		records:   make(map[domain.AnomalyType]int),
	}
}

func (p *Progress) ChunkCompleted(_ string, calls int, _ time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks++
	p.calls += calls
}

// ParallelFallback discards the partial parallel progress; the serial rerun starts from zero.
func (p *Progress) ParallelFallback() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = true
	p.chunks = 0
	p.calls = 0
}

func (p *Progress) PhaseCompleted(phase string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phases = append(p.phases, PhaseStatus{Phase: phase, Seconds: elapsed.Seconds()})
}

func (p *Progress) RecordsGenerated(kind domain.AnomalyType, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[kind] += n
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	records := make(map[domain.AnomalyType]int, len(p.records))
	for k, v := range p.records {
		records[k] = v
	}
	return Snapshot{
		StartedAt:        p.startedAt,
		Phases:           append([]PhaseStatus(nil), p.phases...),
		ChunksCompleted:  p.chunks,
		NormalCalls:      p.calls,
		ParallelFallback: p.fallback,
		Records:          records,
	}
}
