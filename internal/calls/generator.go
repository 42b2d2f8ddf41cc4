package calls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/sampling"
)

// chunkSeedStride spreads chunk seeds so neighbouring chunks do not share streams.
const chunkSeedStride = 9973

const progressEvery = 10000

// Generation modes reported to observers.
const (
	ModeParallel = "parallel"
	ModeSerial   = "serial"
)

// Config controls the volume and execution of normal call generation.
type Config struct {
	Days            int
	AnomalyRatio    float64
	CallsPerUserMin int
	CallsPerUserMax int
	CallsPerChunk   int
	Workers         int
	Parallel        bool
	Seed            int64
}

// Observer receives generation progress. Implementations must be safe for concurrent use.
type Observer interface {
	ChunkCompleted(mode string, calls int, elapsed time.Duration)
	ParallelFallback()
}

type noopObserver struct{}

func (noopObserver) ChunkCompleted(string, int, time.Duration) {}
func (noopObserver) ParallelFallback()                         {}

// Generator produces the normal (unlabeled) calls of a dataset.
type Generator struct {
	model    *Model
	cfg      Config
	logger   *slog.Logger
	observer Observer

	// test hook run inside each parallel chunk
	beforeParallelChunk func(idx int)
}

// NewGenerator returns a Generator. A nil logger discards output and a nil observer is
// ignored.
func NewGenerator(model *Model, cfg Config, logger *slog.Logger, observer Observer) *Generator {
	if cfg.Days <= 0 {
		cfg.Days = 1
	}
	if cfg.CallsPerUserMin <= 0 {
		cfg.CallsPerUserMin = 15
	}
	if cfg.CallsPerUserMax < cfg.CallsPerUserMin {
		cfg.CallsPerUserMax = cfg.CallsPerUserMin
	}
	if cfg.CallsPerChunk <= 0 {
		cfg.CallsPerChunk = 10000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Generator{model: model, cfg: cfg, logger: logger, observer: observer}
}

// TotalCalls draws the per-user daily call rate once and derives the number of normal
// calls, leaving room for the anomaly share.
func (g *Generator) TotalCalls() int {
	s := sampling.New(g.cfg.Seed)
	perUserPerDay := s.IntRange(g.cfg.CallsPerUserMin, g.cfg.CallsPerUserMax)
	users := len(g.model.pop.Users)
	return int(float64(users*perUserPerDay*g.cfg.Days) * (1 - g.cfg.AnomalyRatio))
}

type chunk struct {
	index int
	start int
	size  int
}

func (g *Generator) plan(total int) []chunk {
	size := g.cfg.CallsPerChunk
	chunks := make([]chunk, 0, (total+size-1)/size)
	for start, idx := 0, 0; start < total; start, idx = start+size, idx+1 {
		n := size
		if start+n > total {
			n = total - start
		}
		chunks = append(chunks, chunk{index: idx, start: start, size: n})
	}
	return chunks
}

// Generate samples the normal calls. Every chunk owns a random source derived from the
// seed and its index and numbers its calls from its offset, so the serial and parallel
// paths yield the same records in the same order. If the parallel path fails for any
// reason other than cancellation the whole run is repeated serially.
func (g *Generator) Generate(ctx context.Context) ([]domain.CallRecord, error) {
	total := g.TotalCalls()
	chunks := g.plan(total)
	g.logger.Info("generating normal calls", "calls", total, "chunks", len(chunks), "parallel", g.cfg.Parallel, "workers", g.cfg.Workers)

	if g.cfg.Parallel && len(chunks) > 1 {
		records, err := g.generateParallel(ctx, chunks, total)
		if err == nil {
			return records, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		g.logger.Warn("parallel generation failed, falling back to serial generation", "error", err)
		g.observer.ParallelFallback()
	}

	return g.generateSerial(ctx, chunks, total)
}

func (g *Generator) generateSerial(ctx context.Context, chunks []chunk, total int) ([]domain.CallRecord, error) {
	records := make([]domain.CallRecord, 0, total)
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		started := time.Now()
		before := len(records)
		records = append(records, g.generateChunk(c)...)
		g.observer.ChunkCompleted(ModeSerial, c.size, time.Since(started))

		if before/progressEvery != len(records)/progressEvery {
			g.logger.Info("generation progress", "generated", len(records), "total", total)
		}
	}
	return records, nil
}

func (g *Generator) generateParallel(ctx context.Context, chunks []chunk, total int) ([]domain.CallRecord, error) {
	results := make([][]domain.CallRecord, len(chunks))
	var generated atomic.Int64

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)

	for _, c := range chunks {
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("chunk %d panicked: %v", c.index, r)
				}
			}()
			if err := egCtx.Err(); err != nil {
				return err
			}
			if g.beforeParallelChunk != nil {
				g.beforeParallelChunk(c.index)
			}

			started := time.Now()
			results[c.index] = g.generateChunk(c)
			g.observer.ChunkCompleted(ModeParallel, c.size, time.Since(started))

			done := generated.Add(int64(c.size))
			if (done-int64(c.size))/progressEvery != done/progressEvery {
				g.logger.Info("generation progress", "generated", done, "total", total)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	records := make([]domain.CallRecord, 0, total)
	for _, part := range results {
		records = append(records, part...)
	}
	if len(records) != total {
		return nil, errors.New("parallel generation returned an incomplete result")
	}
	return records, nil
}

func (g *Generator) generateChunk(c chunk) []domain.CallRecord {
	s := sampling.New(g.cfg.Seed + int64(c.index+1)*chunkSeedStride)
	out := make([]domain.CallRecord, c.size)
	for i := range out {
		out[i] = g.model.NormalCall(s, domain.CallID(c.start+i), g.cfg.Days)
	}
	return out
}
