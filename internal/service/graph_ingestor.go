package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/export"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/repository"
)

// GraphSinkName labels graph batches in metrics and logs.
const GraphSinkName = "neo4j"

// GraphIngestor loads a dataset into the graph through the repository.
type GraphIngestor struct {
	repo     *repository.Repository
	bulk     *BulkIngestor
	recorder BatchRecorder
	logger   *slog.Logger
}

// GraphIngestorOptions tunes a GraphIngestor.
type GraphIngestorOptions struct {
	Workers   int
	BatchSize int
	Recorder  BatchRecorder
	Logger    *slog.Logger
}

// NewGraphIngestor creates a GraphIngestor writing through repo.
func NewGraphIngestor(repo *repository.Repository, opts GraphIngestorOptions) *GraphIngestor {
	if opts.Recorder == nil {
		opts.Recorder = NoopRecorder
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &GraphIngestor{
		repo:     repo,
		bulk:     NewBulkIngestor(opts.Workers, opts.BatchSize),
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

func (g *GraphIngestor) Name() string { return GraphSinkName }

// Ingest writes towers, users, communities and calls in that order. Each stage
// only starts once the previous one has fully succeeded, because later
// statements MATCH nodes created earlier.
func (g *GraphIngestor) Ingest(ctx context.Context, t export.Tables) error {
	start := time.Now()
	if err := g.repo.EnsureSchema(ctx); err != nil {
		return err
	}

	stages := []struct {
		name  string
		total int
		write func(ctx context.Context, b Batch) error
	}{
		{"towers", len(t.Towers), func(ctx context.Context, b Batch) error {
			return g.repo.UpsertTowers(ctx, t.Towers[b.Lo:b.Hi])
		}},
		{"users", len(t.Users), func(ctx context.Context, b Batch) error {
			return g.repo.UpsertUsers(ctx, t.Users[b.Lo:b.Hi])
		}},
		{"communities", len(t.Communities), func(ctx context.Context, b Batch) error {
			return g.repo.UpsertCommunities(ctx, t.Communities[b.Lo:b.Hi])
		}},
		{"calls", len(t.Calls), func(ctx context.Context, b Batch) error {
			return g.repo.UpsertCalls(ctx, t.Calls[b.Lo:b.Hi])
		}},
	}

	for _, stage := range stages {
		err := g.bulk.Run(ctx, stage.total, func(ctx context.Context, b Batch) error {
			return Timed(g.recorder, GraphSinkName, b.Len(), func() error {
				return stage.write(ctx, b)
			})
		})
		if err != nil {
			return fmt.Errorf("graph ingest %s: %w", stage.name, err)
		}
		g.logger.Debug("graph stage ingested", "stage", stage.name, "rows", stage.total)
	}

	g.logger.Info("graph ingest completed",
		"users", len(t.Users),
		"calls", len(t.Calls),
		"duration", time.Since(start),
	)
	return nil
}
