package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/config"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/export"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/graph"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/repository"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/server"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/service"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/sink/postgres"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/sink/stream"
)

type sinkSelection struct {
	graph    bool
	postgres bool
	stream   bool
}

func (s *sinkSelection) register(fs *pflag.FlagSet) {
	fs.BoolVar(&s.graph, "graph", false, "load the dataset into Neo4j (GRAPH_*)")
	fs.BoolVar(&s.postgres, "postgres", false, "copy calls into PostgreSQL (POSTGRES_*)")
	fs.BoolVar(&s.stream, "stream", false, "replay calls on NATS (NATS_*)")
}

// sinkSet owns the connections of the selected sinks.
type sinkSet struct {
	sinks   []service.Sink
	closers []func()
	client  graph.Client
	repo    *repository.Repository
	logger  *slog.Logger
}

func openSinks(ctx context.Context, cfg config.Config, sel sinkSelection, rec service.BatchRecorder, logger *slog.Logger) (*sinkSet, error) {
	set := &sinkSet{logger: logger}

	if sel.graph {
		client, err := buildGraphClient(ctx, cfg.Graph)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("open graph sink: %w", err)
		}
		set.client = client
		set.closers = append(set.closers, func() {
			if err := client.Close(context.Background()); err != nil {
				logger.Warn("closing graph client failed", "error", err)
			}
		})
		set.repo = repository.New(client)
		set.sinks = append(set.sinks, service.NewGraphIngestor(set.repo, service.GraphIngestorOptions{
			Workers:   cfg.Graph.Workers,
			BatchSize: cfg.Graph.BatchSize,
			Recorder:  rec,
			Logger:    logger,
		}))
		logger.Info("connected to graph", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
	}

	if sel.postgres {
		if cfg.Postgres.DSN == "" {
			set.Close()
			return nil, errors.New("open postgres sink: POSTGRES_DSN is required")
		}
		pool, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("open postgres sink: %w", err)
		}
		set.closers = append(set.closers, pool.Close)
		set.sinks = append(set.sinks, postgres.NewWriter(pool, postgres.Options{
			Table:     cfg.Postgres.Table,
			BatchSize: cfg.Postgres.BatchSize,
			Workers:   int(cfg.Postgres.MaxConns),
			Replace:   cfg.Postgres.Replace,
			Recorder:  rec,
			Logger:    logger,
		}))
	}

	if sel.stream {
		nc, err := stream.Connect(cfg.NATS)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("open stream sink: %w", err)
		}
		set.closers = append(set.closers, func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("draining nats connection failed", "error", err)
			}
		})
		set.sinks = append(set.sinks, stream.NewPublisher(nc, stream.Options{
			Subject:  cfg.NATS.Subject,
			Recorder: rec,
			Logger:   logger,
		}))
	}

	return set, nil
}

func buildGraphClient(ctx context.Context, cfg config.GraphConfig) (graph.Client, error) {
	if cfg.URI == "" {
		return nil, graph.ErrMissingURI
	}
	return graph.NewNeo4jClient(ctx, graph.Options{
		URI:            cfg.URI,
		Database:       cfg.Database,
		Username:       cfg.Username,
		Password:       cfg.Password,
		MaxConnections: cfg.MaxConnections,
	})
}

func (s *sinkSet) Empty() bool {
	return len(s.sinks) == 0
}

// Health probes the graph when it is one of the sinks.
func (s *sinkSet) Health() server.HealthService {
	if s.client == nil {
		return nil
	}
	return server.GraphHealthService{Client: s.client}
}

// Ingest pushes tables to every sink concurrently. The first failure cancels the others.
func (s *sinkSet) Ingest(ctx context.Context, tables export.Tables) error {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range s.sinks {
		g.Go(func() error {
			if err := sink.Ingest(gctx, tables); err != nil {
				return fmt.Errorf("%s sink: %w", sink.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("sinks completed", "sinks", len(s.sinks), "duration", time.Since(start))

	if s.repo != nil {
		s.reportGraph(ctx)
	}
	return nil
}

func (s *sinkSet) reportGraph(ctx context.Context) {
	counts, err := s.repo.AnomalyCounts(ctx)
	if err != nil {
		s.logger.Warn("graph verification failed", "error", err)
		return
	}
	intra, err := s.repo.IntraCommunityCalls(ctx)
	if err != nil {
		s.logger.Warn("graph verification failed", "error", err)
		return
	}
	attrs := []any{"intra_community_calls", intra}
	for kind, n := range counts {
		attrs = append(attrs, string(kind), n)
	}
	s.logger.Info("graph contents", attrs...)
}

// Close releases the sink connections in reverse order.
func (s *sinkSet) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func startOpsServer(cfg config.HTTPConfig, logger *slog.Logger, deps server.RouterDependencies) (stop func()) {
	srv := server.New(logger, cfg, server.NewRouter(logger, deps))
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("ops server stopped unexpectedly", "error", err)
		}
	}()
	return func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}
