package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/config"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/export"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/generator"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/logging"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/metrics"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/server"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/storage"
)

type generateFlags struct {
	users        int
	towers       int
	days         int
	anomalyRatio float64
	seed         int64
	workers      int
	chunkSize    int
	serial       bool
	outputDir    string
	profile      string
	metricsAddr  string
	s3           bool
	sinks        sinkSelection
}

func newGenerateCmd() *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a dataset and export it to a new run directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, f)
		},
	}

	registerGenerateFlags(cmd.Flags(), &f)
	f.sinks.register(cmd.Flags())
	return cmd
}

func registerGenerateFlags(fs *pflag.FlagSet, f *generateFlags) {
	fs.IntVar(&f.users, "users", 0, "number of subscribers (CDR_NUM_USERS)")
	fs.IntVar(&f.towers, "towers", 0, "number of cell towers (CDR_NUM_CELL_TOWERS)")
	fs.IntVar(&f.days, "days", 0, "days covered by the dataset (CDR_DAYS)")
	fs.Float64Var(&f.anomalyRatio, "anomaly-ratio", 0, "target share of anomalous calls (CDR_ANOMALY_RATIO)")
	fs.Int64Var(&f.seed, "seed", 0, "random seed (CDR_SEED)")
	fs.IntVar(&f.workers, "workers", 0, "parallel chunk workers, 0 for one per CPU (CDR_WORKERS)")
	fs.IntVar(&f.chunkSize, "chunk-size", 0, "calls per parallel chunk (CDR_CALLS_PER_CHUNK)")
	fs.BoolVar(&f.serial, "serial", false, "disable parallel call generation")
	fs.StringVar(&f.outputDir, "output-dir", "", "base directory for run directories (CDR_OUTPUT_DIR)")
	fs.StringVar(&f.profile, "config", "", "YAML profile overlaying generation parameters")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /healthz, /metrics and /status on this address (SERVER_METRICS_ADDR)")
	fs.BoolVar(&f.s3, "s3", false, "upload the run directory to S3")
}

// generatorConfig layers flags explicitly set on the command line over the environment
// and profile settings.
func generatorConfig(cmd *cobra.Command, env config.GenerationConfig, f generateFlags) (generator.Config, error) {
	cfg, err := env.Generator()
	if err != nil {
		return generator.Config{}, err
	}
	if f.profile != "" {
		if err := config.ApplyProfile(f.profile, &cfg); err != nil {
			return generator.Config{}, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("users") {
		cfg.NumUsers = f.users
	}
	if changed("towers") {
		cfg.NumTowers = f.towers
	}
	if changed("days") {
		cfg.Days = f.days
	}
	if changed("anomaly-ratio") {
		cfg.AnomalyRatio = f.anomalyRatio
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("chunk-size") {
		cfg.CallsPerChunk = f.chunkSize
	}
	if f.serial {
		cfg.Parallel = false
	}

	if err := config.ValidateGeneration(cfg); err != nil {
		return generator.Config{}, err
	}
	return cfg, nil
}

func runGenerate(cmd *cobra.Command, f generateFlags) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Logging).With("component", "generate")

	genCfg, err := generatorConfig(cmd, cfg.Generation, f)
	if err != nil {
		return err
	}
	outputDir := cfg.Generation.OutputDir
	if f.outputDir != "" {
		outputDir = f.outputDir
	}
	if f.metricsAddr != "" {
		cfg.HTTP.MetricsAddr = f.metricsAddr
	}

	registry := metrics.NewRegistry()
	progress := server.NewProgress(time.Now())

	// Sinks are opened before generating so that a bad DSN fails fast.
	sinks, err := openSinks(ctx, cfg, f.sinks, registry, logger)
	if err != nil {
		return err
	}
	defer sinks.Close()

	if cfg.HTTP.MetricsAddr != "" {
		stop := startOpsServer(cfg.HTTP, logger, server.RouterDependencies{
			Health:   sinks.Health(),
			Metrics:  registry.Handler(),
			Progress: progress,
		})
		defer stop()
	}

	ds, err := generator.New(genCfg,
		generator.WithLogger(logger),
		generator.WithObserver(generator.Observers(registry, progress)),
	).Generate(ctx)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	res, err := export.New(outputDir,
		export.WithLogger(logger),
		export.WithMetrics(registry),
	).Export(ctx, ds)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if !sinks.Empty() {
		if err := sinks.Ingest(ctx, export.TablesOf(ds)); err != nil {
			return err
		}
		if err := registry.WriteTextfile(filepath.Join(res.RawDir, export.MetricsFile)); err != nil {
			return fmt.Errorf("refresh metrics dump: %w", err)
		}
	}

	if f.s3 {
		if err := uploadRun(ctx, cfg.S3, res.Dir, logger); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Generated %d calls (%d anomalous) for %d users into %s\n",
		ds.Summary.TotalCalls, ds.Summary.AnomalousCalls, len(ds.Users), res.Dir)
	return nil
}

func uploadRun(ctx context.Context, cfg config.S3Config, dir string, logger *slog.Logger) error {
	client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		return err
	}
	uploader, err := storage.NewS3Uploader(client, cfg.Bucket, cfg.Prefix, logger)
	if err != nil {
		return err
	}
	_, err = uploader.UploadDir(ctx, dir)
	return err
}
