package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/config"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/export"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/logging"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/metrics"
)

var errNoSinks = errors.New("select at least one of --graph, --postgres or --stream")

func newIngestCmd() *cobra.Command {
	var (
		datasetDir string
		sel        sinkSelection
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Push an exported run to the selected sinks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !sel.graph && !sel.postgres && !sel.stream {
				return errNoSinks
			}
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := logging.New(cfg.Logging).With("component", "ingest")

			tables, err := export.ReadDataset(datasetDir)
			if err != nil {
				return err
			}
			if len(tables.Calls) == 0 {
				return fmt.Errorf("no call records in %s", datasetDir)
			}
			logger.Info("dataset loaded", "dir", datasetDir, "users", len(tables.Users), "calls", len(tables.Calls))

			sinks, err := openSinks(ctx, cfg, sel, metrics.NewRegistry(), logger)
			if err != nil {
				return err
			}
			defer sinks.Close()

			if err := sinks.Ingest(ctx, tables); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d calls from %s\n", len(tables.Calls), datasetDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetDir, "dataset-dir", "", "run directory (or its raw/ subdirectory) written by generate")
	_ = cmd.MarkFlagRequired("dataset-dir")
	sel.register(cmd.Flags())
	return cmd
}
