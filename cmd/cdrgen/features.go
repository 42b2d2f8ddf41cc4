package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/export"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/features"
)

func newFeaturesCmd() *cobra.Command {
	var callsPath, usersPath, outPath string
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Compute per-user features from exported call and user tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := export.ReadCalls(callsPath)
			if err != nil {
				return err
			}
			users, err := export.ReadUsers(usersPath)
			if err != nil {
				return err
			}
			rows := features.Compute(users, records)
			if err := writeFeatures(outPath, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote features for %d users to %s\n", len(rows), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&callsPath, "calls", "", "path to "+export.CallsFile)
	cmd.Flags().StringVar(&usersPath, "users", "", "path to "+export.UsersFile)
	cmd.Flags().StringVar(&outPath, "out", export.FeaturesFile, "output CSV path")
	_ = cmd.MarkFlagRequired("calls")
	_ = cmd.MarkFlagRequired("users")
	return cmd
}

func writeFeatures(path string, rows []features.UserFeatures) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	buf := bufio.NewWriter(file)
	if err := export.WriteFeatures(buf, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return buf.Flush()
}
