package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/config"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/export"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGenerateThenFeatures(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	base := t.TempDir()

	out, err := execute(t, "generate", "--users", "100", "--towers", "5", "--days", "1", "--seed", "7", "--output-dir", base)
	require.NoError(t, err)
	assert.Contains(t, out, "for 100 users")

	runs, err := filepath.Glob(filepath.Join(base, "run_*"))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	raw := filepath.Join(runs[0], export.RawDir)
	for _, name := range []string{export.CallsFile, export.UsersFile, export.TowersFile, export.CommunitiesFile, export.MetadataFile, export.ReadmeFile, export.MetricsFile} {
		assert.FileExists(t, filepath.Join(raw, name))
	}

	featuresPath := filepath.Join(base, "features.csv")
	out, err = execute(t, "features",
		"--calls", filepath.Join(raw, export.CallsFile),
		"--users", filepath.Join(raw, export.UsersFile),
		"--out", featuresPath,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote features for 100 users")

	f, err := os.Open(featuresPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 101)
	assert.Equal(t, export.FeatureColumns, rows[0])
}

func TestFeaturesRequiresInputs(t *testing.T) {
	_, err := execute(t, "features", "--out", filepath.Join(t.TempDir(), "f.csv"))
	assert.ErrorContains(t, err, "required flag")
}

func TestIngestRequiresASink(t *testing.T) {
	_, err := execute(t, "ingest", "--dataset-dir", t.TempDir())
	assert.ErrorIs(t, err, errNoSinks)
}

func TestGeneratorConfigLayering(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(profile, []byte("num_users: 300\ndays: 2\n"), 0o644))

	env := config.GenerationConfig{
		NumUsers: 1000, NumTowers: 20, Days: 7, AnomalyRatio: 0.05, Seed: 42,
		CallsPerUserMin: 15, CallsPerUserMax: 25, Parallel: true, CallsPerChunk: 10000,
		StartDate: "2024-01-01",
	}

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, users, days int, seed int64, parallel bool)
	}{
		{
			name: "environment only",
			check: func(t *testing.T, users, days int, seed int64, parallel bool) {
				assert.Equal(t, 1000, users)
				assert.Equal(t, 7, days)
				assert.True(t, parallel)
			},
		},
		{
			name: "profile overlays environment",
			args: []string{"--config", profile},
			check: func(t *testing.T, users, days int, _ int64, _ bool) {
				assert.Equal(t, 300, users)
				assert.Equal(t, 2, days)
			},
		},
		{
			name: "flags override profile",
			args: []string{"--config", profile, "--users", "50", "--seed", "0", "--serial"},
			check: func(t *testing.T, users, days int, seed int64, parallel bool) {
				assert.Equal(t, 50, users)
				assert.Equal(t, 2, days)
				assert.Zero(t, seed)
				assert.False(t, parallel)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, f := parsedGenerate(t, tt.args...)
			cfg, err := generatorConfig(cmd, env, *f)
			require.NoError(t, err)
			tt.check(t, cfg.NumUsers, cfg.Days, cfg.Seed, cfg.Parallel)
		})
	}
}

func TestGeneratorConfigRejectsInvalidFlags(t *testing.T) {
	env := config.GenerationConfig{NumUsers: 100, NumTowers: 5, Days: 1, CallsPerUserMin: 1, CallsPerUserMax: 2, CallsPerChunk: 10}
	cmd, f := parsedGenerate(t, "--anomaly-ratio", "1.5")
	_, err := generatorConfig(cmd, env, *f)
	assert.ErrorContains(t, err, "AnomalyRatio")
}

// parsedGenerate parses args with the generate flag set without running the command.
func parsedGenerate(t *testing.T, args ...string) (*cobra.Command, *generateFlags) {
	t.Helper()
	var f generateFlags
	cmd := &cobra.Command{Use: "generate"}
	registerGenerateFlags(cmd.Flags(), &f)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd, &f
}

func TestRootListsSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"generate", "features", "ingest"} {
		assert.True(t, strings.Contains(out, sub), sub)
	}
}
