// Package export writes generated datasets to disk and reads exported tables back.
package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/features"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/generator"
)

// Output layout of a run directory.
const (
	RawDir       = "raw"
	ProcessedDir = "processed"

	CallsFile       = "cdr_call_records.csv"
	UsersFile       = "cdr_user_profiles.csv"
	TowersFile      = "cdr_cell_towers.csv"
	CommunitiesFile = "cdr_communities.csv"
	MetadataFile    = "dataset_metadata.json"
	ReadmeFile      = "README.md"
	MetricsFile     = "generation_metrics.prom"
	FeaturesFile    = "cdr_user_features.csv"

	runDirLayout = "20060102_150405"
)

// Metrics receives export progress and dumps the run's metrics next to the data.
type Metrics interface {
	TableWritten(table string, rows int)
	WriteTextfile(path string) error
}

// Result describes an exported run.
type Result struct {
	RunID        string
	Dir          string
	RawDir       string
	ProcessedDir string
	Files        []string
}

// Option customises an Exporter.
type Option func(*Exporter)

// WithLogger sets the exporter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time used to name the run directory.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Exporter) {
		e.metrics = m
	}
}

// WithRunID fixes the run id instead of drawing a random UUID.
func WithRunID(id string) Option {
	return func(e *Exporter) {
		e.runID = id
	}
}

// Exporter writes datasets under a base output directory.
type Exporter struct {
	baseDir string
	logger  *slog.Logger
	now     func() time.Time
	metrics Metrics
	runID   string
}

// New returns an Exporter writing under baseDir.
func New(baseDir string, opts ...Option) *Exporter {
	e := &Exporter{
		baseDir: baseDir,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunDir returns the directory name of a run started at t.
func RunDir(baseDir string, t time.Time) string {
	return filepath.Join(baseDir, "run_"+t.Format(runDirLayout))
}

// Export writes every table, the metadata, the README, the feature table and the metrics
// dump of ds into a fresh run directory.
func (e *Exporter) Export(ctx context.Context, ds generator.Dataset) (Result, error) {
	runID := e.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	dir := RunDir(e.baseDir, e.now())
	res := Result{
		RunID:        runID,
		Dir:          dir,
		RawDir:       filepath.Join(dir, RawDir),
		ProcessedDir: filepath.Join(dir, ProcessedDir),
	}
	for _, d := range []string{res.RawDir, res.ProcessedDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return Result{}, fmt.Errorf("create output dir: %w", err)
		}
	}

	tables := []struct {
		name  string
		dir   string
		rows  int
		write func(io.Writer) error
	}{
		{CallsFile, res.RawDir, len(ds.Calls), func(w io.Writer) error { return WriteCalls(w, ds.Calls) }},
		{UsersFile, res.RawDir, len(ds.Users), func(w io.Writer) error { return WriteUsers(w, ds.Users) }},
		{TowersFile, res.RawDir, len(ds.Towers), func(w io.Writer) error { return WriteTowers(w, ds.Towers) }},
		{CommunitiesFile, res.RawDir, memberships(ds.Communities), func(w io.Writer) error { return WriteCommunities(w, ds.Communities) }},
	}
	for _, tbl := range tables {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := e.writeTable(&res, tbl.dir, tbl.name, tbl.rows, tbl.write); err != nil {
			return Result{}, err
		}
	}

	rows := features.Compute(ds.Users, ds.Calls)
	if err := e.writeTable(&res, res.ProcessedDir, FeaturesFile, len(rows), func(w io.Writer) error {
		return WriteFeatures(w, rows)
	}); err != nil {
		return Result{}, err
	}

	md := Metadata{
		RunID:       runID,
		GeneratedAt: ds.GeneratedAt,
		Config:      ds.Config,
		Statistics:  ds.Summary,
		Files:       []string{CallsFile, UsersFile, TowersFile, CommunitiesFile, MetadataFile, ReadmeFile, filepath.Join("..", ProcessedDir, FeaturesFile)},
	}
	if e.metrics != nil {
		md.Files = append(md.Files, MetricsFile)
	}
	if err := e.writeFile(&res, res.RawDir, MetadataFile, func(w io.Writer) error { return WriteMetadata(w, md) }); err != nil {
		return Result{}, err
	}
	if err := e.writeFile(&res, res.RawDir, ReadmeFile, func(w io.Writer) error { return WriteReadme(w, md) }); err != nil {
		return Result{}, err
	}

	if e.metrics != nil {
		path := filepath.Join(res.RawDir, MetricsFile)
		if err := e.metrics.WriteTextfile(path); err != nil {
			return Result{}, fmt.Errorf("write %s: %w", path, err)
		}
		res.Files = append(res.Files, path)
	}

	e.logger.Info("dataset exported", "run_id", runID, "dir", dir, "files", len(res.Files))
	return res, nil
}

func (e *Exporter) writeTable(res *Result, dir, name string, rows int, write func(io.Writer) error) error {
	if err := e.writeFile(res, dir, name, write); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.TableWritten(name, rows)
	}
	e.logger.Debug("table written", "file", name, "rows", rows)
	return nil
}

func (e *Exporter) writeFile(res *Result, dir, name string, write func(io.Writer) error) (err error) {
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	buf := bufio.NewWriter(file)
	if err := write(buf); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	res.Files = append(res.Files, path)
	return nil
}

func memberships(communities []domain.Community) int {
	n := 0
	for _, c := range communities {
		n += c.Size()
	}
	return n
}

// Tables holds the raw tables of an exported run.
type Tables struct {
	Users       []domain.User
	Towers      []domain.CellTower
	Communities []domain.Community
	Calls       []domain.CallRecord
}

// TablesOf returns the raw tables of a generated dataset.
func TablesOf(ds generator.Dataset) Tables {
	return Tables{
		Users:       ds.Users,
		Towers:      ds.Towers,
		Communities: ds.Communities,
		Calls:       ds.Calls,
	}
}

// ReadDataset loads the four raw tables from a run directory or its raw/ subdirectory.
func ReadDataset(dir string) (Tables, error) {
	raw := dir
	if _, err := os.Stat(filepath.Join(dir, RawDir, CallsFile)); err == nil {
		raw = filepath.Join(dir, RawDir)
	}

	var (
		t   Tables
		err error
	)
	if t.Users, err = ReadUsers(filepath.Join(raw, UsersFile)); err != nil {
		return Tables{}, err
	}
	if t.Towers, err = ReadTowers(filepath.Join(raw, TowersFile)); err != nil {
		return Tables{}, err
	}
	if t.Communities, err = ReadCommunities(filepath.Join(raw, CommunitiesFile)); err != nil {
		return Tables{}, err
	}
	if t.Calls, err = ReadCalls(filepath.Join(raw, CallsFile)); err != nil {
		return Tables{}, err
	}
	return t, nil
}
