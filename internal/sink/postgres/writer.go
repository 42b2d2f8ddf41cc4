// Package postgres copies call records into a PostgreSQL table.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/config"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/export"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/service"
)

// SinkName labels postgres batches in metrics and logs.
const SinkName = "postgres"

// Columns are the table columns, in COPY order.
var Columns = []string{
	"call_id",
	"caller_id",
	"callee_id",
	"start_time",
	"end_time",
	"duration_seconds",
	"first_cell_id",
	"last_cell_id",
	"caller_imei",
	"caller_imsi",
	"callee_imsi",
	"is_anomaly",
	"anomaly_type",
}

// DB is the subset of pgxpool.Pool used by the Writer.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Options configures a Writer. Replace empties the table before copying, so the
// table holds exactly one dataset.
type Options struct {
	Table     string
	BatchSize int
	Workers   int
	Replace   bool
	Recorder  service.BatchRecorder
	Logger    *slog.Logger
}

// Writer copies call records into Postgres in concurrent COPY batches.
type Writer struct {
	db       DB
	table    pgx.Identifier
	replace  bool
	bulk     *service.BulkIngestor
	recorder service.BatchRecorder
	logger   *slog.Logger
}

// Connect opens a connection pool sized from cfg and pings the server.
func Connect(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}
	return pool, nil
}

// NewWriter creates a Writer over db.
func NewWriter(db DB, opts Options) *Writer {
	if opts.Table == "" {
		opts.Table = "cdr_call_records"
	}
	if opts.Recorder == nil {
		opts.Recorder = service.NoopRecorder
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Writer{
		db:       db,
		table:    pgx.Identifier{opts.Table},
		replace:  opts.Replace,
		bulk:     service.NewBulkIngestor(opts.Workers, opts.BatchSize),
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

func (w *Writer) Name() string { return SinkName }

// Ingest creates the table when missing and copies every call record.
func (w *Writer) Ingest(ctx context.Context, t export.Tables) error {
	if err := w.Migrate(ctx); err != nil {
		return err
	}
	if w.replace {
		if _, err := w.db.Exec(ctx, "TRUNCATE "+w.table.Sanitize()); err != nil {
			return fmt.Errorf("truncate %s: %w", w.table.Sanitize(), err)
		}
	}

	start := time.Now()
	err := w.bulk.Run(ctx, len(t.Calls), func(ctx context.Context, b service.Batch) error {
		return service.Timed(w.recorder, SinkName, b.Len(), func() error {
			return w.copy(ctx, t.Calls[b.Lo:b.Hi])
		})
	})
	if err != nil {
		return fmt.Errorf("postgres ingest: %w", err)
	}

	w.logger.Info("postgres ingest completed",
		"table", w.table.Sanitize(),
		"calls", len(t.Calls),
		"duration", time.Since(start),
	)
	return nil
}

// Migrate creates the call table and its indexes.
func (w *Writer) Migrate(ctx context.Context) error {
	name := w.table.Sanitize()
	stmts := []string{
		fmt.Sprintf(createTableSQL, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (caller_id, start_time)`,
			pgx.Identifier{w.table[0] + "_caller_idx"}.Sanitize(), name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (anomaly_type) WHERE is_anomaly`,
			pgx.Identifier{w.table[0] + "_anomaly_idx"}.Sanitize(), name),
	}
	for _, stmt := range stmts {
		if _, err := w.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

func (w *Writer) copy(ctx context.Context, records []domain.CallRecord) error {
	n, err := w.db.CopyFrom(ctx, w.table, Columns, pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		return Row(records[i]), nil
	}))
	if err != nil {
		return fmt.Errorf("copy %d calls starting at %s: %w", len(records), records[0].CallID, err)
	}
	if int(n) != len(records) {
		return fmt.Errorf("copy starting at %s: wrote %d of %d rows", records[0].CallID, n, len(records))
	}
	return nil
}

// Row returns the COPY values of a record in Columns order.
func Row(c domain.CallRecord) []any {
	return []any{
		c.CallID,
		c.CallerID,
		c.CalleeID,
		c.Start,
		c.End,
		int32(c.DurationSeconds),
		c.FirstCellID,
		c.LastCellID,
		c.CallerIMEI,
		c.CallerIMSI,
		c.CalleeIMSI,
		c.IsAnomaly,
		string(c.AnomalyType),
	}
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS %s (
	call_id          TEXT PRIMARY KEY,
	caller_id        TEXT NOT NULL,
	callee_id        TEXT NOT NULL,
	start_time       TIMESTAMPTZ NOT NULL,
	end_time         TIMESTAMPTZ NOT NULL,
	duration_seconds INTEGER NOT NULL CHECK (duration_seconds >= 1),
	first_cell_id    TEXT NOT NULL,
	last_cell_id     TEXT NOT NULL,
	caller_imei      TEXT NOT NULL,
	caller_imsi      TEXT NOT NULL,
	callee_imsi      TEXT NOT NULL,
	is_anomaly       BOOLEAN NOT NULL,
	anomaly_type     TEXT NOT NULL
)`
