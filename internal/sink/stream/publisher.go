// Package stream replays call records as JSON events on NATS.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/config"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/export"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/generator"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/service"
)

// SinkName labels stream batches in metrics and logs.
const SinkName = "nats"

// Conn is the subset of *nats.Conn used by the Publisher.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// CallEvent is the wire form of a call record.
type CallEvent struct {
	CallID          string    `json:"call_id"`
	CallerID        string    `json:"caller_id"`
	CalleeID        string    `json:"callee_id"`
	Start           time.Time `json:"start_time"`
	End             time.Time `json:"end_time"`
	DurationSeconds int       `json:"duration"`
	FirstCellID     string    `json:"first_cell_id"`
	LastCellID      string    `json:"last_cell_id"`
	CallerIMEI      string    `json:"caller_imei"`
	CallerIMSI      string    `json:"caller_imsi"`
	CalleeIMSI      string    `json:"callee_imsi"`
	IsAnomaly       bool      `json:"is_anomaly"`
	AnomalyType     string    `json:"anomaly_type"`
}

// NewCallEvent converts a record to its wire form.
func NewCallEvent(c domain.CallRecord) CallEvent {
	return CallEvent{
		CallID:          c.CallID,
		CallerID:        c.CallerID,
		CalleeID:        c.CalleeID,
		Start:           c.Start,
		End:             c.End,
		DurationSeconds: c.DurationSeconds,
		FirstCellID:     c.FirstCellID,
		LastCellID:      c.LastCellID,
		CallerIMEI:      c.CallerIMEI,
		CallerIMSI:      c.CallerIMSI,
		CalleeIMSI:      c.CalleeIMSI,
		IsAnomaly:       c.IsAnomaly,
		AnomalyType:     string(c.AnomalyType),
	}
}

// Options configures a Publisher.
type Options struct {
	Subject   string
	BatchSize int
	Recorder  service.BatchRecorder
	Logger    *slog.Logger
}

// Publisher publishes calls in start-time order. Each record goes to
// "<subject>.<anomaly_type>" so consumers can subscribe to anomalies alone.
// Batches are flushed one after another to keep the order on the wire.
type Publisher struct {
	conn      Conn
	subject   string
	batchSize int
	recorder  service.BatchRecorder
	logger    *slog.Logger
}

// Connect dials the NATS server described by cfg.
func Connect(cfg config.NATSConfig) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(10),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// NewPublisher creates a Publisher over conn.
func NewPublisher(conn Conn, opts Options) *Publisher {
	if opts.Subject == "" {
		opts.Subject = "cdr.calls"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Recorder == nil {
		opts.Recorder = service.NoopRecorder
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Publisher{
		conn:      conn,
		subject:   opts.Subject,
		batchSize: opts.BatchSize,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
	}
}

func (p *Publisher) Name() string { return SinkName }

// Subject returns the subject a record is published on.
func (p *Publisher) Subject(c domain.CallRecord) string {
	return p.subject + "." + string(c.AnomalyType)
}

// Ingest publishes every call of the dataset.
func (p *Publisher) Ingest(ctx context.Context, t export.Tables) error {
	records := slices.Clone(t.Calls)
	generator.SortCalls(records)

	start := time.Now()
	for _, b := range service.Batches(len(records), p.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := records[b.Lo:b.Hi]
		err := service.Timed(p.recorder, SinkName, len(batch), func() error {
			return p.publish(ctx, batch)
		})
		if err != nil {
			return fmt.Errorf("stream ingest: %w", err)
		}
	}

	p.logger.Info("stream replay completed",
		"subject", p.subject,
		"calls", len(records),
		"duration", time.Since(start),
	)
	return nil
}

func (p *Publisher) publish(ctx context.Context, batch []domain.CallRecord) error {
	for _, c := range batch {
		data, err := json.Marshal(NewCallEvent(c))
		if err != nil {
			return fmt.Errorf("encode %s: %w", c.CallID, err)
		}
		if err := p.conn.Publish(p.Subject(c), data); err != nil {
			return fmt.Errorf("publish %s: %w", c.CallID, err)
		}
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
