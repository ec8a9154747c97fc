package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/covid-report-etl/internal/domain"
	"github.com/couchcryptid/covid-report-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// SnapshotSource reads every available daily report. Files that cannot be
// used are reported alongside the snapshots; the error is reserved for a
// source that cannot be read at all.
type SnapshotSource interface {
	LoadSnapshots(ctx context.Context) ([]domain.Snapshot, []domain.FileError, error)
}

// Builder turns snapshots into a complete result.
type Builder interface {
	Build(ctx context.Context, snapshots []domain.Snapshot) (*domain.IngestionResult, error)
}

// ResultSink receives every published result.
type ResultSink interface {
	Name() string
	Publish(ctx context.Context, res *domain.IngestionResult) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the real clock used for scheduling and timing.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithSinks adds sinks that receive each result after it is published.
func WithSinks(sinks ...ResultSink) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, sinks...) }
}

// Pipeline orchestrates the load-assemble-publish cycle and keeps the last
// good result available to readers.
type Pipeline struct {
	source   SnapshotSource
	builder  Builder
	sinks    []ResultSink
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	interval time.Duration

	ingestMu sync.Mutex
	current  atomic.Pointer[domain.IngestionResult]
	ready    atomic.Bool
}

// New creates a Pipeline that re-ingests every interval once Run is called.
func New(src SnapshotSource, b Builder, logger *slog.Logger, metrics *observability.Metrics, interval time.Duration, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:   src,
		builder:  b,
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
		interval: interval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Current returns the last published result, or nil before the first
// successful ingestion. The result is never mutated after publication.
func (p *Pipeline) Current() *domain.IngestionResult {
	return p.current.Load()
}

// CheckReadiness returns nil once a result has been published, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no ingestion result published yet")
	}
	return nil
}

// Ingest runs one full cycle. Any failure before publication leaves the
// previous result in place. Sink failures are logged and counted but do not
// fail the run.
func (p *Pipeline) Ingest(ctx context.Context) (*domain.IngestionResult, error) {
	p.ingestMu.Lock()
	defer p.ingestMu.Unlock()

	start := p.clock.Now()

	snapshots, skipped, err := p.source.LoadSnapshots(ctx)
	if err != nil {
		p.metrics.IngestionRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	rows, rowsSkipped := 0, 0
	for _, s := range snapshots {
		rows += len(s.Rows)
		rowsSkipped += len(s.RowErrors)
	}
	p.metrics.FilesLoaded.Add(float64(len(snapshots)))
	p.metrics.FilesSkipped.Add(float64(len(skipped)))
	p.metrics.RowsIngested.Add(float64(rows))
	p.metrics.RowsSkipped.Add(float64(rowsSkipped))

	res, err := p.builder.Build(ctx, snapshots)
	if err != nil {
		p.metrics.IngestionRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build result: %w", err)
	}
	res.Skipped = skipped

	p.current.Store(res)
	p.ready.Store(true)

	p.metrics.IngestionRuns.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.Set(float64(res.BuiltAt.Unix()))
	p.metrics.ObservationRows.Set(float64(res.Observations.Len()))
	p.metrics.CountryRows.Set(float64(res.Countries.Len()))
	p.metrics.DatesIndexed.Set(float64(res.Dates.Len()))

	p.logger.Info("ingestion published",
		"files", len(snapshots),
		"files_skipped", len(skipped),
		"rows", rows,
		"rows_skipped", rowsSkipped,
		"dates", res.Dates.Len(),
		"countries", len(res.Countries.Regions()),
	)

	p.publish(ctx, res)
	p.metrics.IngestionDuration.Observe(p.clock.Since(start).Seconds())
	return res, nil
}

func (p *Pipeline) publish(ctx context.Context, res *domain.IngestionResult) {
	for _, sink := range p.sinks {
		start := p.clock.Now()
		err := sink.Publish(ctx, res)
		p.metrics.SinkPublishDuration.WithLabelValues(sink.Name()).Observe(p.clock.Since(start).Seconds())
		if err != nil {
			p.metrics.SinkPublishErrors.WithLabelValues(sink.Name()).Inc()
			p.logger.Error("sink publish failed", "sink", sink.Name(), "error", err)
		}
	}
}

// Run ingests immediately and then on every interval tick until the context
// is cancelled. A failed run is logged and waits for the next tick.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval, "sinks", len(p.sinks))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	p.runOnce(ctx)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.runOnce(ctx)
		}
	}
}

func (p *Pipeline) runOnce(ctx context.Context) {
	if _, err := p.Ingest(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("ingestion failed", "error", err)
	}
}
