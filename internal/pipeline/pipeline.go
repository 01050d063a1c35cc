// Package pipeline publishes report lifecycle events asynchronously: callers
// enqueue without blocking and a single loop writes batches to the event stream.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
	"github.com/0xbhavyaalag/EcoSphere/internal/observability"
)

// BatchLoader writes multiple events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.ReportEvent) error
}

// Options controls batching and retry pacing.
type Options struct {
	BatchSize      int
	FlushInterval  time.Duration
	QueueSize      int
	InitialBackoff time.Duration // default 200ms
	MaxBackoff     time.Duration // default 5s
}

// Publisher batches report events onto a BatchLoader.
type Publisher struct {
	loader  BatchLoader
	opts    Options
	queue   chan domain.ReportEvent
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	running atomic.Bool
}

// New creates a Publisher with the given loader and observability.
func New(loader BatchLoader, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	if opts.BatchSize < 1 {
		opts.BatchSize = 50
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1024
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}
	return &Publisher{
		loader:  loader,
		opts:    opts,
		queue:   make(chan domain.ReportEvent, opts.QueueSize),
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
}

// SetClock swaps the clock driving the flush ticker.
func (p *Publisher) SetClock(c clockwork.Clock) { p.clock = c }

// Publish enqueues an event without blocking. When the queue is full the event
// is dropped and counted.
func (p *Publisher) Publish(e domain.ReportEvent) {
	select {
	case p.queue <- e:
	default:
		p.metrics.EventsDropped.Inc()
		p.logger.Warn("event queue full, dropping event", "type", e.Type, "report_id", e.ReportID)
	}
}

// CheckReadiness returns nil while the publish loop is running.
func (p *Publisher) CheckReadiness(_ context.Context) error {
	if !p.running.Load() {
		return errors.New("event publisher is not running")
	}
	return nil
}

// Run executes the batch publish loop until the context is cancelled. Events
// still buffered at shutdown get one final write attempt.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("event publisher started", "batch_size", p.opts.BatchSize, "flush_interval", p.opts.FlushInterval)
	p.running.Store(true)
	p.metrics.PublisherActive.Set(1)
	defer func() {
		p.running.Store(false)
		p.metrics.PublisherActive.Set(0)
	}()

	ticker := p.clock.NewTicker(p.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]domain.ReportEvent, 0, p.opts.BatchSize)
	backoff := p.opts.InitialBackoff

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("event publisher stopping", "reason", ctx.Err())
			p.drain(batch)
			return nil
		case e := <-p.queue:
			batch = append(batch, e)
			if len(batch) < p.opts.BatchSize {
				continue
			}
		case <-ticker.Chan():
			if len(batch) == 0 {
				continue
			}
		}

		if !p.flush(ctx, batch, &backoff) {
			p.drain(batch)
			return nil
		}
		batch = make([]domain.ReportEvent, 0, p.opts.BatchSize)
	}
}

// flush writes batch, retrying with exponential backoff. Returns false if the
// context ended before the batch was written.
func (p *Publisher) flush(ctx context.Context, batch []domain.ReportEvent, backoff *time.Duration) bool {
	for {
		err := p.loader.LoadBatch(ctx, batch)
		if err == nil {
			p.metrics.EventsPublished.Add(float64(len(batch)))
			*backoff = p.opts.InitialBackoff
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		p.metrics.PublishErrors.Inc()
		p.logger.Error("publish batch failed", "error", err, "batch_size", len(batch), "retry_in", *backoff)
		if !sharedretry.SleepWithContext(ctx, *backoff) {
			return false
		}
		*backoff = sharedretry.NextBackoff(*backoff, p.opts.MaxBackoff)
	}
}

// drain makes one bounded attempt to write what is buffered or still queued.
func (p *Publisher) drain(batch []domain.ReportEvent) {
	for {
		select {
		case e := <-p.queue:
			batch = append(batch, e)
			continue
		default:
		}
		break
	}
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.loader.LoadBatch(ctx, batch); err != nil {
		p.metrics.PublishErrors.Inc()
		p.logger.Error("final publish failed, events lost", "error", err, "batch_size", len(batch))
		return
	}
	p.metrics.EventsPublished.Add(float64(len(batch)))
}
