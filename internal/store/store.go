// Package store keeps the report collection, newest first, under a single key
// of a byte store and holds its serialized size within a budget.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
	"github.com/0xbhavyaalag/EcoSphere/internal/observability"
)

// Options configures the collection budget.
type Options struct {
	Key          string
	MaxBytes     int
	Threshold    float64 // fraction of MaxBytes the collection may occupy
	QuotaRetries int     // oldest-entry evictions tried when the backend is full
}

// Budget returns the byte size above which Append evicts old reports.
func (o Options) Budget() int {
	return int(float64(o.MaxBytes) * o.Threshold)
}

// Store is the in-memory report collection mirrored to a KV backend.
// Every method is safe for concurrent use; mutations and the write that
// follows them happen under one lock.
type Store struct {
	mu      sync.Mutex
	kv      KV
	opts    Options
	reports []domain.Report // newest first
	sizes   []int           // encoded size of each report, parallel to reports
	loaded  bool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an empty store. Call Load to restore persisted reports.
func New(kv KV, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		kv:      kv,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Load restores the collection. Missing, unreadable or corrupt state yields an
// empty collection and a warning; individual unusable records are skipped.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports, s.sizes = nil, nil
	s.loaded = true

	b, err := s.kv.Get(ctx, s.opts.Key)
	if errors.Is(err, ErrNotFound) {
		s.logger.Info("no stored reports", "key", s.opts.Key)
		return
	}
	if err != nil {
		s.logger.Warn("failed to read stored reports, starting empty", "key", s.opts.Key, "error", err)
		return
	}

	reports, skipped, err := decode(b)
	if err != nil {
		s.logger.Warn("stored reports are corrupt, starting empty", "key", s.opts.Key, "error", err)
		return
	}
	if skipped > 0 {
		s.logger.Warn("skipped unusable stored reports", "key", s.opts.Key, "skipped", skipped)
	}

	s.reports = reports
	s.sizes = make([]int, len(reports))
	for i, r := range reports {
		s.sizes[i] = recordSize(r)
	}
	s.metrics.StoreBytes.Set(float64(s.sizeLocked()))
	s.logger.Info("loaded reports", "key", s.opts.Key, "count", len(reports))
}

// Append inserts r at the front and evicts the oldest reports, one at a time,
// until the serialized size fits the budget. r itself is never evicted.
// It returns the evicted reports, oldest first.
func (s *Store) Append(r domain.Report) []domain.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(r)
}

// Persist writes the collection. See Add for the quota handling.
func (s *Store) Persist(ctx context.Context) ([]domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

// Add appends r and persists the collection in one step. When the backend
// reports its quota exceeded, the oldest entry is dropped from a candidate copy
// and the write retried, up to QuotaRetries times and never dropping r. A
// successful retry commits the drop; a final failure returns a
// *domain.StorageError and leaves the in-memory collection (r included) as is.
// The returned slice lists every report evicted, oldest first.
func (s *Store) Add(ctx context.Context, r domain.Report) ([]domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := s.appendLocked(r)
	dropped, err := s.persistLocked(ctx)
	return append(evicted, dropped...), err
}

// UpdateStatus sets the status of report id and persists. An absent id returns
// domain.ErrReportNotFound; an unchanged status returns changed=false. Neither
// writes to the backend. The returned report carries the previous status.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.Status) (prev domain.Report, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return domain.Report{}, false, domain.ErrReportNotFound
	}
	prev = s.reports[i]
	if prev.Status == status {
		return prev, false, nil
	}

	s.reports[i].Status = status
	s.sizes[i] = recordSize(s.reports[i])
	if _, err := s.persistLocked(ctx); err != nil {
		return prev, true, err
	}
	return prev, true, nil
}

// Remove deletes report id and persists. An absent id returns
// domain.ErrReportNotFound without writing.
func (s *Store) Remove(ctx context.Context, id string) (domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return domain.Report{}, domain.ErrReportNotFound
	}
	removed := s.reports[i]
	s.reports = append(s.reports[:i:i], s.reports[i+1:]...)
	s.sizes = append(s.sizes[:i:i], s.sizes[i+1:]...)

	if _, err := s.persistLocked(ctx); err != nil {
		return removed, err
	}
	return removed, nil
}

// Get returns report id.
func (s *Store) Get(id string) (domain.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return domain.Report{}, false
	}
	return s.reports[i], true
}

// Contains reports whether id is in the collection.
func (s *Store) Contains(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// All returns a copy of the collection, newest first.
func (s *Store) All() []domain.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Report(nil), s.reports...)
}

// Filter returns the reports with the given status ("" or "all" for every report).
func (s *Store) Filter(status string) []domain.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.FilterReports(s.reports, status)
}

// Stats counts the collection by status.
func (s *Store) Stats() domain.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ComputeStats(s.reports)
}

// Len returns the number of reports.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

// Size returns the serialized size of the collection in bytes.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sizeLocked()
}

// CheckReadiness reports an error until Load has run or when the backend is unreachable.
func (s *Store) CheckReadiness(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()

	if !loaded {
		return errors.New("report store not loaded")
	}
	if p, ok := s.kv.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("report store backend: %w", err)
		}
	}
	return nil
}

func (s *Store) appendLocked(r domain.Report) []domain.Report {
	s.reports = append([]domain.Report{r}, s.reports...)
	s.sizes = append([]int{recordSize(r)}, s.sizes...)

	budget := s.opts.Budget()
	var evicted []domain.Report
	for len(s.reports) > 1 && s.sizeLocked() > budget {
		last := len(s.reports) - 1
		evicted = append(evicted, s.reports[last])
		s.reports = s.reports[:last]
		s.sizes = s.sizes[:last]
	}

	if len(evicted) > 0 {
		s.metrics.ReportsEvicted.Add(float64(len(evicted)))
		s.logger.Warn("storage was getting full, evicted old reports",
			"evicted", len(evicted), "size_bytes", s.sizeLocked(), "budget_bytes", budget)
	}
	return evicted
}

func (s *Store) persistLocked(ctx context.Context) ([]domain.Report, error) {
	candidate := s.reports
	sizes := s.sizes
	var dropped []domain.Report

	for retry := 0; ; retry++ {
		b, err := encode(candidate)
		if err != nil {
			s.metrics.PersistErrors.WithLabelValues(string(domain.StorageSerialization)).Inc()
			return nil, &domain.StorageError{Kind: domain.StorageSerialization, Err: err}
		}

		err = s.kv.Put(ctx, s.opts.Key, b)
		if err == nil {
			if len(dropped) > 0 {
				s.reports = append([]domain.Report(nil), candidate...)
				s.sizes = append([]int(nil), sizes...)
				s.metrics.ReportsEvicted.Add(float64(len(dropped)))
				s.logger.Warn("storage is full, removed old reports", "removed", len(dropped))
			}
			s.metrics.StoreBytes.Set(float64(len(b)))
			return dropped, nil
		}

		if !errors.Is(err, ErrQuotaExceeded) {
			s.metrics.PersistErrors.WithLabelValues("backend").Inc()
			return nil, fmt.Errorf("persist reports: %w", err)
		}
		if retry >= s.opts.QuotaRetries || len(candidate) <= 1 {
			s.metrics.PersistErrors.WithLabelValues(string(domain.StorageQuotaExceeded)).Inc()
			return nil, &domain.StorageError{Kind: domain.StorageQuotaExceeded, Err: err}
		}

		last := len(candidate) - 1
		dropped = append(dropped, candidate[last])
		candidate = candidate[:last]
		sizes = sizes[:last]
	}
}

func (s *Store) indexLocked(id string) int {
	for i, r := range s.reports {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// sizeLocked is the length of the encoded JSON array: brackets, items and commas.
func (s *Store) sizeLocked() int {
	if len(s.sizes) == 0 {
		return 2
	}
	n := 2 + len(s.sizes) - 1
	for _, sz := range s.sizes {
		n += sz
	}
	return n
}

func recordSize(r domain.Report) int {
	b, err := json.Marshal(toRecord(r))
	if err != nil {
		return 0
	}
	return len(b)
}
