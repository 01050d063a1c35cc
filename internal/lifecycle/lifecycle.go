// Package lifecycle implements the report workflow: submission, status
// transitions, deletion, projections and routing to the responsible office.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
	"github.com/0xbhavyaalag/EcoSphere/internal/locator"
	"github.com/0xbhavyaalag/EcoSphere/internal/observability"
)

// ReportStore is the persisted report collection.
type ReportStore interface {
	Add(ctx context.Context, r domain.Report) ([]domain.Report, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) (domain.Report, bool, error)
	Remove(ctx context.Context, id string) (domain.Report, error)
	Get(id string) (domain.Report, bool)
	Contains(id string) bool
	Filter(status string) []domain.Report
	Stats() domain.Stats
}

// EventPublisher receives lifecycle events. It must not block.
type EventPublisher interface {
	Publish(e domain.ReportEvent)
}

// StatsNotifier is told the new counters after every mutation.
type StatsNotifier interface {
	Broadcast(stats domain.Stats)
}

// OfficeLocator resolves the nearest municipal office for a point.
type OfficeLocator interface {
	LocateNearestOffice(ctx context.Context, point domain.Coordinate) (locator.Result, error)
}

// Deps are the optional collaborators. Nil members are skipped.
type Deps struct {
	Events  EventPublisher
	Stats   StatsNotifier
	Locator OfficeLocator
}

// Options configures validation and routing.
type Options struct {
	MaxImageBytes int
	Router        domain.Router
}

// Lifecycle coordinates report mutations and their side effects.
type Lifecycle struct {
	store   ReportStore
	opts    Options
	deps    Deps
	logger  *slog.Logger
	metrics *observability.Metrics

	submitMu sync.Mutex // serializes id assignment with insertion
}

// New creates a Lifecycle over store.
func New(store ReportStore, opts Options, deps Deps, logger *slog.Logger, metrics *observability.Metrics) *Lifecycle {
	if opts.Router.BaseURL == "" {
		opts.Router = domain.NewRouter(opts.Router.Provider)
	}
	l := &Lifecycle{
		store:   store,
		opts:    opts,
		deps:    deps,
		logger:  logger,
		metrics: metrics,
	}
	l.refreshGauges(store.Stats())
	return l
}

// CanSubmit reports whether draft has both an image and a coordinate.
func (l *Lifecycle) CanSubmit(draft domain.Draft) bool {
	return draft.Complete()
}

// Submit validates draft, stores it as a new report with status reported and
// returns it with the updated counters. A persistence failure is returned
// alongside the report, which stays in the in-memory collection.
func (l *Lifecycle) Submit(ctx context.Context, draft domain.Draft) (domain.Report, domain.Stats, error) {
	if !l.CanSubmit(draft) {
		return domain.Report{}, l.store.Stats(), domain.ErrIncompleteSubmission
	}
	if err := draft.Coordinate.Validate(); err != nil {
		return domain.Report{}, l.store.Stats(), err
	}
	if l.opts.MaxImageBytes > 0 && len(draft.Image) > l.opts.MaxImageBytes {
		return domain.Report{}, l.store.Stats(), fmt.Errorf("%w: %d bytes, limit %d",
			domain.ErrImageTooLarge, len(draft.Image), l.opts.MaxImageBytes)
	}

	l.submitMu.Lock()
	r := domain.Report{
		ID:          l.nextID(),
		Image:       draft.Image,
		Coordinate:  *draft.Coordinate,
		Description: domain.NormalizeDescription(draft.Description),
		Status:      domain.StatusReported,
		CreatedAt:   domain.Now().UTC(),
	}
	evicted, err := l.store.Add(ctx, r)
	l.submitMu.Unlock()

	l.metrics.ReportsSubmitted.Inc()
	l.publish(domain.NewReportEvent(domain.EventReportCreated, r))
	for _, old := range evicted {
		l.publish(domain.NewReportEvent(domain.EventReportEvicted, old))
	}
	stats := l.changed()

	if err != nil {
		l.logger.Error("report kept in memory but not persisted", "report_id", r.ID, "error", err)
		return r, stats, err
	}
	l.logger.Info("report submitted", "report_id", r.ID, "source", r.Coordinate.Source, "evicted", len(evicted))
	return r, stats, nil
}

// UpdateStatus moves report id to status. Setting the current status is a
// no-op that returns the report unchanged.
func (l *Lifecycle) UpdateStatus(ctx context.Context, id string, status domain.Status) (domain.Report, error) {
	status, err := domain.ParseStatus(string(status))
	if err != nil {
		return domain.Report{}, err
	}

	prev, changed, err := l.store.UpdateStatus(ctx, id, status)
	if errors.Is(err, domain.ErrReportNotFound) {
		return domain.Report{}, err
	}
	if !changed {
		return prev, err
	}

	updated := prev
	updated.Status = status

	e := domain.NewReportEvent(domain.EventReportStatusChanged, updated)
	e.PreviousStatus = prev.Status
	l.publish(e)
	l.metrics.StatusChanges.WithLabelValues(string(status)).Inc()
	l.changed()

	if err != nil {
		l.logger.Error("status changed in memory but not persisted", "report_id", id, "error", err)
		return updated, err
	}
	l.logger.Info("report status changed", "report_id", id, "from", prev.Status, "to", status)
	return updated, nil
}

// Delete removes report id.
func (l *Lifecycle) Delete(ctx context.Context, id string) error {
	removed, err := l.store.Remove(ctx, id)
	if errors.Is(err, domain.ErrReportNotFound) {
		return err
	}

	l.publish(domain.NewReportEvent(domain.EventReportDeleted, removed))
	l.metrics.ReportsDeleted.Inc()
	l.changed()

	if err != nil {
		l.logger.Error("report removed in memory but not persisted", "report_id", id, "error", err)
		return err
	}
	l.logger.Info("report deleted", "report_id", id)
	return nil
}

// Get returns report id.
func (l *Lifecycle) Get(id string) (domain.Report, error) {
	r, ok := l.store.Get(id)
	if !ok {
		return domain.Report{}, domain.ErrReportNotFound
	}
	return r, nil
}

// Filter returns the reports with status, newest first. "" and "all" select every report.
func (l *Lifecycle) Filter(status string) ([]domain.Report, error) {
	status = strings.TrimSpace(status)
	if status == "" || strings.EqualFold(status, domain.FilterAll) {
		return l.store.Filter(domain.FilterAll), nil
	}
	st, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return l.store.Filter(string(st)), nil
}

// Stats returns the current counters.
func (l *Lifecycle) Stats() domain.Stats {
	return l.store.Stats()
}

// Route returns a directions URL from user to dest. A nil user means the
// caller has not resolved its location yet.
func (l *Lifecycle) Route(dest domain.Coordinate, user *domain.Coordinate) (string, error) {
	if user == nil {
		return "", domain.ErrUserLocationUnknown
	}
	if err := user.Validate(); err != nil {
		return "", err
	}
	if err := dest.Validate(); err != nil {
		return "", err
	}
	return l.opts.Router.URL(*user, dest), nil
}

// RouteToNearestOffice locates the office nearest to from and returns a
// directions URL from user to it.
func (l *Lifecycle) RouteToNearestOffice(ctx context.Context, from domain.Coordinate, user *domain.Coordinate) (string, *domain.MunicipalOffice, error) {
	if user == nil {
		return "", nil, domain.ErrUserLocationUnknown
	}
	if l.deps.Locator == nil {
		return "", nil, domain.ErrNoOfficeFound
	}

	res, err := l.deps.Locator.LocateNearestOffice(ctx, from)
	if err != nil {
		return "", nil, err
	}
	if res.Office == nil {
		if res.RateLimited {
			return "", nil, &domain.LookupError{Kind: domain.LookupRateLimited, Message: "office search rate limited", Err: domain.ErrNoOfficeFound}
		}
		return "", nil, domain.ErrNoOfficeFound
	}

	url, err := l.Route(res.Office.Coordinate, user)
	if err != nil {
		return "", nil, err
	}
	return url, res.Office, nil
}

// nextID returns a fresh time-based id, bumping the millisecond value past
// any id already in the collection.
func (l *Lifecycle) nextID() string {
	id := domain.NewReportID()
	for l.store.Contains(id) {
		ms, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return id + "-1"
		}
		id = strconv.FormatInt(ms+1, 10)
	}
	return id
}

func (l *Lifecycle) publish(e domain.ReportEvent) {
	if l.deps.Events != nil {
		l.deps.Events.Publish(e)
	}
}

// changed refreshes gauges and notifies stats listeners.
func (l *Lifecycle) changed() domain.Stats {
	stats := l.store.Stats()
	l.refreshGauges(stats)
	if l.deps.Stats != nil {
		l.deps.Stats.Broadcast(stats)
	}
	return stats
}

func (l *Lifecycle) refreshGauges(stats domain.Stats) {
	for _, st := range domain.Statuses {
		l.metrics.ReportsByStatus.WithLabelValues(string(st)).Set(float64(stats.Count(st)))
	}
}
