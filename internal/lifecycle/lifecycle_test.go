package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
	"github.com/0xbhavyaalag/EcoSphere/internal/locator"
	"github.com/0xbhavyaalag/EcoSphere/internal/observability"
	"github.com/0xbhavyaalag/EcoSphere/internal/store"
)

// --- fakes ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ReportEvent
}

func (p *recordingPublisher) Publish(e domain.ReportEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type recordingNotifier struct {
	stats []domain.Stats
}

func (n *recordingNotifier) Broadcast(s domain.Stats) { n.stats = append(n.stats, s) }

type fakeLocator struct {
	result locator.Result
	err    error
}

func (f fakeLocator) LocateNearestOffice(context.Context, domain.Coordinate) (locator.Result, error) {
	return f.result, f.err
}

type harness struct {
	lc       *Lifecycle
	store    *store.Store
	kv       *store.MemoryKV
	events   *recordingPublisher
	notifier *recordingNotifier
	metrics  *observability.Metrics
}

func newHarness(t *testing.T, deps Deps) *harness {
	t.Helper()
	fake := clockwork.NewFakeClockAt(time.UnixMilli(1740830400000))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	kv := store.NewMemoryKV()
	s := store.New(kv, store.Options{Key: "ecosphere-reports", MaxBytes: 1 << 20, Threshold: 0.9, QuotaRetries: 1}, logger, metrics)
	s.Load(context.Background())

	h := &harness{store: s, kv: kv, events: &recordingPublisher{}, notifier: &recordingNotifier{}, metrics: metrics}
	if deps.Events == nil {
		deps.Events = h.events
	}
	if deps.Stats == nil {
		deps.Stats = h.notifier
	}
	h.lc = New(s, Options{MaxImageBytes: 64}, deps, logger, metrics)
	return h
}

func delhi() *domain.Coordinate {
	return &domain.Coordinate{Latitude: 28.6139, Longitude: 77.209, Accuracy: 12, Source: domain.SourceDevice}
}

func draft(desc string) domain.Draft {
	return domain.Draft{Image: "data:image/jpeg;base64,AAAA", Coordinate: delhi(), Description: desc}
}

// --- tests ---

func TestSubmit(t *testing.T) {
	h := newHarness(t, Deps{})
	ctx := context.Background()

	r, stats, err := h.lc.Submit(ctx, draft("  bottles near the park  "))
	require.NoError(t, err)

	assert.Equal(t, "1740830400000", r.ID)
	assert.Equal(t, domain.StatusReported, r.Status)
	assert.Equal(t, "bottles near the park", r.Description)
	assert.Equal(t, int64(1740830400000), r.CreatedAt.UnixMilli())
	assert.Equal(t, domain.Stats{Total: 1, Reported: 1}, stats)

	assert.Equal(t, []domain.EventType{domain.EventReportCreated}, h.events.types())
	assert.Equal(t, []domain.Stats{{Total: 1, Reported: 1}}, h.notifier.stats)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.ReportsSubmitted), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.ReportsByStatus.WithLabelValues("reported")), 0)
	assert.Equal(t, 1, h.kv.Puts())
}

func TestSubmit_DefaultDescription(t *testing.T) {
	h := newHarness(t, Deps{})
	r, _, err := h.lc.Submit(context.Background(), draft("   "))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDescription, r.Description)
}

func TestSubmit_BumpsCollidingIDs(t *testing.T) {
	h := newHarness(t, Deps{})
	ctx := context.Background()

	first, _, err := h.lc.Submit(ctx, draft("a"))
	require.NoError(t, err)
	second, _, err := h.lc.Submit(ctx, draft("b"))
	require.NoError(t, err)

	assert.Equal(t, "1740830400000", first.ID)
	assert.Equal(t, "1740830400001", second.ID)
	assert.Equal(t, 2, h.store.Len())
}

func TestSubmit_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		draft domain.Draft
		want  error
	}{
		{"missing image", domain.Draft{Coordinate: delhi()}, domain.ErrIncompleteSubmission},
		{"missing location", domain.Draft{Image: "data:x"}, domain.ErrIncompleteSubmission},
		{"bad coordinate", domain.Draft{Image: "data:x", Coordinate: &domain.Coordinate{Latitude: 91}}, domain.ErrInvalidCoordinate},
		{"image too large", domain.Draft{Image: string(make([]byte, 65)), Coordinate: delhi()}, domain.ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Deps{})
			_, _, err := h.lc.Submit(context.Background(), tt.draft)
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, h.store.Len())
			assert.Empty(t, h.events.types())
			assert.Zero(t, h.kv.Puts())
		})
	}
}

func TestCanSubmit(t *testing.T) {
	h := newHarness(t, Deps{})
	assert.True(t, h.lc.CanSubmit(draft("")))
	assert.False(t, h.lc.CanSubmit(domain.Draft{Image: "data:x"}))
	assert.False(t, h.lc.CanSubmit(domain.Draft{Coordinate: delhi()}))
}

func TestSubmit_StorageFullKeepsReport(t *testing.T) {
	h := newHarness(t, Deps{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	full := store.New(store.WithQuota(store.NewMemoryKV(), 10),
		store.Options{Key: "k", MaxBytes: 1 << 20, Threshold: 0.9}, logger, h.metrics)
	full.Load(context.Background())
	lc := New(full, Options{}, Deps{Events: h.events}, logger, h.metrics)

	r, stats, err := lc.Submit(context.Background(), draft("x"))
	require.Error(t, err)
	assert.True(t, domain.IsStorageFull(err))
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, 1, stats.Total)
	assert.True(t, full.Contains(r.ID))
	assert.Equal(t, []domain.EventType{domain.EventReportCreated}, h.events.types())
}

func TestUpdateStatus(t *testing.T) {
	h := newHarness(t, Deps{})
	ctx := context.Background()
	r, _, err := h.lc.Submit(ctx, draft("x"))
	require.NoError(t, err)

	updated, err := h.lc.UpdateStatus(ctx, r.ID, domain.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, updated.Status)

	h.events.mu.Lock()
	last := h.events.events[len(h.events.events)-1]
	h.events.mu.Unlock()
	assert.Equal(t, domain.EventReportStatusChanged, last.Type)
	assert.Equal(t, domain.StatusReported, last.PreviousStatus)
	assert.Equal(t, domain.StatusResolved, last.Status)

	assert.Equal(t, domain.Stats{Total: 1, Resolved: 1}, h.lc.Stats())
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.StatusChanges.WithLabelValues("resolved")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(h.metrics.ReportsByStatus.WithLabelValues("reported")), 0)
}

func TestUpdateStatus_Unchanged(t *testing.T) {
	h := newHarness(t, Deps{})
	ctx := context.Background()
	r, _, err := h.lc.Submit(ctx, draft("x"))
	require.NoError(t, err)

	got, err := h.lc.UpdateStatus(ctx, r.ID, domain.StatusReported)
	require.NoError(t, err)
	assert.Equal(t, r, got)
	assert.Len(t, h.events.types(), 1, "no event for an unchanged status")
	assert.Equal(t, 1, h.kv.Puts())
}

func TestUpdateStatus_Errors(t *testing.T) {
	h := newHarness(t, Deps{})
	ctx := context.Background()

	_, err := h.lc.UpdateStatus(ctx, "missing", domain.StatusResolved)
	require.ErrorIs(t, err, domain.ErrReportNotFound)

	_, err = h.lc.UpdateStatus(ctx, "missing", domain.Status("archived"))
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
	assert.Zero(t, h.kv.Puts())
}

func TestDelete(t *testing.T) {
	h := newHarness(t, Deps{})
	ctx := context.Background()
	r, _, err := h.lc.Submit(ctx, draft("x"))
	require.NoError(t, err)

	require.NoError(t, h.lc.Delete(ctx, r.ID))
	assert.Zero(t, h.store.Len())
	assert.Equal(t, []domain.EventType{domain.EventReportCreated, domain.EventReportDeleted}, h.events.types())
	assert.Equal(t, domain.Stats{}, h.notifier.stats[len(h.notifier.stats)-1])

	err = h.lc.Delete(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrReportNotFound)
	assert.Equal(t, 2, h.kv.Puts())
}

func TestGetAndFilter(t *testing.T) {
	h := newHarness(t, Deps{})
	ctx := context.Background()
	a, _, err := h.lc.Submit(ctx, draft("a"))
	require.NoError(t, err)
	b, _, err := h.lc.Submit(ctx, draft("b"))
	require.NoError(t, err)
	_, err = h.lc.UpdateStatus(ctx, a.ID, domain.StatusInProgress)
	require.NoError(t, err)

	got, err := h.lc.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Description)
	_, err = h.lc.Get("missing")
	assert.ErrorIs(t, err, domain.ErrReportNotFound)

	all, err := h.lc.Filter("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	all, err = h.lc.Filter("ALL")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	progress, err := h.lc.Filter("in-progress")
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, a.ID, progress[0].ID)

	_, err = h.lc.Filter("archived")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestRoute(t *testing.T) {
	h := newHarness(t, Deps{})
	dest := domain.Coordinate{Latitude: 28.62, Longitude: 77.21}

	_, err := h.lc.Route(dest, nil)
	require.ErrorIs(t, err, domain.ErrUserLocationUnknown)

	url, err := h.lc.Route(dest, delhi())
	require.NoError(t, err)
	assert.Equal(t, "https://www.google.com/maps/dir/28.6139,77.209/28.62,77.21", url)
}

func TestRouteToNearestOffice(t *testing.T) {
	office := &domain.MunicipalOffice{
		Name:       "Municipal Corporation of Delhi",
		Coordinate: domain.Coordinate{Latitude: 28.65, Longitude: 77.23},
	}
	ctx := context.Background()
	from := *delhi()

	t.Run("found", func(t *testing.T) {
		h := newHarness(t, Deps{Locator: fakeLocator{result: locator.Result{Office: office}}})
		url, got, err := h.lc.RouteToNearestOffice(ctx, from, delhi())
		require.NoError(t, err)
		assert.Equal(t, office, got)
		assert.Equal(t, "https://www.google.com/maps/dir/28.6139,77.209/28.65,77.23", url)
	})

	t.Run("no office", func(t *testing.T) {
		h := newHarness(t, Deps{Locator: fakeLocator{}})
		_, _, err := h.lc.RouteToNearestOffice(ctx, from, delhi())
		assert.ErrorIs(t, err, domain.ErrNoOfficeFound)
	})

	t.Run("office search rate limited", func(t *testing.T) {
		h := newHarness(t, Deps{Locator: fakeLocator{result: locator.Result{RateLimited: true}}})
		_, _, err := h.lc.RouteToNearestOffice(ctx, from, delhi())
		assert.True(t, domain.IsRateLimited(err))
		assert.ErrorIs(t, err, domain.ErrNoOfficeFound)
	})

	t.Run("lookup failure", func(t *testing.T) {
		boom := errors.New("boom")
		h := newHarness(t, Deps{Locator: fakeLocator{err: boom}})
		_, _, err := h.lc.RouteToNearestOffice(ctx, from, delhi())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("unknown user location", func(t *testing.T) {
		h := newHarness(t, Deps{Locator: fakeLocator{result: locator.Result{Office: office}}})
		_, _, err := h.lc.RouteToNearestOffice(ctx, from, nil)
		assert.ErrorIs(t, err, domain.ErrUserLocationUnknown)
	})
}

func TestRouter_GraphHopper(t *testing.T) {
	h := newHarness(t, Deps{})
	lc := New(h.store, Options{Router: domain.NewRouter(domain.RouteGraphHopper)}, Deps{}, slog.New(slog.NewTextHandler(io.Discard, nil)), h.metrics)
	url, err := lc.Route(domain.Coordinate{Latitude: 1, Longitude: 2}, &domain.Coordinate{Latitude: 3, Longitude: 4})
	require.NoError(t, err)
	assert.Equal(t, "https://graphhopper.com/maps/?point=3,4&point=1,2", url)
}
