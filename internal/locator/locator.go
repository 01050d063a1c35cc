// Package locator resolves a point to the nearest municipal office by reverse
// geocoding it and searching a ladder of office queries around its city.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
	"github.com/0xbhavyaalag/EcoSphere/internal/observability"
)

var errNoResults = errors.New("no results")

// Options controls search volume and pacing.
type Options struct {
	Limit   int           // results requested per term
	Delay   time.Duration // pause after a failed call
	Retries int           // extra attempts per term on network failure
}

// Result is the outcome of a lookup. Office is nil when nothing was found;
// Area carries whatever administrative fields were resolved. RateLimited is
// set when no office was found and at least one search term got a 429.
type Result struct {
	Office      *domain.MunicipalOffice `json:"office"`
	Area        domain.AdminArea        `json:"area"`
	RateLimited bool                    `json:"rate_limited,omitempty"`
}

// Locator finds the nearest municipal office for a point.
type Locator struct {
	geocoder domain.Geocoder
	opts     Options
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Locator backed by geocoder.
func New(geocoder domain.Geocoder, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Locator {
	if opts.Limit < 1 {
		opts.Limit = 5
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Locator{
		geocoder: geocoder,
		opts:     opts,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
	}
}

// SetClock swaps the clock used for pauses between calls.
func (l *Locator) SetClock(c clockwork.Clock) { l.clock = c }

// LocateNearestOffice reverse geocodes point, then tries each search term in
// order; the first term with usable hits wins and its hit closest to point is
// returned. Reverse geocoding failures are returned as *domain.LookupError.
// Failed search terms never end the lookup with an error: an unsuccessful
// search yields a nil Office and the resolved Area.
func (l *Locator) LocateNearestOffice(ctx context.Context, point domain.Coordinate) (Result, error) {
	if err := point.Validate(); err != nil {
		return Result{}, err
	}

	addr, err := l.geocoder.ReverseGeocode(ctx, point.Latitude, point.Longitude)
	if err != nil {
		l.metrics.OfficeLookups.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("reverse geocode %s: %w", point, err)
	}

	res := Result{Area: addr.Area()}
	if !addr.Found {
		l.logger.Info("no address for point", "point", point.String())
		l.metrics.OfficeLookups.WithLabelValues("none").Inc()
		return res, nil
	}

	terms := SearchTerms(res.Area)
	if len(terms) == 0 {
		l.metrics.OfficeLookups.WithLabelValues("none").Inc()
		return res, nil
	}

	attempts := make([]domain.Attempt[*domain.MunicipalOffice], 0, len(terms))
	for _, term := range terms {
		attempts = append(attempts, domain.Attempt[*domain.MunicipalOffice]{
			Name: term,
			Run: func(ctx context.Context) (*domain.MunicipalOffice, error) {
				return l.searchTerm(ctx, point, term)
			},
		})
	}

	var rateLimited bool
	chain := domain.Chain[*domain.MunicipalOffice]{
		Attempts: attempts,
		Between:  l.Pause,
		OnFailure: func(term string, err error) {
			if domain.IsRateLimited(err) {
				rateLimited = true
			}
			l.logger.Debug("office search term failed", "term", term, "error", err)
		},
	}

	office, err := chain.Run(ctx)
	if err == nil {
		res.Office = office
		l.metrics.OfficeLookups.WithLabelValues("found").Inc()
		l.logger.Info("municipal office found",
			"office", office.Name, "term", office.SourceQuery, "distance_km", office.DistanceKm)
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}

	res.RateLimited = rateLimited
	outcome := "none"
	if rateLimited {
		outcome = "rate_limited"
	}
	l.metrics.OfficeLookups.WithLabelValues(outcome).Inc()
	l.logger.Info("no municipal office found", "city", res.Area.City, "state", res.Area.State, "rate_limited", rateLimited)
	return res, nil
}

// searchTerm runs one term with retries on network failure. A rate-limited
// response is not retried.
func (l *Locator) searchTerm(ctx context.Context, point domain.Coordinate, term string) (*domain.MunicipalOffice, error) {
	var (
		places []domain.Place
		err    error
	)
	for attempt := 0; attempt <= l.opts.Retries; attempt++ {
		if attempt > 0 {
			if perr := l.Pause(ctx); perr != nil {
				return nil, perr
			}
		}
		places, err = l.geocoder.Search(ctx, term, l.opts.Limit)
		if err == nil || domain.IsRateLimited(err) || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	best, dist, ok := Closest(point, places)
	if !ok {
		return nil, errNoResults
	}

	return &domain.MunicipalOffice{
		Name:    officeName(best),
		Address: best.DisplayName,
		Coordinate: domain.Coordinate{
			Latitude:  best.Latitude,
			Longitude: best.Longitude,
			Source:    domain.SourceManual,
		},
		SourceQuery: term,
		DistanceKm:  dist,
	}, nil
}

// Pause waits out the configured search delay, returning early when ctx ends.
func (l *Locator) Pause(ctx context.Context) error {
	if l.opts.Delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.clock.After(l.opts.Delay):
		return nil
	}
}

// Closest returns the place nearest to point. Places with invalid coordinates
// are skipped; on equal distances the earlier place wins.
func Closest(point domain.Coordinate, places []domain.Place) (domain.Place, float64, bool) {
	var (
		best  domain.Place
		bestD = math.Inf(1)
		found bool
	)
	for _, p := range places {
		c := domain.Coordinate{Latitude: p.Latitude, Longitude: p.Longitude}
		if c.Validate() != nil {
			continue
		}
		d := domain.DistanceKm(point, c)
		if math.IsNaN(d) {
			continue
		}
		if d < bestD {
			best, bestD, found = p, d, true
		}
	}
	return best, bestD, found
}

func officeName(p domain.Place) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	first, _, _ := strings.Cut(p.DisplayName, ",")
	return strings.TrimSpace(first)
}
