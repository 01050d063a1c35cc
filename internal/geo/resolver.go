// Package geo determines the user's current position: a device fix when the
// context allows it, otherwise an ordered list of IP geolocation providers.
package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
	"github.com/0xbhavyaalag/EcoSphere/internal/observability"
)

// InsecureContextMessage is reported when precise positioning was skipped.
const InsecureContextMessage = "Please open this site over HTTPS or localhost to use precise GPS."

// DeviceOptions mirrors the knobs of a device geolocation request.
type DeviceOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxAge       time.Duration
}

// DeviceLocator yields a precise device fix or a *domain.LocationError.
type DeviceLocator interface {
	CurrentPosition(ctx context.Context, opts DeviceOptions) (domain.Coordinate, error)
}

// IPLocator is one IP geolocation provider.
type IPLocator interface {
	Name() string
	Locate(ctx context.Context, ip string) (domain.Coordinate, error)
}

// Request describes the caller's environment.
type Request struct {
	SecureContext bool
	Device        DeviceLocator // nil when the caller has no positioning hardware
	ClientIP      string
}

// Resolver resolves the current user position.
type Resolver struct {
	providers []IPLocator
	opts      DeviceOptions
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewResolver creates a Resolver that falls back to providers in order.
func NewResolver(providers []IPLocator, opts DeviceOptions, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		providers: providers,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// Resolve returns a device fix (source device) or an IP fix (source ip).
// When every strategy fails the error is a *domain.LocationError of kind
// all-providers-failed wrapping each cause.
func (r *Resolver) Resolve(ctx context.Context, req Request) (domain.Coordinate, error) {
	var causes []error
	message := InsecureContextMessage

	if req.SecureContext {
		coord, err := r.fromDevice(ctx, req.Device)
		if err == nil {
			r.metrics.LocationResolutions.WithLabelValues("device").Inc()
			return coord, nil
		}
		message = deviceMessage(err)
		causes = append(causes, err)
		r.logger.Info("device location failed, falling back to ip", "error", err)
	}

	coord, err := r.fromIP(ctx, req.ClientIP)
	if err == nil {
		r.metrics.LocationResolutions.WithLabelValues("ip").Inc()
		return coord, nil
	}
	if ctx.Err() != nil {
		return domain.Coordinate{}, ctx.Err()
	}
	causes = append(causes, err)

	r.metrics.LocationResolutions.WithLabelValues("failed").Inc()
	return domain.Coordinate{}, &domain.LocationError{
		Kind:    domain.LocationAllProvidersFailed,
		Message: message,
		Err:     errors.Join(causes...),
	}
}

func (r *Resolver) fromDevice(ctx context.Context, device DeviceLocator) (domain.Coordinate, error) {
	if device == nil {
		return domain.Coordinate{}, &domain.LocationError{
			Kind:    domain.LocationUnavailable,
			Message: domain.LocationUnavailable.DefaultMessage(),
		}
	}

	dctx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	coord, err := device.CurrentPosition(dctx, r.opts)
	if err != nil {
		var le *domain.LocationError
		if errors.As(err, &le) {
			return domain.Coordinate{}, err
		}
		kind := domain.LocationUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			kind = domain.LocationTimeout
		}
		return domain.Coordinate{}, &domain.LocationError{Kind: kind, Message: kind.DefaultMessage(), Err: err}
	}

	coord.Source = domain.SourceDevice
	if err := coord.Validate(); err != nil {
		return domain.Coordinate{}, &domain.LocationError{
			Kind:    domain.LocationUnavailable,
			Message: domain.LocationUnavailable.DefaultMessage(),
			Err:     err,
		}
	}
	return coord, nil
}

func (r *Resolver) fromIP(ctx context.Context, ip string) (domain.Coordinate, error) {
	attempts := make([]domain.Attempt[domain.Coordinate], 0, len(r.providers))
	for _, p := range r.providers {
		attempts = append(attempts, domain.Attempt[domain.Coordinate]{
			Name: p.Name(),
			Run: func(ctx context.Context) (domain.Coordinate, error) {
				return p.Locate(ctx, ip)
			},
		})
	}

	chain := domain.Chain[domain.Coordinate]{
		Attempts: attempts,
		OnFailure: func(name string, err error) {
			r.metrics.IPProviderFailures.WithLabelValues(name).Inc()
			r.logger.Warn("ip location provider failed", "provider", name, "error", err)
		},
	}

	coord, err := chain.Run(ctx)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("ip fallback: %w", err)
	}
	return coord, nil
}

func deviceMessage(err error) string {
	var le *domain.LocationError
	if errors.As(err, &le) && le.Message != "" {
		return le.Message
	}
	return domain.LocationUnavailable.DefaultMessage()
}
