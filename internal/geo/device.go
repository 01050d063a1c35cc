package geo

import (
	"context"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
)

// ReportedDevice is the outcome of a geolocation request already made by a
// remote client, e.g. a browser posting its fix or its error code.
type ReportedDevice struct {
	Fix       *domain.Coordinate
	ErrorCode string
	Message   string
}

// CurrentPosition replays the reported outcome.
func (d ReportedDevice) CurrentPosition(_ context.Context, _ DeviceOptions) (domain.Coordinate, error) {
	if d.Fix != nil && d.ErrorCode == "" {
		return *d.Fix, nil
	}

	kind := domain.ParseLocationErrorKind(d.ErrorCode)
	msg := d.Message
	if msg == "" {
		msg = kind.DefaultMessage()
	}
	return domain.Coordinate{}, &domain.LocationError{Kind: kind, Message: msg}
}
