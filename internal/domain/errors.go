package domain

import (
	"errors"
	"fmt"
)

// Validation and lookup sentinels.
var (
	ErrIncompleteSubmission = errors.New("an image and a location are required")
	ErrInvalidCoordinate    = errors.New("invalid coordinate")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrImageTooLarge        = errors.New("image exceeds the size limit")
	ErrReportNotFound       = errors.New("report not found")
	ErrUserLocationUnknown  = errors.New("user location unknown")
	ErrNoOfficeFound        = errors.New("no municipal office found")
)

// LocationErrorKind classifies geolocation failures.
type LocationErrorKind string

const (
	LocationPermissionDenied   LocationErrorKind = "permission-denied"
	LocationUnavailable        LocationErrorKind = "unavailable"
	LocationTimeout            LocationErrorKind = "timeout"
	LocationAllProvidersFailed LocationErrorKind = "all-providers-failed"
)

// ParseLocationErrorKind maps a device error code to a kind. Unknown codes are unavailable.
func ParseLocationErrorKind(code string) LocationErrorKind {
	switch LocationErrorKind(code) {
	case LocationPermissionDenied, LocationTimeout, LocationAllProvidersFailed:
		return LocationErrorKind(code)
	}
	return LocationUnavailable
}

// LocationError is returned when no position could be determined.
type LocationError struct {
	Kind    LocationErrorKind
	Message string // human-readable, safe to show to the user
	Err     error
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LocationError) Unwrap() error { return e.Err }

// DefaultMessage is the user-facing text for a device failure kind.
func (k LocationErrorKind) DefaultMessage() string {
	switch k {
	case LocationPermissionDenied:
		return "Location access denied. Please enable location permissions."
	case LocationUnavailable:
		return "Location information unavailable."
	case LocationTimeout:
		return "Location request timed out."
	}
	return "Unable to retrieve your location"
}

// LookupErrorKind classifies geocoding failures.
type LookupErrorKind string

const (
	LookupNetworkFailure LookupErrorKind = "network-failure"
	LookupRateLimited    LookupErrorKind = "rate-limited"
	LookupNoData         LookupErrorKind = "no-data"
)

// LookupError is returned by geocoding providers and the municipal locator.
type LookupError struct {
	Kind    LookupErrorKind
	Message string
	Err     error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LookupError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is a rate-limited lookup failure.
func IsRateLimited(err error) bool {
	var le *LookupError
	return errors.As(err, &le) && le.Kind == LookupRateLimited
}

// StorageErrorKind classifies persistence failures.
type StorageErrorKind string

const (
	StorageQuotaExceeded StorageErrorKind = "quota-exceeded"
	StorageSerialization StorageErrorKind = "serialization-failure"
)

// StorageError is returned when the report collection could not be persisted.
type StorageError struct {
	Kind StorageErrorKind
	Err  error
}

func (e *StorageError) Error() string {
	switch e.Kind {
	case StorageQuotaExceeded:
		return fmt.Sprintf("storage is full: %v", e.Err)
	case StorageSerialization:
		return fmt.Sprintf("serialize reports: %v", e.Err)
	}
	return fmt.Sprintf("storage error: %v", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageFull reports whether err is a quota-exceeded storage failure.
func IsStorageFull(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Kind == StorageQuotaExceeded
}
