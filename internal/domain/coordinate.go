package domain

import (
	"fmt"
	"math"
	"strings"
)

// Source identifies where a coordinate came from.
type Source string

const (
	SourceDevice  Source = "device"
	SourceGPSExif Source = "gps-exif"
	SourceIP      Source = "ip"
	SourceManual  Source = "manual"
)

// IPAccuracyMeters is the fixed accuracy assigned to IP-based fixes (~50 km).
const IPAccuracyMeters = 50000

// ParseSource maps a stored or user-supplied source tag to a Source.
// The legacy "gps" tag is read as SourceGPSExif; unknown tags become SourceManual.
func ParseSource(s string) Source {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "device":
		return SourceDevice
	case "gps", "gps-exif", "exif":
		return SourceGPSExif
	case "ip":
		return SourceIP
	default:
		return SourceManual
	}
}

// Coordinate is a WGS-84 position with accuracy in metres.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Source    Source  `json:"source"`
}

// Validate checks latitude, longitude and accuracy ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v must be between -90 and 90", ErrInvalidCoordinate, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v must be between -180 and 180", ErrInvalidCoordinate, c.Longitude)
	}
	if math.IsNaN(c.Accuracy) || c.Accuracy < 0 {
		return fmt.Errorf("%w: accuracy %v must not be negative", ErrInvalidCoordinate, c.Accuracy)
	}
	return nil
}

// String renders the coordinate as "lat,lon" with six decimals.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// ManualCoordinate builds a user-entered coordinate and validates it.
func ManualCoordinate(lat, lon float64) (Coordinate, error) {
	c := Coordinate{Latitude: lat, Longitude: lon, Source: SourceManual}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// DMSToDecimal converts EXIF degrees/minutes/seconds to signed decimal degrees.
// The "S" and "W" hemisphere references yield negative values.
func DMSToDecimal(degrees, minutes, seconds float64, ref string) float64 {
	dd := degrees + minutes/60 + seconds/3600
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		return -dd
	}
	return dd
}

// ExifCoordinate builds a gps-exif coordinate from raw EXIF GPS tags.
func ExifCoordinate(lat [3]float64, latRef string, lon [3]float64, lonRef string) (Coordinate, error) {
	c := Coordinate{
		Latitude:  DMSToDecimal(lat[0], lat[1], lat[2], latRef),
		Longitude: DMSToDecimal(lon[0], lon[1], lon[2], lonRef),
		Source:    SourceGPSExif,
	}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}
