package domain

import (
	"fmt"
	"strings"
)

// RouteProvider selects the external routing service.
type RouteProvider string

const (
	RouteGoogle      RouteProvider = "google"
	RouteGraphHopper RouteProvider = "graphhopper"
)

// Default routing endpoints.
const (
	GoogleMapsBaseURL  = "https://www.google.com/maps"
	GraphHopperBaseURL = "https://graphhopper.com/maps"
)

// Router builds external directions URLs.
type Router struct {
	Provider RouteProvider
	BaseURL  string
}

// NewRouter returns a Router for provider with its default base URL.
func NewRouter(provider RouteProvider) Router {
	if provider == RouteGraphHopper {
		return Router{Provider: RouteGraphHopper, BaseURL: GraphHopperBaseURL}
	}
	return Router{Provider: RouteGoogle, BaseURL: GoogleMapsBaseURL}
}

// URL returns the directions link from one point to another.
func (r Router) URL(from, to Coordinate) string {
	base := strings.TrimRight(r.BaseURL, "/")
	if r.Provider == RouteGraphHopper {
		return fmt.Sprintf("%s/?point=%s&point=%s", base, latLon(from), latLon(to))
	}
	return fmt.Sprintf("%s/dir/%s/%s", base, latLon(from), latLon(to))
}

func latLon(c Coordinate) string {
	return fmt.Sprintf("%g,%g", c.Latitude, c.Longitude)
}
