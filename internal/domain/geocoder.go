package domain

import "context"

// Address holds the administrative fields of a reverse geocoding result.
// Found is false when the provider had no address for the point.
type Address struct {
	Found        bool
	DisplayName  string
	City         string
	Town         string
	Village      string
	Municipality string
	County       string
	State        string
	Region       string
	Country      string
	Postcode     string
}

// Place is one free-text search hit.
type Place struct {
	Name        string
	DisplayName string
	Latitude    float64
	Longitude   float64
}

// Geocoder resolves coordinates to addresses and free text to places.
type Geocoder interface {
	// ReverseGeocode converts coordinates to administrative fields.
	ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error)

	// Search returns up to limit places matching the query, in provider order.
	Search(ctx context.Context, query string, limit int) ([]Place, error)
}

// AdminArea is the condensed administrative context of a point.
type AdminArea struct {
	City        string `json:"city,omitempty"`
	County      string `json:"county,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Area condenses an Address: the most specific settlement name wins, falling
// back to the county, and the state falls back to the region.
func (a Address) Area() AdminArea {
	return AdminArea{
		City:        firstNonEmpty(a.City, a.Town, a.Village, a.Municipality, a.County),
		County:      a.County,
		State:       firstNonEmpty(a.State, a.Region),
		Country:     a.Country,
		Postcode:    a.Postcode,
		DisplayName: a.DisplayName,
	}
}

// MunicipalOffice is the office resolved for a point. It is never persisted.
type MunicipalOffice struct {
	Name        string     `json:"name"`
	Address     string     `json:"address"`
	Coordinate  Coordinate `json:"coordinate"`
	SourceQuery string     `json:"source_query"`
	DistanceKm  float64    `json:"distance_km"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
