// Package spatial groups reports into H3 cells to show where litter concentrates.
package spatial

import (
	"fmt"
	"sort"

	"github.com/uber/h3-go/v4"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
)

// DefaultResolution is roughly neighbourhood-sized (~5 km² cells).
const DefaultResolution = 7

// MaxResolution is the finest H3 resolution.
const MaxResolution = 15

// Hotspot is one H3 cell with the reports that fall inside it.
type Hotspot struct {
	Cell       string            `json:"cell"`
	Resolution int               `json:"resolution"`
	Center     domain.Coordinate `json:"center"`
	Stats      domain.Stats      `json:"stats"`
	ReportIDs  []string          `json:"report_ids"`
}

// Open is the number of reports not yet resolved.
func (h Hotspot) Open() int {
	return h.Stats.Total - h.Stats.Resolved
}

// Hotspots buckets reports by H3 cell at res. Cells are ordered by report
// count, busiest first, then by cell index.
func Hotspots(reports []domain.Report, res int) ([]Hotspot, error) {
	if res < 0 || res > MaxResolution {
		return nil, fmt.Errorf("invalid h3 resolution %d: must be 0-%d", res, MaxResolution)
	}

	byCell := make(map[h3.Cell][]domain.Report)
	for _, r := range reports {
		cell, err := h3.LatLngToCell(h3.NewLatLng(r.Coordinate.Latitude, r.Coordinate.Longitude), res)
		if err != nil {
			return nil, fmt.Errorf("error converting report %s to h3 cell at res %d: %w", r.ID, res, err)
		}
		byCell[cell] = append(byCell[cell], r)
	}

	out := make([]Hotspot, 0, len(byCell))
	for cell, rs := range byCell {
		center, err := cell.LatLng()
		if err != nil {
			return nil, fmt.Errorf("error computing center of h3 cell %s: %w", cell, err)
		}
		ids := make([]string, len(rs))
		for i, r := range rs {
			ids[i] = r.ID
		}
		out = append(out, Hotspot{
			Cell:       cell.String(),
			Resolution: res,
			Center:     domain.Coordinate{Latitude: center.Lat, Longitude: center.Lng},
			Stats:      domain.ComputeStats(rs),
			ReportIDs:  ids,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Stats.Total != out[j].Stats.Total {
			return out[i].Stats.Total > out[j].Stats.Total
		}
		return out[i].Cell < out[j].Cell
	})
	return out, nil
}
