package store

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
)

// record is the persisted shape of a report. It stays flat so collections
// written by earlier releases (latitude/longitude at the top level, a "date"
// ISO string and a "timestamp" in Unix milliseconds) load unchanged.
type record struct {
	ID          string   `json:"id"`
	Image       string   `json:"image"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Accuracy    float64  `json:"accuracy,omitempty"`
	Source      string   `json:"source,omitempty"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Date        string   `json:"date,omitempty"`
	Timestamp   int64    `json:"timestamp,omitempty"`
}

func toRecord(r domain.Report) record {
	lat, lon := r.Coordinate.Latitude, r.Coordinate.Longitude
	rec := record{
		ID:          r.ID,
		Image:       r.Image,
		Latitude:    &lat,
		Longitude:   &lon,
		Accuracy:    r.Coordinate.Accuracy,
		Source:      string(r.Coordinate.Source),
		Description: r.Description,
		Status:      string(r.Status),
	}
	if !r.CreatedAt.IsZero() {
		rec.Date = r.CreatedAt.UTC().Format(time.RFC3339Nano)
		rec.Timestamp = r.CreatedAt.UnixMilli()
	}
	return rec
}

// fromRecord converts a stored record, filling defaults for missing fields.
// It reports false for records that cannot be used at all.
func fromRecord(rec record) (domain.Report, bool) {
	if strings.TrimSpace(rec.ID) == "" || rec.Latitude == nil || rec.Longitude == nil {
		return domain.Report{}, false
	}

	coord := domain.Coordinate{
		Latitude:  *rec.Latitude,
		Longitude: *rec.Longitude,
		Accuracy:  rec.Accuracy,
		Source:    domain.ParseSource(rec.Source),
	}
	if coord.Validate() != nil {
		return domain.Report{}, false
	}

	status, err := domain.ParseStatus(rec.Status)
	if err != nil {
		status = domain.StatusReported
	}

	return domain.Report{
		ID:          rec.ID,
		Image:       rec.Image,
		Coordinate:  coord,
		Description: domain.NormalizeDescription(rec.Description),
		Status:      status,
		CreatedAt:   createdAt(rec),
	}, true
}

func createdAt(rec record) time.Time {
	if rec.Timestamp > 0 {
		return time.UnixMilli(rec.Timestamp).UTC()
	}
	if t, err := time.Parse(time.RFC3339Nano, rec.Date); err == nil {
		return t.UTC()
	}
	if ms, err := strconv.ParseInt(rec.ID, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

func encode(reports []domain.Report) ([]byte, error) {
	recs := make([]record, len(reports))
	for i, r := range reports {
		recs[i] = toRecord(r)
	}
	return json.Marshal(recs)
}

// decode parses a stored collection. Unusable entries are skipped and counted.
func decode(b []byte) ([]domain.Report, int, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return nil, 0, err
	}

	reports := make([]domain.Report, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			continue
		}
		r, ok := fromRecord(rec)
		if !ok {
			skipped++
			continue
		}
		reports = append(reports, r)
	}
	return reports, skipped, nil
}
