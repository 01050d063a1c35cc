package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the cleanup state of a report.
type Status string

const (
	StatusReported   Status = "reported"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
)

// FilterAll is the pseudo-status that selects every report.
const FilterAll = "all"

// DefaultDescription replaces a blank description on submission.
const DefaultDescription = "No description provided"

// Statuses lists the valid statuses in workflow order.
var Statuses = []Status{StatusReported, StatusInProgress, StatusResolved}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusReported, StatusInProgress, StatusResolved:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Label returns the human-readable status name.
func (s Status) Label() string {
	switch s {
	case StatusReported:
		return "Reported"
	case StatusInProgress:
		return "In Progress"
	case StatusResolved:
		return "Resolved"
	}
	return string(s)
}

// Report is a single litter sighting.
type Report struct {
	ID          string     `json:"id"`
	Image       string     `json:"image"` // encoded image, typically a data URL
	Coordinate  Coordinate `json:"coordinate"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Draft holds what the UI has collected before submission.
type Draft struct {
	Image       string
	Coordinate  *Coordinate
	Description string
}

// Complete reports whether the draft carries both an image and a coordinate.
func (d Draft) Complete() bool {
	return strings.TrimSpace(d.Image) != "" && d.Coordinate != nil
}

// NormalizeDescription trims the text and substitutes the default when blank.
func NormalizeDescription(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultDescription
	}
	return s
}

// FilterReports returns the reports matching status, preserving order.
// The "all" filter (or an empty one) returns a copy of the whole slice.
func FilterReports(reports []Report, status string) []Report {
	out := make([]Report, 0, len(reports))
	if status == "" || status == FilterAll {
		return append(out, reports...)
	}
	for _, r := range reports {
		if string(r.Status) == status {
			out = append(out, r)
		}
	}
	return out
}

// Stats are the per-status counters shown by the UI.
type Stats struct {
	Total      int `json:"total"`
	Reported   int `json:"reported"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
}

// ComputeStats counts reports by status.
func ComputeStats(reports []Report) Stats {
	s := Stats{Total: len(reports)}
	for _, r := range reports {
		switch r.Status {
		case StatusReported:
			s.Reported++
		case StatusInProgress:
			s.InProgress++
		case StatusResolved:
			s.Resolved++
		}
	}
	return s
}

// Count returns the counter for a status.
func (s Stats) Count(status Status) int {
	switch status {
	case StatusReported:
		return s.Reported
	case StatusInProgress:
		return s.InProgress
	case StatusResolved:
		return s.Resolved
	}
	return 0
}
