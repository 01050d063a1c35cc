package domain

import "time"

// EventType names a report lifecycle transition.
type EventType string

const (
	EventReportCreated       EventType = "report.created"
	EventReportStatusChanged EventType = "report.status_changed"
	EventReportDeleted       EventType = "report.deleted"
	EventReportEvicted       EventType = "report.evicted"
)

// ReportEvent is published after a lifecycle mutation. It never carries the image.
type ReportEvent struct {
	Type           EventType  `json:"type"`
	ReportID       string     `json:"report_id"`
	Status         Status     `json:"status,omitempty"`
	PreviousStatus Status     `json:"previous_status,omitempty"`
	Coordinate     Coordinate `json:"coordinate"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// NewReportEvent builds an event for r stamped with the package clock.
func NewReportEvent(t EventType, r Report) ReportEvent {
	return ReportEvent{
		Type:       t,
		ReportID:   r.ID,
		Status:     r.Status,
		Coordinate: r.Coordinate,
		OccurredAt: clock.Now().UTC(),
	}
}
