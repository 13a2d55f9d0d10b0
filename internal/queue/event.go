// Package queue defines the messages exchanged over the broker and the
// background consumer that audits them.
package queue

// VisitRecordedQueue is the durable queue visit events are published to.
const VisitRecordedQueue = "visit.recorded"

// VisitRecordedEvent is published after a visit has been committed.  It
// carries enough context for consumers to log or notify without querying the
// primary database.
type VisitRecordedEvent struct {
	VisitID       uint64  `json:"visit_id"`
	KioskID       uint64  `json:"kiosk_id"`
	UserID        uint64  `json:"user_id"`
	Username      string  `json:"username"`
	VisitDate     string  `json:"visit_date"`
	VisitTime     string  `json:"visit_time"`
	VisitTypeID   uint64  `json:"visit_type_id"`
	ProblemTypeID *uint64 `json:"problem_type_id"`
	PhotoCount    int     `json:"photo_count"`
	RecordedAt    string  `json:"recorded_at"`
}
