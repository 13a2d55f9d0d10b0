package model

import "time"

// Visit mirrors the `visits` table.  VisitDate is YYYY-MM-DD and VisitTime
// HH:MM[:SS]; Photos holds at most two public URLs.
type Visit struct {
	ID            uint64    `json:"id"`
	KioskID       uint64    `json:"kiosk_id"`
	UserID        uint64    `json:"user_id"`
	VisitDate     string    `json:"visit_date"`
	VisitTime     string    `json:"visit_time"`
	VisitTypeID   uint64    `json:"visit_type_id"`
	ProblemTypeID *uint64   `json:"problem_type_id"`
	Description   string    `json:"description"`
	Photos        []string  `json:"photos"`
	CreatedAt     time.Time `json:"created_at"`
}

// VisitDetail is a visit flattened with the names the report and
// my-visits views display.
type VisitDetail struct {
	Visit
	KioskNumber     string  `json:"kiosk_number"`
	Address         *string `json:"address,omitempty"`
	Username        string  `json:"username,omitempty"`
	VisitTypeName   string  `json:"visit_type_name"`
	ProblemTypeName *string `json:"problem_type_name"`
}

// VisitReportFilter narrows GET /api/visits/report.  Empty fields are ignored.
type VisitReportFilter struct {
	StartDate   string
	EndDate     string
	KioskNumber string
}

// MaxVisitPhotos bounds Visit.Photos.
const MaxVisitPhotos = 2
