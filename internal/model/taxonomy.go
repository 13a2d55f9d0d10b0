package model

import "time"

// VisitType classifies a visit.  RequiresProblemType marks the types for
// which a problem type must be chosen, and only those.
type VisitType struct {
	ID                  uint64    `json:"id"`
	Name                string    `json:"name"`
	RequiresProblemType bool      `json:"requires_problem_type"`
	CreatedAt           time.Time `json:"created_at"`
}

// ProblemType classifies the problem found on a problem visit.
type ProblemType struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
