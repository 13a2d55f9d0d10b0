// Package stats reduces visit and kiosk rows into the dashboard summaries.
// Everything is computed per request from the store; nothing is cached.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	dateLayout = "2006-01-02"
	// WindowDays is the length of the daily_visits series, today included.
	WindowDays = 30
)

// VisitRow is the slice of a visit the aggregator needs.
type VisitRow struct {
	KioskID   uint64
	VisitDate string // YYYY-MM-DD
}

// VisitQuery selects visits with From <= visit_date (<= To when To is set),
// optionally limited to one user.
type VisitQuery struct {
	UserID *uint64
	From   string
	To     string
}

// Source is the read side of the store used by the aggregator.
type Source interface {
	CountKiosks(ctx context.Context) (int, error)
	VisitRows(ctx context.Context, q VisitQuery) ([]VisitRow, error)
	// AssignedKioskIDs returns the kiosks supervised by the user.
	AssignedKioskIDs(ctx context.Context, userID uint64, username string) ([]uint64, error)
}

// DailyCount is one point of the daily_visits series.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type AdminStats struct {
	TotalKiosks      int          `json:"total_kiosks"`
	VisitedThisMonth int          `json:"visited_this_month"`
	NotVisited       int          `json:"not_visited"`
	DailyVisits      []DailyCount `json:"daily_visits"`
}

type UserStats struct {
	VisitedToday     int          `json:"visited_today"`
	VisitedThisMonth int          `json:"visited_this_month"`
	AwaitingVisit    int          `json:"awaiting_visit"`
	DailyVisits      []DailyCount `json:"daily_visits"`
}

// Aggregator computes AdminStats and UserStats.  Calendar boundaries are
// taken in loc.
type Aggregator struct {
	src Source
	loc *time.Location
	now func() time.Time
}

func New(src Source, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{src: src, loc: loc, now: time.Now}
}

// WithClock replaces the time source.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	return &Aggregator{src: a.src, loc: a.loc, now: now}
}

type calendar struct {
	today       string
	monthStart  string
	windowStart string
}

func (a *Aggregator) calendar() calendar {
	now := a.now().In(a.loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, a.loc)
	return calendar{
		today:       now.Format(dateLayout),
		monthStart:  first.Format(dateLayout),
		windowStart: now.AddDate(0, 0, -(WindowDays - 1)).Format(dateLayout),
	}
}

// Admin returns the organisation-wide summary.
func (a *Aggregator) Admin(ctx context.Context) (AdminStats, error) {
	cal := a.calendar()

	total, err := a.src.CountKiosks(ctx)
	if err != nil {
		return AdminStats{}, fmt.Errorf("count kiosks: %w", err)
	}
	month, err := a.src.VisitRows(ctx, VisitQuery{From: cal.monthStart})
	if err != nil {
		return AdminStats{}, fmt.Errorf("month visits: %w", err)
	}
	window, err := a.src.VisitRows(ctx, VisitQuery{From: cal.windowStart, To: cal.today})
	if err != nil {
		return AdminStats{}, fmt.Errorf("daily visits: %w", err)
	}

	visited := len(DistinctKiosks(month))
	return AdminStats{
		TotalKiosks:      total,
		VisitedThisMonth: visited,
		NotVisited:       max(total-visited, 0),
		DailyVisits:      DailyVisits(window),
	}, nil
}

// User returns the summary scoped to one field user.
func (a *Aggregator) User(ctx context.Context, userID uint64, username string) (UserStats, error) {
	cal := a.calendar()
	uid := userID

	month, err := a.src.VisitRows(ctx, VisitQuery{UserID: &uid, From: cal.monthStart})
	if err != nil {
		return UserStats{}, fmt.Errorf("month visits: %w", err)
	}
	assigned, err := a.src.AssignedKioskIDs(ctx, userID, username)
	if err != nil {
		return UserStats{}, fmt.Errorf("assigned kiosks: %w", err)
	}
	window, err := a.src.VisitRows(ctx, VisitQuery{UserID: &uid, From: cal.windowStart, To: cal.today})
	if err != nil {
		return UserStats{}, fmt.Errorf("daily visits: %w", err)
	}

	today := 0
	for _, r := range month {
		if r.VisitDate == cal.today {
			today++
		}
	}
	return UserStats{
		VisitedToday:     today,
		VisitedThisMonth: len(month),
		AwaitingVisit:    Awaiting(assigned, DistinctKiosks(month)),
		DailyVisits:      DailyVisits(window),
	}, nil
}

// DistinctKiosks returns the set of kiosk ids present in rows.
func DistinctKiosks(rows []VisitRow) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(rows))
	for _, r := range rows {
		set[r.KioskID] = struct{}{}
	}
	return set
}

// DailyVisits groups rows by date, one entry per date present, ascending.
func DailyVisits(rows []VisitRow) []DailyCount {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.VisitDate]++
	}
	out := make([]DailyCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, DailyCount{Date: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Awaiting counts assigned kiosks missing from visited.  Duplicate ids in
// assigned are counted once.
func Awaiting(assigned []uint64, visited map[uint64]struct{}) int {
	seen := make(map[uint64]struct{}, len(assigned))
	n := 0
	for _, id := range assigned {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := visited[id]; !ok {
			n++
		}
	}
	return n
}
