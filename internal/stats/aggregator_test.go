package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type visit struct {
	userID  uint64
	kioskID uint64
	date    string
}

type fakeSource struct {
	kiosks   int
	visits   []visit
	assigned map[uint64][]uint64
	err      error
	queries  []VisitQuery
}

func (f *fakeSource) CountKiosks(context.Context) (int, error) {
	return f.kiosks, f.err
}

func (f *fakeSource) VisitRows(_ context.Context, q VisitQuery) ([]VisitRow, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []VisitRow
	for _, v := range f.visits {
		if q.UserID != nil && v.userID != *q.UserID {
			continue
		}
		if v.date < q.From || (q.To != "" && v.date > q.To) {
			continue
		}
		out = append(out, VisitRow{KioskID: v.kioskID, VisitDate: v.date})
	}
	return out, nil
}

func (f *fakeSource) AssignedKioskIDs(_ context.Context, userID uint64, _ string) ([]uint64, error) {
	return f.assigned[userID], f.err
}

// 2024-05-20 10:00 UTC
var now = time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

func newAgg(src Source) *Aggregator {
	return New(src, time.UTC).WithClock(func() time.Time { return now })
}

func TestAdminFiveKiosksThreeVisited(t *testing.T) {
	src := &fakeSource{
		kiosks: 5,
		visits: []visit{
			{1, 1, "2024-05-02"},
			{1, 2, "2024-05-10"},
			{2, 3, "2024-05-20"},
		},
	}
	got, err := newAgg(src).Admin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalKiosks)
	assert.Equal(t, 3, got.VisitedThisMonth)
	assert.Equal(t, 2, got.NotVisited)
}

func TestAdminCountsDistinctKiosks(t *testing.T) {
	src := &fakeSource{
		kiosks: 4,
		visits: []visit{
			{1, 1, "2024-05-01"},
			{2, 1, "2024-05-03"},
			{1, 2, "2024-05-03"},
			{1, 9, "2024-04-30"}, // previous month
		},
	}
	got, err := newAgg(src).Admin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got.VisitedThisMonth)
	assert.Equal(t, 2, got.NotVisited)
	assert.Equal(t, got.TotalKiosks, got.VisitedThisMonth+got.NotVisited)
}

func TestAdminClampsNotVisited(t *testing.T) {
	src := &fakeSource{
		kiosks: 1,
		visits: []visit{{1, 1, "2024-05-01"}, {1, 2, "2024-05-02"}, {1, 3, "2024-05-03"}},
	}
	got, err := newAgg(src).Admin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got.VisitedThisMonth)
	assert.Equal(t, 0, got.NotVisited)
}

func TestAdminDailyWindow(t *testing.T) {
	src := &fakeSource{
		kiosks: 10,
		visits: []visit{
			{1, 1, "2024-04-20"}, // 30 days back: outside
			{1, 1, "2024-04-21"}, // first day of window
			{1, 2, "2024-05-20"},
			{2, 3, "2024-05-20"},
			{1, 4, "2024-05-02"},
			{1, 5, "2024-05-21"}, // future
		},
	}
	got, err := newAgg(src).Admin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []DailyCount{
		{Date: "2024-04-21", Count: 1},
		{Date: "2024-05-02", Count: 1},
		{Date: "2024-05-20", Count: 2},
	}, got.DailyVisits)

	// "this month" has no upper bound
	assert.Equal(t, 4, got.VisitedThisMonth)
	assert.Contains(t, src.queries, VisitQuery{From: "2024-04-21", To: "2024-05-20"})
	assert.Contains(t, src.queries, VisitQuery{From: "2024-05-01"})
}

func TestDailyVisitsIdempotentAndComplete(t *testing.T) {
	rows := []VisitRow{
		{1, "2024-05-03"}, {2, "2024-05-01"}, {3, "2024-05-03"},
		{1, "2024-04-29"}, {4, "2024-05-01"}, {5, "2024-05-03"},
	}
	first := DailyVisits(rows)
	second := DailyVisits(rows)
	assert.Equal(t, first, second)

	sum := 0
	for i, d := range first {
		sum += d.Count
		if i > 0 {
			assert.Less(t, first[i-1].Date, d.Date)
		}
	}
	assert.Equal(t, len(rows), sum)
	assert.NotNil(t, DailyVisits(nil))
	assert.Empty(t, DailyVisits(nil))
}

func TestUserStats(t *testing.T) {
	src := &fakeSource{
		kiosks: 10,
		visits: []visit{
			{7, 1, "2024-05-20"},
			{7, 1, "2024-05-20"},
			{7, 2, "2024-05-04"},
			{7, 3, "2024-04-28"}, // last month, inside window
			{8, 4, "2024-05-20"}, // someone else
		},
		assigned: map[uint64][]uint64{7: {1, 2, 3, 5, 5}},
	}
	got, err := newAgg(src).User(context.Background(), 7, "field1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.VisitedToday)
	assert.Equal(t, 3, got.VisitedThisMonth)
	// kiosks 3 and 5 were not visited this month
	assert.Equal(t, 2, got.AwaitingVisit)
	assert.Equal(t, []DailyCount{
		{Date: "2024-04-28", Count: 1},
		{Date: "2024-05-04", Count: 1},
		{Date: "2024-05-20", Count: 2},
	}, got.DailyVisits)
}

func TestTimezoneMovesToday(t *testing.T) {
	baku, err := time.LoadLocation("Asia/Baku") // UTC+4
	require.NoError(t, err)
	src := &fakeSource{visits: []visit{{7, 1, "2024-06-01"}}}
	late := time.Date(2024, 5, 31, 22, 0, 0, 0, time.UTC)

	got, err := New(src, baku).WithClock(func() time.Time { return late }).User(context.Background(), 7, "u")
	require.NoError(t, err)
	assert.Equal(t, 1, got.VisitedToday)
	assert.Equal(t, 1, got.VisitedThisMonth)
}

func TestFailureAbortsAggregation(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	_, err := newAgg(src).Admin(context.Background())
	require.Error(t, err)
	_, err = newAgg(src).User(context.Background(), 1, "u")
	require.Error(t, err)
}

func TestAwaiting(t *testing.T) {
	visited := map[uint64]struct{}{1: {}, 2: {}}
	assert.Equal(t, 0, Awaiting(nil, visited))
	assert.Equal(t, 1, Awaiting([]uint64{1, 2, 3}, visited))
	assert.Equal(t, 2, Awaiting([]uint64{3, 4, 4}, nil))
}
