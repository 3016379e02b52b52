package temporal

import (
	"testing"
	"time"

	"github.com/poiesic/secondbrain/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reference is a Wednesday.
var reference = time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(WithClock(func() time.Time { return reference }))
	require.NoError(t, err)
	return r
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, 999999000, time.UTC)
}

func TestResolveQuery(t *testing.T) {
	tests := []struct {
		query string
		start time.Time
		end   time.Time
	}{
		{query: "what did I read yesterday", start: day(2024, 1, 9), end: endOfDay(2024, 1, 9)},
		{query: "notes from today", start: day(2024, 1, 10), end: reference},
		{query: "this week's meetings", start: day(2024, 1, 8), end: reference},
		{query: "papers from last week", start: day(2024, 1, 1), end: endOfDay(2024, 1, 7)},
		{query: "this month", start: day(2024, 1, 1), end: reference},
		{query: "invoices last month", start: day(2023, 12, 1), end: endOfDay(2023, 12, 31)},
		{query: "this year", start: day(2024, 1, 1), end: reference},
		{query: "last year", start: day(2023, 1, 1), end: endOfDay(2023, 12, 31)},
		{query: "past 3 days", start: day(2024, 1, 7), end: reference},
		{query: "the last 1 day", start: day(2024, 1, 9), end: reference},
		{query: "last 2 weeks", start: day(2023, 12, 27), end: reference},
		{query: "YESTERDAY", start: day(2024, 1, 9), end: endOfDay(2024, 1, 9)},
		{query: "last   week", start: day(2024, 1, 1), end: endOfDay(2024, 1, 7)},
	}

	r := newTestResolver(t)
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rng, ok := r.ResolveQuery(tt.query)
			require.True(t, ok)
			assert.Equal(t, tt.start, rng.Start)
			assert.Equal(t, tt.end, rng.End)
		})
	}
}

func TestResolve_YesterdayExactBounds(t *testing.T) {
	r := newTestResolver(t)

	rng, ok := r.Resolve(r.Extract("yesterday"))
	require.True(t, ok)
	assert.Equal(t, "2024-01-09T00:00:00.000000", rng.Start.Format("2006-01-02T15:04:05.000000"))
	assert.Equal(t, "2024-01-09T23:59:59.999999", rng.End.Format("2006-01-02T15:04:05.000000"))
}

func TestResolve_WeekStartsMonday(t *testing.T) {
	sunday := time.Date(2024, 1, 14, 9, 0, 0, 0, time.UTC)
	r, err := NewResolver(WithClock(func() time.Time { return sunday }))
	require.NoError(t, err)

	rng, ok := r.ResolveQuery("this week")
	require.True(t, ok)
	assert.Equal(t, day(2024, 1, 8), rng.Start)

	rng, ok = r.ResolveQuery("last week")
	require.True(t, ok)
	assert.Equal(t, day(2024, 1, 1), rng.Start)
	assert.Equal(t, endOfDay(2024, 1, 7), rng.End)
}

func TestResolve_KeepsClockLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2024, 3, 1, 2, 0, 0, 0, loc)
	r, err := NewResolver(WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	rng, ok := r.ResolveQuery("yesterday")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, loc), rng.Start)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 999999000, loc), rng.End)
}

func TestResolve_EarliestMatchWins(t *testing.T) {
	r := newTestResolver(t)

	rng, ok := r.ResolveQuery("what happened last week and yesterday")
	require.True(t, ok)
	assert.Equal(t, day(2024, 1, 1), rng.Start)

	rng, ok = r.ResolveQuery("yesterday versus last week")
	require.True(t, ok)
	assert.Equal(t, day(2024, 1, 9), rng.Start)

	// Order of the input slice does not matter.
	exprs := r.Extract("yesterday versus last week")
	exprs[0], exprs[1] = exprs[1], exprs[0]
	rng, ok = r.Resolve(exprs)
	require.True(t, ok)
	assert.Equal(t, day(2024, 1, 9), rng.Start)
}

func TestExtract(t *testing.T) {
	r := newTestResolver(t)

	exprs := r.Extract("Summaries from last week, yesterday and the past 10 days")
	require.Len(t, exprs, 3)

	assert.Equal(t, "last_week", exprs[0].Pattern)
	assert.Equal(t, "last week", exprs[0].Text)
	assert.Equal(t, 15, exprs[0].Start)
	assert.Equal(t, 24, exprs[0].End)

	assert.Equal(t, "yesterday", exprs[1].Pattern)
	assert.Equal(t, "past_days", exprs[2].Pattern)
	assert.Equal(t, 10, exprs[2].Count)
}

func TestExtract_NoMatch(t *testing.T) {
	r := newTestResolver(t)

	for _, query := range []string{
		"supervised learning",
		"todays special",
		"last weekend",
		"past 0 days",
		"past 99999 days",
		"",
	} {
		t.Run(query, func(t *testing.T) {
			assert.Empty(t, r.Extract(query))
			_, ok := r.ResolveQuery(query)
			assert.False(t, ok)
		})
	}
}

func TestResolve_UnknownPattern(t *testing.T) {
	r := newTestResolver(t)
	_, ok := r.Resolve([]Expression{{Pattern: "next_decade"}})
	assert.False(t, ok)
}

func TestRelevance(t *testing.T) {
	rng := &core.DateRange{Start: day(2024, 1, 1), End: endOfDay(2024, 1, 7)}
	now := reference

	assert.Equal(t, 0.5, Relevance(day(2024, 1, 3), nil, now))

	atEnd := Relevance(rng.End, rng, now)
	atStart := Relevance(rng.Start, rng, now)
	middle := Relevance(day(2024, 1, 4), rng, now)
	assert.InDelta(t, 1.0, atEnd, 1e-9)
	assert.InDelta(t, 0.7, atStart, 1e-9)
	assert.Greater(t, middle, atStart)
	assert.Less(t, middle, atEnd)

	justAfter := Relevance(day(2024, 1, 9), rng, now)
	longBefore := Relevance(day(2023, 6, 1), rng, now)
	assert.Less(t, justAfter, 0.5)
	assert.Greater(t, justAfter, longBefore)
	assert.Equal(t, 0.1, longBefore)

	for _, created := range []time.Time{day(2020, 1, 1), day(2024, 1, 5), day(2030, 1, 1)} {
		score := Relevance(created, rng, now)
		assert.GreaterOrEqual(t, score, 0.1)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestRelevance_OpenRangeUsesNow(t *testing.T) {
	r := newTestResolver(t)
	rng, ok := r.ResolveQuery("this week")
	require.True(t, ok)

	// An item created right now is the most recent possible.
	assert.InDelta(t, 1.0, Relevance(reference, &rng, reference), 1e-9)
}
