package temporal

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/poiesic/secondbrain/core"
)

// maxPeriods bounds N in "past N days|weeks".
const maxPeriods = 3650

// Expression is a temporal phrase found in a query.
type Expression struct {
	Pattern string // canonical pattern name, e.g. "last_week"
	Text    string // matched text as it appears in the query
	Start   int    // byte offset of the match
	End     int    // byte offset just past the match
	Count   int    // N for the counted patterns, 0 otherwise
}

type rule struct {
	name    string
	re      *regexp.Regexp
	counted bool
	resolve func(now time.Time, n int) core.DateRange
}

var rules = []rule{
	{name: "today", re: regexp.MustCompile(`(?i)\btoday\b`), resolve: today},
	{name: "yesterday", re: regexp.MustCompile(`(?i)\byesterday\b`), resolve: yesterday},
	{name: "this_week", re: regexp.MustCompile(`(?i)\bthis\s+week\b`), resolve: thisWeek},
	{name: "last_week", re: regexp.MustCompile(`(?i)\blast\s+week\b`), resolve: lastWeek},
	{name: "this_month", re: regexp.MustCompile(`(?i)\bthis\s+month\b`), resolve: thisMonth},
	{name: "last_month", re: regexp.MustCompile(`(?i)\blast\s+month\b`), resolve: lastMonth},
	{name: "this_year", re: regexp.MustCompile(`(?i)\bthis\s+year\b`), resolve: thisYear},
	{name: "last_year", re: regexp.MustCompile(`(?i)\blast\s+year\b`), resolve: lastYear},
	{name: "past_days", re: regexp.MustCompile(`(?i)\b(?:past|last)\s+(\d+)\s+days?\b`), counted: true, resolve: pastDays},
	{name: "past_weeks", re: regexp.MustCompile(`(?i)\b(?:past|last)\s+(\d+)\s+weeks?\b`), counted: true, resolve: pastWeeks},
}

var rulesByName = func() map[string]rule {
	m := make(map[string]rule, len(rules))
	for _, r := range rules {
		m[r.name] = r
	}
	return m
}()

// Resolver extracts and resolves temporal expressions.
type Resolver struct {
	now func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver) error

// WithClock replaces time.Now as the reference time.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) error {
		if now != nil {
			r.now = now
		}
		return nil
	}
}

// NewResolver creates a resolver using the wall clock unless overridden.
func NewResolver(opts ...Option) (*Resolver, error) {
	r := &Resolver{now: time.Now}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Now returns the resolver's reference time.
func (r *Resolver) Now() time.Time {
	return r.now()
}

// Extract returns the temporal expressions in query, ordered by position.
// Overlapping matches keep the one that starts first, the longer one on a tie.
func (r *Resolver) Extract(query string) []Expression {
	var found []Expression
	for _, rl := range rules {
		for _, loc := range rl.re.FindAllStringSubmatchIndex(query, -1) {
			expr := Expression{
				Pattern: rl.name,
				Text:    query[loc[0]:loc[1]],
				Start:   loc[0],
				End:     loc[1],
			}
			if rl.counted {
				n, err := strconv.Atoi(query[loc[2]:loc[3]])
				if err != nil || n < 1 || n > maxPeriods {
					continue
				}
				expr.Count = n
			}
			found = append(found, expr)
		}
	}
	sortExpressions(found)

	out := found[:0]
	end := -1
	for _, expr := range found {
		if expr.Start < end {
			continue
		}
		out = append(out, expr)
		end = expr.End
	}
	return out
}

// Resolve converts the earliest expression into a date range.
// Returns false when exprs holds no recognized expression.
func (r *Resolver) Resolve(exprs []Expression) (core.DateRange, bool) {
	if len(exprs) == 0 {
		return core.DateRange{}, false
	}
	sorted := slices.Clone(exprs)
	sortExpressions(sorted)

	now := r.now()
	for _, expr := range sorted {
		rl, ok := rulesByName[expr.Pattern]
		if !ok {
			continue
		}
		if rl.counted && (expr.Count < 1 || expr.Count > maxPeriods) {
			continue
		}
		return rl.resolve(now, expr.Count), true
	}
	return core.DateRange{}, false
}

// ResolveQuery extracts and resolves in one step.
func (r *Resolver) ResolveQuery(query string) (core.DateRange, bool) {
	return r.Resolve(r.Extract(query))
}

func sortExpressions(exprs []Expression) {
	slices.SortStableFunc(exprs, func(a, b Expression) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return (b.End - b.Start) - (a.End - a.Start)
	})
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func weekStart(t time.Time) time.Time {
	day := midnight(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func monthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func yearStart(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

// closed returns [start, next) as an inclusive range.
func closed(start, next time.Time) core.DateRange {
	return core.DateRange{Start: start, End: next.Add(-time.Microsecond)}
}

func today(now time.Time, _ int) core.DateRange {
	return core.DateRange{Start: midnight(now), End: now}
}

func yesterday(now time.Time, _ int) core.DateRange {
	start := midnight(now)
	return closed(start.AddDate(0, 0, -1), start)
}

func thisWeek(now time.Time, _ int) core.DateRange {
	return core.DateRange{Start: weekStart(now), End: now}
}

func lastWeek(now time.Time, _ int) core.DateRange {
	start := weekStart(now)
	return closed(start.AddDate(0, 0, -7), start)
}

func thisMonth(now time.Time, _ int) core.DateRange {
	return core.DateRange{Start: monthStart(now), End: now}
}

func lastMonth(now time.Time, _ int) core.DateRange {
	start := monthStart(now)
	return closed(start.AddDate(0, -1, 0), start)
}

func thisYear(now time.Time, _ int) core.DateRange {
	return core.DateRange{Start: yearStart(now), End: now}
}

func lastYear(now time.Time, _ int) core.DateRange {
	start := yearStart(now)
	return closed(start.AddDate(-1, 0, 0), start)
}

// pastDays covers the last n calendar days before today, plus today so far.
func pastDays(now time.Time, n int) core.DateRange {
	return core.DateRange{Start: midnight(now).AddDate(0, 0, -n), End: now}
}

func pastWeeks(now time.Time, n int) core.DateRange {
	return core.DateRange{Start: midnight(now).AddDate(0, 0, -7*n), End: now}
}

const decay = 30 * 24 * time.Hour

// Relevance scores how well created fits rng, in [0.1, 1].
// Inside the range newer items score higher, down to 0.7 at the range start.
// Outside the range the score decays from 0.5 with the distance to the
// nearest bound. With no range every item scores 0.5.
func Relevance(created time.Time, rng *core.DateRange, now time.Time) float64 {
	if rng == nil {
		return 0.5
	}

	end := rng.End
	if end.After(now) && !now.Before(rng.Start) {
		end = now
	}

	if !created.Before(rng.Start) && !created.After(rng.End) {
		duration := end.Sub(rng.Start)
		if duration <= 0 {
			return 1
		}
		position := max(0, end.Sub(created))
		return max(0.7, 1-0.3*(float64(position)/float64(duration)))
	}

	var distance time.Duration
	if created.Before(rng.Start) {
		distance = rng.Start.Sub(created)
	} else {
		distance = created.Sub(rng.End)
	}
	return max(0.1, 0.5*math.Exp(-float64(distance)/float64(decay)))
}
