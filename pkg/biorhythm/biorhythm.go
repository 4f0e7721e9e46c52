// Package biorhythm derives productivity windows from a user's wake and
// sleep times. It never looks at availability; callers intersect the
// windows it returns with free gaps.
package biorhythm

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harrisonrobin/effitime/pkg/interval"
)

// Level is the concentration a task demands.
type Level string

const (
	Deep   Level = "deep"
	Medium Level = "medium"
	Light  Level = "light"
)

// ParseLevel accepts deep, medium or light (case-insensitive).
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case Deep, Medium, Light:
		return l, nil
	default:
		return "", fmt.Errorf("unknown concentration level %q", s)
	}
}

// Priority ranks how well a window suits the level it was derived for.
type Priority string

const (
	Optimal    Priority = "optimal"
	Good       Priority = "good"
	Acceptable Priority = "acceptable"
)

// Rank orders priorities, lower is better.
func (p Priority) Rank() int {
	switch p {
	case Optimal:
		return 0
	case Good:
		return 1
	case Acceptable:
		return 2
	default:
		return 3
	}
}

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// MustClock is ParseClock for constants.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

// On returns the instant of c on the calendar day of day, in day's location.
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

// Period is a named productivity window.
type Period struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Window      interval.Interval `json:"window"`
	Priority    Priority          `json:"priority"`
	Rationale   string            `json:"rationale"`
}

// Day returns the waking span [wake, sleep) anchored on day. A sleep time
// earlier than the wake time belongs to the next day.
func Day(day time.Time, wake, sleep Clock) (time.Time, time.Time) {
	w := wake.On(day)
	s := sleep.On(day)
	if s.Before(w) {
		s = s.Add(24 * time.Hour)
	}
	return w, s
}

// Periods returns the productivity windows for level on the given day.
// Unknown levels are treated as Light. A window that collapses (for a very
// short waking day) is dropped.
func Periods(day time.Time, wake, sleep Clock, level Level) []Period {
	w, s := Day(day, wake, sleep)

	var p Period
	switch level {
	case Deep:
		p = Period{
			Name:        "Morning productivity peak",
			Description: "Best time for deep concentration",
			Window:      interval.Interval{Start: w.Add(90 * time.Minute), End: w.Add(4 * time.Hour)},
			Priority:    Optimal,
			Rationale:   "1.5 to 4 hours after waking the mind is the clearest.",
		}
	case Medium:
		p = Period{
			Name:        "Midday focus period",
			Description: "Good time for analytical tasks",
			Window:      interval.Interval{Start: w.Add(4 * time.Hour), End: w.Add(7 * time.Hour)},
			Priority:    Good,
			Rationale:   "Productivity is stable 4 to 7 hours after waking.",
		}
	default:
		p = Period{
			Name:        "Flexible working time",
			Description: "Suits routine tasks",
			Window:      interval.Interval{Start: w.Add(time.Hour), End: s.Add(-2 * time.Hour)},
			Priority:    Acceptable,
			Rationale:   "Any time except the evening slump two hours before sleep.",
		}
	}
	if p.Window.Validate() != nil {
		return nil
	}
	return []Period{p}
}

// PeriodsBetween returns the periods of every day whose windows overlap
// bounds, clipped to bounds and ordered by start. The day before bounds is
// included so overnight schedules are not missed.
func PeriodsBetween(bounds interval.Interval, wake, sleep Clock, level Level) []Period {
	loc := bounds.Start.Location()
	y, m, d := bounds.Start.Date()
	first := time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, -1)

	var out []Period
	for day := first; day.Before(bounds.End); day = day.AddDate(0, 0, 1) {
		for _, p := range Periods(day, wake, sleep, level) {
			clipped, ok := interval.Intersect(p.Window, bounds)
			if !ok {
				continue
			}
			p.Window = clipped
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Window.Start.Before(out[j].Window.Start)
	})
	return out
}

// WakingSpans returns the waking spans [wake, sleep) of every day that
// overlaps bounds, clipped to bounds.
func WakingSpans(bounds interval.Interval, wake, sleep Clock) []interval.Interval {
	loc := bounds.Start.Location()
	y, m, d := bounds.Start.Date()
	first := time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, -1)

	var out []interval.Interval
	for day := first; day.Before(bounds.End); day = day.AddDate(0, 0, 1) {
		w, s := Day(day, wake, sleep)
		if c, ok := interval.Intersect(interval.Interval{Start: w, End: s}, bounds); ok {
			out = append(out, c)
		}
	}
	return out
}

// Classify reports the best priority among periods that fully contain slot.
func Classify(slot interval.Interval, periods []Period) (Period, bool) {
	var (
		best  Period
		found bool
	)
	for _, p := range periods {
		if !p.Window.Contains(slot) {
			continue
		}
		if !found || p.Priority.Rank() < best.Priority.Rank() {
			best, found = p, true
		}
	}
	return best, found
}
