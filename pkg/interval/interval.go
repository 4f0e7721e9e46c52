// Package interval implements half-open time interval algebra: merging busy
// intervals, computing the free gaps inside a bounding window and
// intersecting candidates against windows. Everything here is pure.
package interval

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidInterval is returned when an interval does not satisfy Start < End.
var ErrInvalidInterval = errors.New("invalid interval")

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New returns the interval [start, end) or ErrInvalidInterval.
func New(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate reports ErrInvalidInterval unless Start is strictly before End.
func (i Interval) Validate() error {
	if !i.Start.Before(i.End) {
		return fmt.Errorf("%w: start %s is not before end %s",
			ErrInvalidInterval, i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
	}
	return nil
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether the two intervals share any instant.
// Intervals that only touch (a.End == b.Start) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// ContainsInstant reports whether t lies in [Start, End).
func (i Interval) ContainsInstant(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

func (i Interval) String() string {
	return i.Start.Format(time.RFC3339) + "/" + i.End.Format(time.RFC3339)
}

// BusySet is a sorted sequence of pairwise non-overlapping, non-touching
// intervals. Only Merge produces one.
type BusySet []Interval

// Window bounds a free-time computation for one user.
type Window struct {
	UserID string
	Bounds Interval
}

// NewWindow validates the bounds of a free-window query.
func NewWindow(userID string, start, end time.Time) (Window, error) {
	b, err := New(start, end)
	if err != nil {
		return Window{}, fmt.Errorf("window for user %q: %w", userID, err)
	}
	return Window{UserID: userID, Bounds: b}, nil
}

// Merge sorts intervals by start and coalesces every pair where the next
// start is at or before the current end, so touching intervals are merged.
func Merge(intervals []Interval) (BusySet, error) {
	if len(intervals) == 0 {
		return BusySet{}, nil
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	for _, iv := range sorted {
		if err := iv.Validate(); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Start.Before(sorted[b].Start)
	})

	merged := BusySet{sorted[0]}
	for _, next := range sorted[1:] {
		cur := &merged[len(merged)-1]
		if !next.Start.After(cur.End) {
			if next.End.After(cur.End) {
				cur.End = next.End
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged, nil
}

// FreeGaps clips busy to bounds and returns the complement inside bounds.
// Zero-length gaps are omitted. An empty busy set yields [bounds].
func FreeGaps(busy BusySet, bounds Interval) ([]Interval, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	// Callers may hand in a hand-built BusySet, so normalise it first.
	normalised, err := Merge(busy)
	if err != nil {
		return nil, err
	}

	var gaps []Interval
	cursor := bounds.Start
	for _, b := range normalised {
		clipped, ok := Intersect(b, bounds)
		if !ok {
			continue
		}
		if cursor.Before(clipped.Start) {
			gaps = append(gaps, Interval{Start: cursor, End: clipped.Start})
		}
		if clipped.End.After(cursor) {
			cursor = clipped.End
		}
	}
	if cursor.Before(bounds.End) {
		gaps = append(gaps, Interval{Start: cursor, End: bounds.End})
	}
	return gaps, nil
}

// Intersect returns the overlap of a and b, or false when
// max(a.Start, b.Start) >= min(a.End, b.End).
func Intersect(a, b Interval) (Interval, bool) {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	if !start.Before(end) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// Clip intersects every interval with bounds and drops the empty results.
func Clip(intervals []Interval, bounds Interval) []Interval {
	var out []Interval
	for _, iv := range intervals {
		if c, ok := Intersect(iv, bounds); ok {
			out = append(out, c)
		}
	}
	return out
}

// ContainingWindow returns the first window that fully contains candidate.
func ContainingWindow(candidate Interval, windows []Interval) (Interval, bool) {
	for _, w := range windows {
		if w.Contains(candidate) {
			return w, true
		}
	}
	return Interval{}, false
}

// Total sums the durations of the given intervals.
func Total(intervals []Interval) time.Duration {
	var d time.Duration
	for _, iv := range intervals {
		d += iv.Duration()
	}
	return d
}
