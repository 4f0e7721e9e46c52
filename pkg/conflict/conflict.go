// Package conflict decides whether a proposed slot fits among a user's other
// scheduled tasks and, when it does not, points at the nearest free edges.
package conflict

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/effitime/pkg/interval"
)

// Verdict is the outcome class of a fit check.
type Verdict string

const (
	Fits         Verdict = "fits"
	Conflicts    Verdict = "conflicts"
	InvalidOrder Verdict = "invalid_order"
)

// FitResult is returned by CheckFit. AvailableStart and AvailableEnd are only
// meaningful for Conflicts; nil means availability is unbounded that way.
type FitResult struct {
	Verdict        Verdict             `json:"verdict"`
	AvailableStart *time.Time          `json:"available_start,omitempty"`
	AvailableEnd   *time.Time          `json:"available_end,omitempty"`
	Overlapping    []interval.Interval `json:"overlapping,omitempty"`
	Message        string              `json:"message"`
}

// OK reports whether the proposed slot fits.
func (r FitResult) OK() bool { return r.Verdict == Fits }

// CheckFit tests proposed against every existing interval of the same owner.
func CheckFit(proposed interval.Interval, existing []interval.Interval) FitResult {
	if !proposed.Start.Before(proposed.End) {
		return FitResult{
			Verdict: InvalidOrder,
			Message: fmt.Sprintf("start %s must be before end %s",
				proposed.Start.Format(time.RFC3339), proposed.End.Format(time.RFC3339)),
		}
	}

	var (
		overlapping []interval.Interval
		before      *time.Time
		after       *time.Time
	)
	for _, e := range existing {
		if proposed.Overlaps(e) {
			overlapping = append(overlapping, e)
		}
		if !e.End.After(proposed.Start) && (before == nil || e.End.After(*before)) {
			end := e.End
			before = &end
		}
		if !e.Start.Before(proposed.End) && (after == nil || e.Start.Before(*after)) {
			start := e.Start
			after = &start
		}
	}

	if len(overlapping) == 0 {
		return FitResult{Verdict: Fits, Message: "slot is free"}
	}
	return FitResult{
		Verdict:        Conflicts,
		AvailableStart: before,
		AvailableEnd:   after,
		Overlapping:    overlapping,
		Message:        conflictMessage(proposed, overlapping, before, after),
	}
}

func conflictMessage(proposed interval.Interval, overlapping []interval.Interval, before, after *time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "slot %s overlaps %d scheduled task(s)", proposed, len(overlapping))
	for _, o := range overlapping {
		fmt.Fprintf(&b, "; busy %s", o)
	}
	switch {
	case before != nil && after != nil:
		fmt.Fprintf(&b, ". Free from %s until %s", before.Format(time.RFC3339), after.Format(time.RFC3339))
	case before != nil:
		fmt.Fprintf(&b, ". Free from %s onwards", before.Format(time.RFC3339))
	case after != nil:
		fmt.Fprintf(&b, ". Free until %s", after.Format(time.RFC3339))
	default:
		b.WriteString(". No adjacent free edge around the requested slot")
	}
	return b.String()
}
