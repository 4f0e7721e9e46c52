package scheduler

import (
	"fmt"
	"time"

	"github.com/harrisonrobin/effitime/pkg/biorhythm"
	"github.com/harrisonrobin/effitime/pkg/interval"
	"github.com/harrisonrobin/effitime/pkg/util"
)

const (
	defaultBlock        = 60 * time.Minute
	eveningWarningAfter = 18
)

// plan is the input of the deterministic ladder.
type plan struct {
	req      Request
	now      time.Time
	lead     time.Duration
	horizon  time.Duration
	free     []interval.Interval
	level    biorhythm.Level
	duration time.Duration
}

// fallback places the task without the oracle. Every slot it returns lies
// inside one of p.free. The ladder is: best biorhythm periods, then any
// waking time, then any free time, then impossible.
func fallback(p plan) Outcome {
	earliest := p.now.Add(p.lead)
	if p.req.CreatedAt.After(earliest) {
		earliest = p.req.CreatedAt
	}
	minutes := int(p.duration / time.Minute)

	if d := p.req.Deadline; d != nil && earliest.Add(p.duration).After(*d) {
		left := int(d.Sub(earliest) / time.Minute)
		if left < 0 {
			left = 0
		}
		return Outcome{
			Quality:     QualityImpossible,
			Source:      SourceFallback,
			DeadlineMet: boolPtr(false),
			Message: fmt.Sprintf("Cannot finish before the deadline %s: the task needs %d minutes but only %d remain.",
				d.Format("02.01.2006 15:04"), minutes, left),
		}
	}

	end := p.now.Add(p.horizon)
	if p.req.Deadline != nil {
		end = *p.req.Deadline
	}
	if !earliest.Before(end) {
		return noRoom(p, minutes)
	}
	search := interval.Interval{Start: earliest, End: end}
	free := interval.Clip(p.free, search)

	for _, period := range biorhythm.PeriodsBetween(search, p.req.Wake, p.req.Sleep, p.level) {
		if period.Priority != biorhythm.Optimal && period.Priority != biorhythm.Good {
			continue
		}
		if slot, ok := firstFit(free, period.Window, p.duration); ok {
			o := scheduled(p, slot, qualityOf(period.Priority))
			o.Period = period.Name
			o.Message = fmt.Sprintf("Scheduled in the %s. %s Chosen around your sleep schedule (wake-up %s, bed time %s).",
				period.Name, period.Rationale, p.req.Wake, p.req.Sleep)
			return o
		}
	}

	for _, span := range biorhythm.WakingSpans(search, p.req.Wake, p.req.Sleep) {
		if slot, ok := firstFit(free, span, p.duration); ok {
			o := scheduled(p, slot, QualityAcceptable)
			o.Message = "Scheduled in a free window. It misses the productivity peaks but fits your waking hours."
			return o
		}
	}

	if slot, ok := firstFit(free, search, p.duration); ok {
		o := scheduled(p, slot, QualityPoor)
		warning := ""
		if p.level == biorhythm.Deep && slot.Start.In(p.now.Location()).Hour() >= eveningWarningAfter {
			warning = " Deep work in the evening may be less effective."
		}
		o.Message = "Scheduled at the earliest free time." + warning + " Nothing matched your preferences."
		return o
	}

	return noRoom(p, minutes)
}

func noRoom(p plan, minutes int) Outcome {
	o := Outcome{Quality: QualityImpossible, Source: SourceFallback}
	if p.req.Deadline != nil {
		o.DeadlineMet = boolPtr(false)
		o.Message = fmt.Sprintf("No free window of %d minutes before the deadline. Move the deadline or free up time.", minutes)
	} else {
		o.Message = fmt.Sprintf("No free window of %d minutes in the next %s. Free up time in your schedule.",
			minutes, util.FormatUntil(p.horizon))
	}
	return o
}

// firstFit returns the earliest block of length d inside both a free window
// and within.
func firstFit(free []interval.Interval, within interval.Interval, d time.Duration) (interval.Interval, bool) {
	for _, f := range free {
		overlap, ok := interval.Intersect(f, within)
		if !ok || overlap.Duration() < d {
			continue
		}
		return interval.Interval{Start: overlap.Start, End: overlap.Start.Add(d)}, true
	}
	return interval.Interval{}, false
}

func scheduled(p plan, slot interval.Interval, q Quality) Outcome {
	s := slot
	o := Outcome{
		IsScheduled: true,
		Slot:        &s,
		Quality:     q,
		Source:      SourceFallback,
	}
	annotateDeadline(&o, p.req.Deadline)
	return o
}

func annotateDeadline(o *Outcome, deadline *time.Time) {
	if deadline == nil || o.Slot == nil {
		return
	}
	o.DeadlineMet = boolPtr(!o.Slot.End.After(*deadline))
	o.TimeUntilDeadline = util.FormatUntil(deadline.Sub(o.Slot.End))
}
