// Package lifecycle reconstructs how long a task spent in each status from
// its append-only history log.
//
// The log is folded once, left to right: every status change closes the
// segment opened by the previous change, and the last open segment runs to
// the task's finish time (terminal tasks) or to now.
package lifecycle

import (
	"sort"
	"time"

	"github.com/harrisonrobin/effitime/pkg/colors"
	"github.com/harrisonrobin/effitime/pkg/model"
)

// ColorLookup resolves a status name to a display color.
type ColorLookup interface {
	Color(status string) string
}

// Segment is a contiguous span during which the task held one status.
type Segment struct {
	Status          string    `json:"status"`
	Color           string    `json:"color"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationSeconds float64   `json:"duration_seconds"`
	Percent         float64   `json:"percent"`
}

// Input is everything Reconstruct needs about one task.
type Input struct {
	CreatedAt     time.Time
	CurrentStatus string
	Terminal      bool
	FinishedAt    *time.Time
	// Events may contain any field; only status changes are used.
	Events []model.HistoryEvent
	Now    time.Time
	Colors ColorLookup
}

// FromTask fills an Input from a task snapshot and its history.
func FromTask(t model.Task, events []model.HistoryEvent, now time.Time, lookup ColorLookup) Input {
	return Input{
		CreatedAt:     t.CreatedAt,
		CurrentStatus: t.Status.Name,
		Terminal:      t.IsFinished(),
		FinishedAt:    t.FinishedAt,
		Events:        events,
		Now:           now,
		Colors:        lookup,
	}
}

// StatusEvents returns the status-change events ordered by CreatedAt, ties
// broken by Seq and then by original position.
func StatusEvents(events []model.HistoryEvent) []model.HistoryEvent {
	out := make([]model.HistoryEvent, 0, len(events))
	for _, e := range events {
		if e.Field == model.FieldStatus {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

type fold struct {
	cursor   time.Time
	status   string
	segments []Segment
}

func (f *fold) close(end time.Time) {
	if end.Before(f.cursor) {
		end = f.cursor
	}
	f.segments = append(f.segments, Segment{Status: f.status, Start: f.cursor, End: end})
	f.cursor = end
}

// Reconstruct returns the status segments covering [CreatedAt, end), where
// end is FinishedAt for terminal tasks that recorded one and Now otherwise.
// Segments with the same status are never merged.
func Reconstruct(in Input) []Segment {
	events := StatusEvents(in.Events)

	initial := in.CurrentStatus
	if len(events) > 0 {
		initial = events[0].OldValue
	}
	if initial == "" {
		initial = model.DefaultStatusName
	}

	f := fold{cursor: in.CreatedAt, status: initial}
	for _, e := range events {
		f.close(e.CreatedAt)
		f.status = e.NewValue
	}

	end := in.Now
	if in.Terminal && in.FinishedAt != nil {
		end = *in.FinishedAt
	}
	f.close(end)

	var total float64
	for i := range f.segments {
		s := &f.segments[i]
		s.DurationSeconds = s.End.Sub(s.Start).Seconds()
		total += s.DurationSeconds
	}
	for i := range f.segments {
		s := &f.segments[i]
		if total > 0 {
			s.Percent = s.DurationSeconds / total * 100
		}
		s.Color = colorOf(in.Colors, s.Status)
	}
	return f.segments
}

func colorOf(lookup ColorLookup, status string) string {
	if lookup == nil {
		return colors.Fallback
	}
	if c := lookup.Color(status); c != "" {
		return c
	}
	return colors.Fallback
}

// Durations adds up the seconds every status was held across many tasks.
// histories is keyed by task id.
func Durations(tasks []model.Task, histories map[string][]model.HistoryEvent, now time.Time) map[string]float64 {
	out := make(map[string]float64)
	for _, t := range tasks {
		for _, s := range Reconstruct(FromTask(t, histories[t.ID], now, nil)) {
			out[s.Status] += s.DurationSeconds
		}
	}
	return out
}
