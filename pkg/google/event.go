package google

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/effitime/pkg/model"
	"github.com/harrisonrobin/effitime/pkg/util"
)

// TaskIDProperty is the private extended property that links an event back
// to its task.
const TaskIDProperty = "effitime_task_id"

// statusColorIDs maps status types to Google Calendar event color ids.
var statusColorIDs = map[model.StatusType]string{
	model.StatusNew:           "1", // lavender
	model.StatusInWork:        "9", // blueberry
	model.StatusWaitForDetail: "5", // banana
	model.StatusInfoReceived:  "7", // peacock
	model.StatusPaused:        "6", // tangerine
	model.StatusCompleted:     "2", // sage
	model.StatusCancelled:     "8", // graphite
	model.StatusDeferred:      "3", // grape
}

// TaskEvent renders a task with a committed slot as a calendar event.
func TaskEvent(task model.Task, now time.Time) (*calendar.Event, error) {
	if task.ScheduledStart == nil || task.ScheduledEnd == nil {
		return nil, fmt.Errorf("task %s has no committed slot", task.ID)
	}

	prefix := ""
	switch {
	case task.IsFinished():
		prefix = "✓"
	case task.StartedAt != nil:
		prefix = "‣"
	case task.Deadline != nil && task.Deadline.Before(now):
		prefix = "!"
	}
	summary := task.Title
	if prefix != "" {
		summary = prefix + " " + task.Title
	}

	colorID, ok := statusColorIDs[task.Status.Type]
	if !ok {
		colorID = "1"
	}

	var b strings.Builder
	if len(task.Tags) > 0 {
		for _, tag := range task.Tags {
			fmt.Fprintf(&b, "#%s ", tag)
		}
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Status: %s\n", task.Status.Name)
	if task.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", task.Category)
	}
	if task.Deadline != nil {
		fmt.Fprintf(&b, "Deadline: %s\n", task.Deadline.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "ID: %s\n", task.ID)

	b.WriteString("\nAccounting:\n")
	if est, err := util.ParseDuration(task.Estimate); err == nil && est > 0 {
		fmt.Fprintf(&b, "• estimated: %s\n", est)
	} else if task.Estimate != "" {
		fmt.Fprintf(&b, "• estimated: %s\n", task.Estimate)
	}
	if task.StartedAt != nil {
		diff := task.StartedAt.Sub(*task.ScheduledStart)
		if diff > time.Minute {
			fmt.Fprintf(&b, "• started late by: %s\n", diff.Round(time.Minute))
		} else if diff < -time.Minute {
			fmt.Fprintf(&b, "• started early by: %s\n", (-diff).Round(time.Minute))
		}
		if task.FinishedAt != nil {
			fmt.Fprintf(&b, "• spent: %s\n", task.FinishedAt.Sub(*task.StartedAt).Round(time.Minute))
		}
	}
	if task.Deadline != nil && !task.IsFinished() && task.Deadline.After(now) {
		fmt.Fprintf(&b, "• due in: %s\n", util.FormatUntil(task.Deadline.Sub(now)))
	}

	return &calendar.Event{
		Summary:     summary,
		Description: b.String(),
		ColorId:     colorID,
		Start:       &calendar.EventDateTime{DateTime: task.ScheduledStart.UTC().Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: task.ScheduledEnd.UTC().Format(time.RFC3339)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{TaskIDProperty: task.ID},
		},
	}, nil
}

// EventDigest fingerprints the fields EventNeedsUpdate compares.
func EventDigest(e *calendar.Event) string {
	h := sha256.New()
	for _, field := range []string{e.Summary, e.Description, e.ColorId, dateTime(e.Start), dateTime(e.End)} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func dateTime(d *calendar.EventDateTime) string {
	if d == nil {
		return ""
	}
	return d.DateTime
}

// EventNeedsUpdate returns a patch carrying the fields of target that differ
// from existing, or nil when they already match.
func EventNeedsUpdate(existing, target *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}

	same, err := sameTime(existing.Start, target.Start)
	if err != nil {
		return nil, fmt.Errorf("compare start: %w", err)
	}
	if same {
		same, err = sameTime(existing.End, target.End)
		if err != nil {
			return nil, fmt.Errorf("compare end: %w", err)
		}
	}
	if !same {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

func sameTime(a, b *calendar.EventDateTime) (bool, error) {
	if a == nil || b == nil || a.DateTime == "" {
		return false, nil
	}
	at, err := time.Parse(time.RFC3339, a.DateTime)
	if err != nil {
		return false, err
	}
	bt, err := time.Parse(time.RFC3339, b.DateTime)
	if err != nil {
		return false, err
	}
	return at.Equal(bt), nil
}
