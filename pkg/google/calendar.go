package google

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/effitime/pkg/index"
	"github.com/harrisonrobin/effitime/pkg/interval"
	"github.com/harrisonrobin/effitime/pkg/model"
)

// CalendarClient reads busy time from and publishes slots to one calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	log        *zap.Logger
	now        func() time.Time
}

// NewCalendarClient wraps an existing service. idx may be nil.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, log *zap.Logger) *CalendarClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, log: log.Named("calendar"), now: time.Now}
}

// CalendarID returns the id of the calendar the client is bound to.
func (c *CalendarClient) CalendarID() string { return c.calendarID }

// BusyIntervals returns the calendar's busy periods overlapping window,
// clipped to it. Periods that are empty after clipping are dropped.
func (c *CalendarClient) BusyIntervals(ctx context.Context, window interval.Interval) ([]interval.Interval, error) {
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("busy intervals: %w", err)
	}
	resp, err := c.srv.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: window.Start.UTC().Format(time.RFC3339),
		TimeMax: window.End.UTC().Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: c.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("busy intervals: query: %w", err)
	}
	cal, ok := resp.Calendars[c.calendarID]
	if !ok {
		return nil, fmt.Errorf("busy intervals: calendar %s missing from response", c.calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("busy intervals: calendar %s: %s", c.calendarID, cal.Errors[0].Reason)
	}

	out := make([]interval.Interval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("busy intervals: parse start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("busy intervals: parse end: %w", err)
		}
		if iv, ok := interval.Intersect(interval.Interval{Start: start, End: end}, window); ok {
			out = append(out, iv)
		}
	}
	c.log.Debug("busy intervals", zap.Int("count", len(out)), zap.Stringer("window", window))
	return out, nil
}

// PublishSlot creates the task's event or patches the one already linked
// to it. The task must have a committed slot.
func (c *CalendarClient) PublishSlot(ctx context.Context, task model.Task) (*calendar.Event, error) {
	event, err := TaskEvent(task, c.now())
	if err != nil {
		return nil, err
	}
	digest := EventDigest(event)
	pub := publication{taskID: task.ID, start: *task.ScheduledStart, end: *task.ScheduledEnd, digest: digest}

	var existing *calendar.Event
	if c.index != nil {
		if id, ok := c.index.Unchanged(task.ID, digest); ok {
			c.log.Debug("event unchanged since last publish", zap.String("task", task.ID), zap.String("event", id))
			event.Id = id
			return event, nil
		}
		if id := c.index.Get(task.ID); id != "" {
			existing, err = c.srv.Events.Get(c.calendarID, id).Context(ctx).Do()
			if err != nil {
				c.log.Debug("indexed event not found, searching", zap.String("event", id), zap.Error(err))
				existing = nil
			}
		}
	}
	if existing == nil {
		existing, err = c.GetEventByTaskID(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("publish slot: search event: %w", err)
		}
	}

	if existing != nil {
		patch, err := EventNeedsUpdate(existing, event)
		if err != nil {
			return nil, fmt.Errorf("publish slot: %w", err)
		}
		if patch == nil {
			c.remember(pub, existing.Id)
			return existing, nil
		}
		updated, err := c.srv.Events.Patch(c.calendarID, existing.Id, patch).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("publish slot: patch event: %w", err)
		}
		c.remember(pub, updated.Id)
		c.log.Info("event updated", zap.String("task", task.ID), zap.String("event", updated.Id))
		return updated, nil
	}

	created, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("publish slot: insert event: %w", err)
	}
	c.remember(pub, created.Id)
	c.log.Info("event created", zap.String("task", task.ID), zap.String("event", created.Id))
	return created, nil
}

type publication struct {
	taskID     string
	start, end time.Time
	digest     string
}

func (c *CalendarClient) remember(p publication, eventID string) {
	if c.index == nil {
		return
	}
	c.index.Record(p.taskID, index.Entry{
		EventID:   eventID,
		Start:     p.start.UTC(),
		End:       p.end.UTC(),
		Digest:    p.digest,
		Published: c.now().UTC(),
	})
}

// MarkOverdue renames the task's event to "! " + title.
func (c *CalendarClient) MarkOverdue(ctx context.Context, taskID, eventID, title string) error {
	patch := &calendar.Event{Summary: "! " + title}
	if _, err := c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("mark event %s overdue: %w", eventID, err)
	}
	if c.index != nil {
		c.index.Invalidate(taskID)
	}
	return nil
}

// DeleteEvent deletes an event and drops the index entry of its task.
func (c *CalendarClient) DeleteEvent(ctx context.Context, taskID, eventID string) error {
	if err := c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	if c.index != nil {
		c.index.Remove(taskID)
	}
	return nil
}

// GetEventByTaskID finds the event tagged with the task id, or nil.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}
