package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/effitime/pkg/index"
	"github.com/harrisonrobin/effitime/pkg/interval"
	"github.com/harrisonrobin/effitime/pkg/model"
)

var now = time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)

func scheduledTask() model.Task {
	start := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	deadline := time.Date(2025, 3, 12, 18, 0, 0, 0, time.UTC)
	return model.Task{
		ID:             "task-1",
		Title:          "Write report",
		Tags:           []string{"work"},
		Category:       "Work",
		Status:         model.Status{Name: "New", Type: model.StatusNew},
		Deadline:       &deadline,
		Estimate:       "PT90M",
		ScheduledStart: &start,
		ScheduledEnd:   &end,
	}
}

type fakeCalendar struct {
	mu       sync.Mutex
	requests []string
	events   map[string]*calendar.Event
	busy     []*calendar.TimePeriod
}

func (f *fakeCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/freeBusy":
		var req calendar.FreeBusyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(calendar.FreeBusyResponse{
			Calendars: map[string]calendar.FreeBusyCalendar{req.Items[0].Id: {Busy: f.busy}},
		})
	case r.URL.Path == "/users/me/calendarList":
		_ = json.NewEncoder(w).Encode(calendar.CalendarList{Items: []*calendar.CalendarListEntry{
			{Id: "other@group", Summary: "Other"},
			{Id: "work@group", Summary: "Work"},
		}})
	case r.Method == http.MethodGet && r.URL.Path == "/calendars/cal/events":
		items := []*calendar.Event{}
		want := strings.TrimPrefix(r.URL.Query().Get("privateExtendedProperty"), TaskIDProperty+"=")
		for _, e := range f.events {
			if e.ExtendedProperties != nil && e.ExtendedProperties.Private[TaskIDProperty] == want {
				items = append(items, e)
			}
		}
		_ = json.NewEncoder(w).Encode(calendar.Events{Items: items})
	case r.Method == http.MethodPost && r.URL.Path == "/calendars/cal/events":
		var e calendar.Event
		_ = json.NewDecoder(r.Body).Decode(&e)
		e.Id = "evt-1"
		f.events[e.Id] = &e
		_ = json.NewEncoder(w).Encode(e)
	case strings.HasPrefix(r.URL.Path, "/calendars/cal/events/"):
		id := strings.TrimPrefix(r.URL.Path, "/calendars/cal/events/")
		e, ok := f.events[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"code":404,"message":"not found"}}`)
			return
		}
		if r.Method == http.MethodDelete {
			delete(f.events, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method == http.MethodPatch {
			var patch calendar.Event
			_ = json.NewDecoder(r.Body).Decode(&patch)
			if patch.Start != nil {
				e.Start, e.End = patch.Start, patch.End
			}
			if patch.Summary != "" {
				e.Summary = patch.Summary
			}
		}
		_ = json.NewEncoder(w).Encode(e)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"unexpected"}}`)
	}
}

func newTestClient(t *testing.T, fake *fakeCalendar, name string, idx *index.EventIndex) *CalendarClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := NewClient(context.Background(), srv.Client(), name, idx, nil, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return c
}

func TestNewClient_ResolvesCalendarName(t *testing.T) {
	fake := &fakeCalendar{events: map[string]*calendar.Event{}}
	c := newTestClient(t, fake, "Work", nil)
	assert.Equal(t, "work@group", c.CalendarID())

	c = newTestClient(t, fake, "", nil)
	assert.Equal(t, PrimaryCalendar, c.CalendarID())

	srv := httptest.NewServer(fake)
	defer srv.Close()
	_, err := NewClient(context.Background(), srv.Client(), "Missing", nil, nil, option.WithEndpoint(srv.URL+"/"))
	assert.ErrorContains(t, err, `calendar "Missing" not found`)
}

func TestBusyIntervals_ClipsToWindow(t *testing.T) {
	fake := &fakeCalendar{
		events: map[string]*calendar.Event{},
		busy: []*calendar.TimePeriod{
			{Start: "2025-03-10T06:00:00Z", End: "2025-03-10T08:00:00Z"},
			{Start: "2025-03-10T12:00:00Z", End: "2025-03-10T13:00:00Z"},
		},
	}
	c := newTestClient(t, fake, "", nil)

	window := interval.Interval{Start: now, End: now.Add(12 * time.Hour)}
	got, err := c.BusyIntervals(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Start.Equal(now), "clipped to window start")
	assert.True(t, got[0].End.Equal(now.Add(time.Hour)))
	assert.True(t, got[1].Start.Equal(now.Add(5*time.Hour)))

	_, err = c.BusyIntervals(context.Background(), interval.Interval{Start: now, End: now})
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)
}

func TestPublishSlot_CreatesThenPatches(t *testing.T) {
	fake := &fakeCalendar{events: map[string]*calendar.Event{}}
	idx, err := index.Open(t.TempDir())
	require.NoError(t, err)
	srv := httptest.NewServer(fake)
	defer srv.Close()
	svc, err := calendar.NewService(context.Background(), option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	c := NewCalendarClient(svc, "cal", idx, nil)
	c.now = func() time.Time { return now }

	task := scheduledTask()
	ev, err := c.PublishSlot(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", ev.Id)
	assert.Equal(t, "evt-1", idx.Get(task.ID))

	ev, err = c.PublishSlot(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", ev.Id, "unchanged event is not fetched again")

	moved := task.ScheduledStart.Add(time.Hour)
	movedEnd := task.ScheduledEnd.Add(time.Hour)
	task.ScheduledStart, task.ScheduledEnd = &moved, &movedEnd
	ev, err = c.PublishSlot(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10T10:30:00Z", ev.Start.DateTime)

	entry, ok := idx.Lookup(task.ID)
	require.True(t, ok)
	assert.True(t, entry.Start.Equal(moved))
	assert.True(t, entry.End.Equal(movedEnd))
	assert.NotEmpty(t, entry.Digest)

	assert.Equal(t, []string{
		"GET /calendars/cal/events",
		"POST /calendars/cal/events",
		"GET /calendars/cal/events/evt-1",
		"PATCH /calendars/cal/events/evt-1",
	}, fake.requests)

	require.NoError(t, c.MarkOverdue(context.Background(), task.ID, "evt-1", task.Title))
	assert.Equal(t, "! Write report", fake.events["evt-1"].Summary)

	fake.requests = nil
	_, err = c.PublishSlot(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"GET /calendars/cal/events/evt-1",
		"PATCH /calendars/cal/events/evt-1",
	}, fake.requests, "a renamed event is compared again")
	assert.Equal(t, "Write report", fake.events["evt-1"].Summary)

	require.NoError(t, c.DeleteEvent(context.Background(), task.ID, "evt-1"))
	assert.Empty(t, idx.Get(task.ID))
}

func TestTaskEvent(t *testing.T) {
	task := scheduledTask()
	ev, err := TaskEvent(task, now)
	require.NoError(t, err)
	assert.Equal(t, "Write report", ev.Summary)
	assert.Equal(t, "1", ev.ColorId)
	assert.Equal(t, "2025-03-10T09:30:00Z", ev.Start.DateTime)
	assert.Equal(t, "2025-03-10T11:00:00Z", ev.End.DateTime)
	assert.Equal(t, "task-1", ev.ExtendedProperties.Private[TaskIDProperty])
	assert.Contains(t, ev.Description, "#work")
	assert.Contains(t, ev.Description, "ID: task-1")
	assert.Contains(t, ev.Description, "• estimated: 1h30m0s")
	assert.Contains(t, ev.Description, "• due in: 2d 11h")

	started := task.ScheduledStart.Add(20 * time.Minute)
	task.StartedAt = &started
	ev, err = TaskEvent(task, now)
	require.NoError(t, err)
	assert.Equal(t, "‣ Write report", ev.Summary)
	assert.Contains(t, ev.Description, "• started late by: 20m0s")

	task.Status = model.Status{Name: "Completed", Type: model.StatusCompleted}
	ev, err = TaskEvent(task, now)
	require.NoError(t, err)
	assert.Equal(t, "✓ Write report", ev.Summary)

	task.ScheduledStart = nil
	_, err = TaskEvent(task, now)
	assert.Error(t, err)
}

func TestEventNeedsUpdate(t *testing.T) {
	target, err := TaskEvent(scheduledTask(), now)
	require.NoError(t, err)

	same := *target
	same.Start = &calendar.EventDateTime{DateTime: "2025-03-10T10:30:00+01:00"}
	patch, err := EventNeedsUpdate(&same, target)
	require.NoError(t, err)
	assert.Nil(t, patch, "same instant in another offset")

	changed := *target
	changed.Summary = "old"
	changed.End = &calendar.EventDateTime{DateTime: "2025-03-10T12:00:00Z"}
	patch, err = EventNeedsUpdate(&changed, target)
	require.NoError(t, err)
	require.NotNil(t, patch)
	assert.Equal(t, target.Summary, patch.Summary)
	assert.Empty(t, patch.Description)
	assert.Equal(t, target.End, patch.End)

	bad := *target
	bad.Start = &calendar.EventDateTime{DateTime: "yesterday"}
	_, err = EventNeedsUpdate(&bad, target)
	assert.Error(t, err)
}
