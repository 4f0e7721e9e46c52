package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/effitime/pkg/conflict"
	"github.com/harrisonrobin/effitime/pkg/interval"
	"github.com/harrisonrobin/effitime/pkg/lifecycle"
	"github.com/harrisonrobin/effitime/pkg/model"
)

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func openTest(t *testing.T) (*Store, *clock) {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "effitime.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	c := &clock{t: base}
	s.now = c.now
	return s, c
}

func hours(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

func TestMigrate_IsIdempotentAndSeedsStatuses(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, s.db))

	statuses, err := s.Statuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, len(DefaultStatuses))
	assert.Equal(t, "New", statuses[0].Name)
	assert.Equal(t, model.StatusNew, statuses[0].Type)
}

func TestCreateAndGetTask(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	deadline := hours(48)

	created, err := s.CreateTask(ctx, NewTask{
		UserID:   "u1",
		Title:    "Write report",
		Tags:     []string{"work", "q1"},
		Category: "Work",
		Deadline: &deadline,
		Estimate: "PT2H",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.DefaultStatusName, created.Status.Name)
	assert.True(t, created.CreatedAt.Equal(base))
	require.NotNil(t, created.Deadline)
	assert.True(t, created.Deadline.Equal(deadline))
	assert.Equal(t, []string{"work", "q1"}, created.Tags)
	assert.Nil(t, created.ScheduledStart)

	_, err = s.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.CreateTask(ctx, NewTask{UserID: "u1"})
	assert.Error(t, err)
}

func TestUpdateStatus_WritesHistoryAndStamps(t *testing.T) {
	s, c := openTest(t)
	ctx := context.Background()
	task, err := s.CreateTask(ctx, NewTask{UserID: "u1", Title: "t"})
	require.NoError(t, err)

	c.advance(time.Hour)
	task, err = s.UpdateStatus(ctx, task.ID, "in work", nil)
	require.NoError(t, err)
	assert.Equal(t, "In work", task.Status.Name)
	require.NotNil(t, task.StartedAt)
	assert.True(t, task.StartedAt.Equal(hours(1)))
	assert.Nil(t, task.FinishedAt)

	c.advance(2 * time.Hour)
	actor := "reviewer"
	task, err = s.UpdateStatus(ctx, task.ID, "Completed", &actor)
	require.NoError(t, err)
	assert.True(t, task.IsFinished())
	require.NotNil(t, task.FinishedAt)
	assert.True(t, task.FinishedAt.Equal(hours(3)))

	_, err = s.UpdateStatus(ctx, task.ID, "Completed", nil)
	require.NoError(t, err, "no-op transition")

	events, err := s.ListHistory(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.FieldStatus, events[0].Field)
	assert.Equal(t, "New", events[0].OldValue)
	assert.Equal(t, "In work", events[0].NewValue)
	assert.Nil(t, events[0].ActorID)
	require.NotNil(t, events[1].ActorID)
	assert.Equal(t, "reviewer", *events[1].ActorID)
	assert.Less(t, events[0].Seq, events[1].Seq)

	c.advance(time.Hour)
	segs := lifecycle.Reconstruct(lifecycle.FromTask(task, events, c.now(), nil))
	require.Len(t, segs, 3)
	assert.Equal(t, 3600.0, segs[0].DurationSeconds)
	assert.Equal(t, 7200.0, segs[1].DurationSeconds)
	assert.Zero(t, segs[2].DurationSeconds, "terminal task stops at finished_at")

	_, err = s.UpdateStatus(ctx, task.ID, "nonexistent", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendHistoryEvent(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	task, err := s.CreateTask(ctx, NewTask{UserID: "u1", Title: "t"})
	require.NoError(t, err)

	ev, err := s.AppendHistoryEvent(ctx, task.ID, "title", "t", "t2", nil)
	require.NoError(t, err)
	assert.Positive(t, ev.Seq)
	assert.True(t, ev.CreatedAt.Equal(base))

	_, err = s.AppendHistoryEvent(ctx, "missing", "title", "a", "b", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommitTiming_RechecksConflicts(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	a, err := s.CreateTask(ctx, NewTask{UserID: "u1", Title: "a"})
	require.NoError(t, err)
	b, err := s.CreateTask(ctx, NewTask{UserID: "u1", Title: "b"})
	require.NoError(t, err)
	other, err := s.CreateTask(ctx, NewTask{UserID: "u2", Title: "other user"})
	require.NoError(t, err)

	slotA := interval.Interval{Start: hours(1), End: hours(2)}
	require.NoError(t, s.CommitTiming(ctx, a.ID, slotA, nil))
	require.NoError(t, s.CommitTiming(ctx, other.ID, slotA, nil), "other users never conflict")

	err = s.CommitTiming(ctx, b.ID, interval.Interval{Start: hours(1).Add(30 * time.Minute), End: hours(3)}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, conflict.Conflicts, ce.Result.Verdict)

	require.NoError(t, s.CommitTiming(ctx, b.ID, interval.Interval{Start: hours(2), End: hours(3)}, nil), "touching is not a conflict")

	// Rescheduling a task ignores its own previous slot.
	require.NoError(t, s.CommitTiming(ctx, a.ID, interval.Interval{Start: hours(1).Add(-30 * time.Minute), End: hours(1).Add(30 * time.Minute)}, nil))

	got, err := s.GetTask(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ScheduledStart)
	assert.True(t, got.ScheduledStart.Equal(hours(2)))

	events, err := s.ListHistory(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, model.FieldScheduledStart, events[0].Field)
	assert.Equal(t, "", events[0].OldValue)
	assert.Equal(t, hours(1).Format(time.RFC3339), events[0].NewValue)

	err = s.CommitTiming(ctx, a.ID, interval.Interval{Start: hours(2), End: hours(2)}, nil)
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)
}

func TestListOtherScheduledIntervals(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	var ids []string
	for i, slot := range []interval.Interval{
		{Start: hours(1), End: hours(2)},
		{Start: hours(5), End: hours(6)},
		{Start: hours(30), End: hours(31)},
	} {
		task, err := s.CreateTask(ctx, NewTask{UserID: "u1", Title: string(rune('a' + i))})
		require.NoError(t, err)
		require.NoError(t, s.CommitTiming(ctx, task.ID, slot, nil))
		ids = append(ids, task.ID)
	}

	got, err := s.ListOtherScheduledIntervals(ctx, "u1", ids[1], interval.Interval{Start: base, End: hours(24)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Start.Equal(hours(1)))

	got, err = s.ListOtherScheduledIntervals(ctx, "u1", "", interval.Interval{Start: hours(2), End: hours(5)})
	require.NoError(t, err)
	assert.Empty(t, got, "touching slots are outside the window")
}

func TestSleepSettings(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()
	defaults := model.SleepSettings{WakeUp: "08:00", BedTime: "23:00"}

	got, err := s.SleepSettings(ctx, "u1", defaults)
	require.NoError(t, err)
	assert.Equal(t, model.SleepSettings{UserID: "u1", WakeUp: "08:00", BedTime: "23:00"}, got)

	require.NoError(t, s.SetSleepSettings(ctx, model.SleepSettings{UserID: "u1", WakeUp: "6:30", BedTime: "22:15"}))
	got, err = s.SleepSettings(ctx, "u1", defaults)
	require.NoError(t, err)
	assert.Equal(t, "06:30", got.WakeUp)
	assert.Equal(t, "22:15", got.BedTime)

	assert.Error(t, s.SetSleepSettings(ctx, model.SleepSettings{UserID: "u1", WakeUp: "25:00", BedTime: "22:00"}))
}
