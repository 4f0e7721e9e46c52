package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/effitime/pkg/conflict"
	"github.com/harrisonrobin/effitime/pkg/interval"
	"github.com/harrisonrobin/effitime/pkg/model"
)

func scheduledIntervals(ctx context.Context, q querier, userID, excludeTaskID string, window *interval.Interval) ([]interval.Interval, error) {
	query := `SELECT scheduled_start, scheduled_end FROM tasks
		WHERE user_id = ? AND id <> ? AND scheduled_start IS NOT NULL AND scheduled_end IS NOT NULL`
	args := []any{userID, excludeTaskID}
	if window != nil {
		query += ` AND scheduled_start < ? AND scheduled_end > ?`
		args = append(args, formatTime(window.End), formatTime(window.Start))
	}
	query += ` ORDER BY scheduled_start ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := make([]interval.Interval, 0)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var iv interval.Interval
		if iv.Start, err = parseTime(from); err != nil {
			return nil, fmt.Errorf("parse scheduled_start: %w", err)
		}
		if iv.End, err = parseTime(to); err != nil {
			return nil, fmt.Errorf("parse scheduled_end: %w", err)
		}
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// ListOtherScheduledIntervals returns the committed slots of the user's
// other tasks that overlap window.
func (s *Store) ListOtherScheduledIntervals(ctx context.Context, userID, excludeTaskID string, window interval.Interval) ([]interval.Interval, error) {
	if err := s.check("list scheduled intervals"); err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("list scheduled intervals: %w", err)
	}
	out, err := scheduledIntervals(ctx, s.db, userID, excludeTaskID, &window)
	if err != nil {
		return nil, fmt.Errorf("list scheduled intervals: %w", err)
	}
	return out, nil
}

// CommitTiming stores slot as the task's scheduled time. The conflict
// check is re-run inside the transaction so a task committed concurrently
// cannot be overlapped; a collision returns *ConflictError.
func (s *Store) CommitTiming(ctx context.Context, taskID string, slot interval.Interval, actorID *string) error {
	if err := s.check("commit timing"); err != nil {
		return err
	}
	if err := slot.Validate(); err != nil {
		return fmt.Errorf("commit timing: %w", err)
	}

	err := s.inTx(ctx, "commit timing", func(tx *sql.Tx) error {
		task, err := getTask(ctx, tx, taskID)
		if err != nil {
			return fmt.Errorf("commit timing: %w", err)
		}
		others, err := scheduledIntervals(ctx, tx, task.UserID, taskID, nil)
		if err != nil {
			return fmt.Errorf("commit timing: other intervals: %w", err)
		}
		if res := conflict.CheckFit(slot, others); !res.OK() {
			return &ConflictError{TaskID: taskID, Result: res}
		}

		_, err = tx.ExecContext(ctx, `UPDATE tasks SET scheduled_start = ?, scheduled_end = ? WHERE id = ?`,
			formatTime(slot.Start), formatTime(slot.End), taskID)
		if err != nil {
			return fmt.Errorf("commit timing: update task: %w", err)
		}

		now := s.now()
		changes := []struct {
			field, old, new string
		}{
			{model.FieldScheduledStart, timeText(task.ScheduledStart), timeText(&slot.Start)},
			{model.FieldScheduledEnd, timeText(task.ScheduledEnd), timeText(&slot.End)},
		}
		for _, c := range changes {
			if c.old == c.new {
				continue
			}
			if _, err := appendHistory(ctx, tx, taskID, c.field, c.old, c.new, now, actorID); err != nil {
				return fmt.Errorf("commit timing: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("timing committed", zap.String("task", taskID), zap.Stringer("slot", slot))
	return nil
}

// timeText renders an optional instant for the history log.
func timeText(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
