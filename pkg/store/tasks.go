package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harrisonrobin/effitime/pkg/model"
)

// NewTask holds the user-supplied fields of a task.
type NewTask struct {
	UserID      string
	Title       string
	Description string
	Tags        []string
	Category    string
	Deadline    *time.Time
	Estimate    string
}

const taskColumns = `t.id, t.user_id, t.title, t.description, t.tags, t.category,
	s.id, s.name, s.type, s.color,
	t.created_at, t.started_at, t.finished_at, t.deadline, t.estimate, t.scheduled_start, t.scheduled_end`

const taskFrom = ` FROM tasks t JOIN statuses s ON s.id = t.status_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (model.Task, error) {
	var t model.Task
	var tags, statusType, createdAt string
	var started, finished, deadline, from, to sql.NullString
	err := r.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &tags, &t.Category,
		&t.Status.ID, &t.Status.Name, &statusType, &t.Status.Color,
		&createdAt, &started, &finished, &deadline, &t.Estimate, &from, &to)
	if err != nil {
		return model.Task{}, err
	}
	t.Status.Type = model.StatusType(statusType)

	if t.Tags, err = decodeTags(tags); err != nil {
		return model.Task{}, fmt.Errorf("decode tags: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Task{}, fmt.Errorf("parse created_at: %w", err)
	}
	for _, f := range []struct {
		name string
		src  sql.NullString
		dst  **time.Time
	}{
		{"started_at", started, &t.StartedAt},
		{"finished_at", finished, &t.FinishedAt},
		{"deadline", deadline, &t.Deadline},
		{"scheduled_start", from, &t.ScheduledStart},
		{"scheduled_end", to, &t.ScheduledEnd},
	} {
		if *f.dst, err = parseNullTime(f.src); err != nil {
			return model.Task{}, fmt.Errorf("parse %s: %w", f.name, err)
		}
	}
	return t, nil
}

func getTask(ctx context.Context, q querier, id string) (model.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+taskFrom+` WHERE t.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return model.Task{}, err
	}
	return t, nil
}

func statusByName(ctx context.Context, q querier, name string) (model.Status, error) {
	var (
		st model.Status
		tp string
	)
	err := q.QueryRowContext(ctx, `SELECT id, name, type, color FROM statuses WHERE name = ? COLLATE NOCASE`,
		strings.TrimSpace(name)).Scan(&st.ID, &st.Name, &tp, &st.Color)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Status{}, fmt.Errorf("status %q: %w", name, ErrNotFound)
		}
		return model.Status{}, err
	}
	st.Type = model.StatusType(tp)
	return st, nil
}

// CreateTask inserts a task in the "New" status and returns it.
func (s *Store) CreateTask(ctx context.Context, nt NewTask) (model.Task, error) {
	if err := s.check("create task"); err != nil {
		return model.Task{}, err
	}
	if strings.TrimSpace(nt.UserID) == "" {
		return model.Task{}, fmt.Errorf("create task: user id is empty")
	}
	if strings.TrimSpace(nt.Title) == "" {
		return model.Task{}, fmt.Errorf("create task: title is empty")
	}
	initial, err := statusByName(ctx, s.db, model.DefaultStatusName)
	if err != nil {
		return model.Task{}, fmt.Errorf("create task: initial status: %w", err)
	}
	tags, err := encodeTags(nt.Tags)
	if err != nil {
		return model.Task{}, fmt.Errorf("create task: encode tags: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `INSERT INTO tasks (id, user_id, title, description, tags, category, status_id, created_at, deadline, estimate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nt.UserID, nt.Title, nt.Description, tags, nt.Category, initial.ID,
		formatTime(s.now()), nullTime(nt.Deadline), nt.Estimate)
	if err != nil {
		return model.Task{}, fmt.Errorf("create task: insert: %w", err)
	}
	s.log.Debug("task created", zap.String("task", id))
	return s.GetTask(ctx, id)
}

// GetTask returns one task with its status.
func (s *Store) GetTask(ctx context.Context, id string) (model.Task, error) {
	if err := s.check("get task"); err != nil {
		return model.Task{}, err
	}
	t, err := getTask(ctx, s.db, id)
	if err != nil {
		return model.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns every task of a user, oldest first.
func (s *Store) ListTasks(ctx context.Context, userID string) ([]model.Task, error) {
	if err := s.check("list tasks"); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+taskFrom+` WHERE t.user_id = ? ORDER BY t.created_at ASC, t.id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: query: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: scan: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: rows: %w", err)
	}
	return tasks, nil
}

// Statuses returns the status catalogue.
func (s *Store) Statuses(ctx context.Context) ([]model.Status, error) {
	if err := s.check("statuses"); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type, color FROM statuses ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("statuses: query: %w", err)
	}
	defer rows.Close()

	var out []model.Status
	for rows.Next() {
		var (
			st model.Status
			tp string
		)
		if err := rows.Scan(&st.ID, &st.Name, &tp, &st.Color); err != nil {
			return nil, fmt.Errorf("statuses: scan: %w", err)
		}
		st.Type = model.StatusType(tp)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("statuses: rows: %w", err)
	}
	return out, nil
}

// UpdateStatus moves a task to the named status and records the change in
// the history. The first move to "in work" stamps started_at; terminal
// statuses stamp finished_at and leaving one clears it. Moving to the
// current status is a no-op.
func (s *Store) UpdateStatus(ctx context.Context, taskID, status string, actorID *string) (model.Task, error) {
	if err := s.check("update status"); err != nil {
		return model.Task{}, err
	}
	err := s.inTx(ctx, "update status", func(tx *sql.Tx) error {
		task, err := getTask(ctx, tx, taskID)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		next, err := statusByName(ctx, tx, status)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if next.ID == task.Status.ID {
			return nil
		}

		now := s.now()
		started := task.StartedAt
		if started == nil && next.Type == model.StatusInWork {
			started = &now
		}
		var finished *time.Time
		if next.Type.IsTerminal() {
			finished = &now
		}

		_, err = tx.ExecContext(ctx, `UPDATE tasks SET status_id = ?, started_at = ?, finished_at = ? WHERE id = ?`,
			next.ID, nullTime(started), nullTime(finished), taskID)
		if err != nil {
			return fmt.Errorf("update status: update task: %w", err)
		}
		if _, err := appendHistory(ctx, tx, taskID, model.FieldStatus, task.Status.Name, next.Name, now, actorID); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	s.log.Debug("status updated", zap.String("task", taskID), zap.String("status", status))
	return s.GetTask(ctx, taskID)
}
