package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/effitime/pkg/model"
)

func appendHistory(ctx context.Context, q querier, taskID, field, old, new string, at time.Time, actorID *string) (model.HistoryEvent, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO history (task_id, field, old_value, new_value, created_at, actor_id) VALUES (?, ?, ?, ?, ?, ?)`,
		taskID, field, old, new, formatTime(at), nullString(actorID))
	if err != nil {
		return model.HistoryEvent{}, fmt.Errorf("append history: insert: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return model.HistoryEvent{}, fmt.Errorf("append history: last insert id: %w", err)
	}
	return model.HistoryEvent{
		Seq:       seq,
		TaskID:    taskID,
		Field:     field,
		OldValue:  old,
		NewValue:  new,
		CreatedAt: at.UTC(),
		ActorID:   actorID,
	}, nil
}

// AppendHistoryEvent records one field change. Events are never updated
// or deleted.
func (s *Store) AppendHistoryEvent(ctx context.Context, taskID, field, old, new string, actorID *string) (model.HistoryEvent, error) {
	if err := s.check("append history event"); err != nil {
		return model.HistoryEvent{}, err
	}
	if strings.TrimSpace(field) == "" {
		return model.HistoryEvent{}, fmt.Errorf("append history event: field is empty")
	}
	if _, err := getTask(ctx, s.db, taskID); err != nil {
		return model.HistoryEvent{}, fmt.Errorf("append history event: %w", err)
	}
	return appendHistory(ctx, s.db, taskID, field, old, new, s.now(), actorID)
}

// ListHistory returns a task's events in the order they happened.
func (s *Store) ListHistory(ctx context.Context, taskID string) ([]model.HistoryEvent, error) {
	if err := s.check("list history"); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, task_id, field, old_value, new_value, created_at, actor_id
		FROM history WHERE task_id = ? ORDER BY created_at ASC, id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list history: query: %w", err)
	}
	defer rows.Close()

	events := make([]model.HistoryEvent, 0)
	for rows.Next() {
		var (
			e     model.HistoryEvent
			at    string
			actor sql.NullString
		)
		if err := rows.Scan(&e.Seq, &e.TaskID, &e.Field, &e.OldValue, &e.NewValue, &at, &actor); err != nil {
			return nil, fmt.Errorf("list history: scan: %w", err)
		}
		if e.CreatedAt, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("list history: parse created_at: %w", err)
		}
		if actor.Valid {
			a := actor.String
			e.ActorID = &a
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: rows: %w", err)
	}
	return events, nil
}
