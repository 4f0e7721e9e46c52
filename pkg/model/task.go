package model

import "time"

// FieldStatus is the history field name recorded for status changes.
const (
	FieldStatus         = "status"
	FieldScheduledStart = "scheduled_start"
	FieldScheduledEnd   = "scheduled_end"
)

// DefaultStatusName is assumed for tasks that have neither a status nor history.
const DefaultStatusName = "New"

// StatusType classifies a user-visible status into workflow semantics.
type StatusType string

const (
	StatusNew           StatusType = "new"
	StatusInWork        StatusType = "in work"
	StatusWaitForDetail StatusType = "wait for detail"
	StatusInfoReceived  StatusType = "info received"
	StatusPaused        StatusType = "paused"
	StatusCompleted     StatusType = "completed"
	StatusCancelled     StatusType = "cancelled"
	StatusDeferred      StatusType = "deferred"
)

// IsTerminal reports whether tasks in this status are finished.
func (t StatusType) IsTerminal() bool {
	return t == StatusCompleted || t == StatusCancelled
}

// Status is a named workflow state with a display color.
type Status struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Type  StatusType `json:"type"`
	Color string     `json:"color"`
}

// Task is a personal task owned by one user.
type Task struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags,omitempty"`
	Category    string    `json:"category,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	// Accounting
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	Estimate   string     `json:"estimate,omitempty"` // free text or ISO 8601 duration, passed to the oracle as-is
	// Committed timing
	ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty"`
}

// IsFinished reports whether the task sits in a terminal status.
func (t Task) IsFinished() bool {
	return t.Status.Type.IsTerminal()
}

// HistoryEvent is one append-only field change of a task. Seq breaks ties
// between events sharing CreatedAt.
type HistoryEvent struct {
	Seq       int64     `json:"seq"`
	TaskID    string    `json:"task_id"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	CreatedAt time.Time `json:"created_at"`
	ActorID   *string   `json:"actor_id,omitempty"`
}

// SleepSettings holds a user's wake and bed times as "HH:MM".
type SleepSettings struct {
	UserID  string `json:"user_id"`
	WakeUp  string `json:"wake_up_time"`
	BedTime string `json:"bed_time"`
}
