// Package overdue tracks committed slots of open tasks so a sweep can report
// the ones that ran out before the task was finished.
package overdue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/harrisonrobin/effitime/pkg/model"
)

const tableFile = "pending_slots.json"

type Entry struct {
	TaskID  string    `json:"task_id"`
	EventID string    `json:"event_id,omitempty"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

type Table struct {
	Entries map[string]Entry `json:"entries"`
	Path    string           `json:"-"`
	dirty   bool
}

// Open loads dir/pending_slots.json if it exists. An empty dir keeps the
// table in memory.
func Open(dir string) (*Table, error) {
	t := &Table{Entries: make(map[string]Entry)}
	if dir == "" {
		return t, nil
	}
	t.Path = filepath.Join(dir, tableFile)
	if _, err := os.Stat(t.Path); err == nil {
		if err := t.Load(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) Load() error {
	f, err := os.Open(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(t); err != nil {
		return fmt.Errorf("load overdue table %s: %w", t.Path, err)
	}
	if t.Entries == nil {
		t.Entries = make(map[string]Entry)
	}
	return nil
}

func (t *Table) Save() error {
	if !t.dirty || t.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.Path), 0700); err != nil {
		return err
	}
	f, err := os.Create(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Update tracks the task while it is open and has a committed slot, and
// forgets it otherwise.
func (t *Table) Update(task model.Task, eventID string) {
	if task.IsFinished() || task.ScheduledStart == nil || task.ScheduledEnd == nil {
		t.Remove(task.ID)
		return
	}
	next := Entry{
		TaskID:  task.ID,
		EventID: eventID,
		Title:   task.Title,
		Start:   *task.ScheduledStart,
		End:     *task.ScheduledEnd,
	}
	if old, ok := t.Entries[task.ID]; ok && old.EventID == next.EventID && old.Title == next.Title &&
		old.Start.Equal(next.Start) && old.End.Equal(next.End) {
		return
	}
	t.Entries[task.ID] = next
	t.dirty = true
}

func (t *Table) Remove(taskID string) {
	if _, ok := t.Entries[taskID]; ok {
		delete(t.Entries, taskID)
		t.dirty = true
	}
}

// Sweep removes and returns the entries whose slot ended before now,
// earliest first.
func (t *Table) Sweep(now time.Time) []Entry {
	var swept []Entry
	for id, e := range t.Entries {
		if e.End.Before(now) {
			swept = append(swept, e)
			delete(t.Entries, id)
			t.dirty = true
		}
	}
	sort.Slice(swept, func(i, j int) bool { return swept[i].End.Before(swept[j].End) })
	return swept
}
