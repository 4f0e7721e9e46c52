// Package index remembers which calendar event belongs to which task and
// what was last published to it, so republishing an unchanged slot costs
// no API calls and a moved slot patches the existing event.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	indexFile     = "events.json"
	formatVersion = 2
)

// Entry is the last publication of a task's slot.
type Entry struct {
	EventID string    `json:"event_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	// Digest fingerprints the event body as it was sent. Empty means the
	// remote event may have changed since.
	Digest    string    `json:"digest,omitempty"`
	Published time.Time `json:"published"`
}

type file struct {
	Version int              `json:"version"`
	Events  map[string]Entry `json:"events"`
}

// EventIndex maps task ids to their published events.
type EventIndex struct {
	path string

	mu      sync.RWMutex
	entries map[string]Entry
	dirty   bool
}

// Open loads dir/events.json, or starts empty when it does not exist yet.
func Open(dir string) (*EventIndex, error) {
	idx := &EventIndex{
		path:    filepath.Join(dir, indexFile),
		entries: make(map[string]Entry),
	}
	data, err := os.ReadFile(idx.path)
	if errors.Is(err, os.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load event index: %w", err)
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("load event index %s: %w", idx.path, err)
	}
	if f.Version != formatVersion {
		return nil, fmt.Errorf("load event index %s: unsupported version %d", idx.path, f.Version)
	}
	for taskID, e := range f.Events {
		if e.EventID != "" {
			idx.entries[taskID] = e
		}
	}
	return idx, nil
}

// Path is the file the index is saved to.
func (idx *EventIndex) Path() string { return idx.path }

// Save writes the index if anything changed since the last save. The file
// is replaced atomically.
func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}
	data, err := json.MarshalIndent(file{Version: formatVersion, Events: idx.entries}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(idx.path), 0700); err != nil {
		return err
	}
	tmp := idx.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("save event index: %w", err)
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		return fmt.Errorf("save event index: %w", err)
	}
	idx.dirty = false
	return nil
}

// Get returns the task's event id, or "".
func (idx *EventIndex) Get(taskID string) string {
	e, _ := idx.Lookup(taskID)
	return e.EventID
}

func (idx *EventIndex) Lookup(taskID string) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[taskID]
	return e, ok
}

// Unchanged returns the event id when the task was last published with
// the same digest.
func (idx *EventIndex) Unchanged(taskID, digest string) (string, bool) {
	e, ok := idx.Lookup(taskID)
	if !ok || e.Digest == "" || e.Digest != digest {
		return "", false
	}
	return e.EventID, true
}

// Record stores a publication. An entry without an event id is ignored.
func (idx *EventIndex) Record(taskID string, e Entry) {
	if e.EventID == "" {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.entries[taskID] != e {
		idx.entries[taskID] = e
		idx.dirty = true
	}
}

// Invalidate keeps the event link but forces the next publication to
// compare against the remote event.
func (idx *EventIndex) Invalidate(taskID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if e, ok := idx.entries[taskID]; ok && e.Digest != "" {
		e.Digest = ""
		idx.entries[taskID] = e
		idx.dirty = true
	}
}

func (idx *EventIndex) Remove(taskID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.entries[taskID]; ok {
		delete(idx.entries, taskID)
		idx.dirty = true
	}
}
