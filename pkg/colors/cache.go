package colors

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Fallback is returned for an empty status name.
const Fallback = "#ccc"

const cacheFile = "status_colors.json"

// palette is cycled through when a status has no configured color.
var palette = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f", "#edc948",
	"#b07aa1", "#ff9da7", "#9c755f", "#bab0ac", "#86bcb6",
}

type StatusState struct {
	Color        string    `json:"color"`
	Pinned       bool      `json:"pinned"` // configured by the store, never evicted
	LastModified time.Time `json:"last_modified"`
}

// StatusColors maps status names to display colors. Configured colors are
// pinned; unknown statuses borrow a palette color, recycling the least
// recently used one when the palette is exhausted.
type StatusColors struct {
	Path     string
	Statuses map[string]*StatusState `json:"statuses"`
	mu       sync.Mutex
	dirty    bool
	log      *zap.Logger
	now      func() time.Time
}

// New returns an in-memory palette. An empty path disables persistence.
func New(path string, log *zap.Logger) *StatusColors {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatusColors{
		Path:     path,
		Statuses: make(map[string]*StatusState),
		log:      log,
		now:      time.Now,
	}
}

// Open loads the palette stored at dir/status_colors.json if it exists.
func Open(dir string, log *zap.Logger) (*StatusColors, error) {
	c := New(filepath.Join(dir, cacheFile), log)
	if _, err := os.Stat(c.Path); err == nil {
		if err := c.Load(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *StatusColors) Load() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(&c.Statuses)
}

func (c *StatusColors) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty || c.Path == "" {
		return nil
	}
	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		c.log.Error("creating status color directory", zap.Error(err))
		return err
	}

	f, err := os.Create(c.Path)
	if err != nil {
		c.log.Error("creating status color file", zap.Error(err))
		return err
	}
	defer f.Close()
	err = json.NewEncoder(f).Encode(c.Statuses)
	if err == nil {
		c.dirty = false
	}
	return err
}

// Pin records the configured color of a status.
func (c *StatusColors) Pin(status, color string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.TrimSpace(color) == "" {
		return
	}
	if s, ok := c.Statuses[status]; ok && s.Pinned && s.Color == color {
		return
	}
	c.Statuses[status] = &StatusState{Color: color, Pinned: true, LastModified: c.now()}
	c.dirty = true
}

// Color returns the display color for status.
func (c *StatusColors) Color(status string) string {
	if status == "" {
		return Fallback
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.Statuses[status]; ok {
		state.LastModified = c.now()
		c.dirty = true
		return state.Color
	}
	return c.assignColor(status)
}

func (c *StatusColors) assignColor(status string) string {
	used := make(map[string]bool)
	for _, s := range c.Statuses {
		used[s.Color] = true
	}

	for _, color := range palette {
		if !used[color] {
			c.Statuses[status] = &StatusState{Color: color, LastModified: c.now()}
			c.dirty = true
			return color
		}
	}

	// Palette is full -> evict the least recently used unpinned status
	var oldest string
	var oldestTime time.Time
	first := true
	for name, s := range c.Statuses {
		if s.Pinned {
			continue
		}
		if first || s.LastModified.Before(oldestTime) {
			oldest, oldestTime, first = name, s.LastModified, false
		}
	}
	if oldest == "" {
		return Fallback
	}

	recycled := c.Statuses[oldest].Color
	delete(c.Statuses, oldest)
	c.Statuses[status] = &StatusState{Color: recycled, LastModified: c.now()}
	c.dirty = true
	c.log.Debug("recycled status color", zap.String("from", oldest), zap.String("to", status), zap.String("color", recycled))
	return recycled
}
