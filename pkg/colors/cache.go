package colors

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	cacheFile = "objective_colors.json"

	// NoObjectiveColor is Graphite, used for tasks not linked to an objective.
	NoObjectiveColor = "14"
	// Google Calendar event colors 1..11 are handed out to objectives.
	paletteSize = 11
)

type ObjectiveState struct {
	ColorID  string    `json:"color_id"`
	LastUsed time.Time `json:"last_used"`
}

// Cache gives each objective a stable calendar color. When every color is
// taken the least recently used objective gives its color up.
type Cache struct {
	Path       string
	Objectives map[string]*ObjectiveState

	now   func() time.Time
	mu    sync.Mutex
	dirty bool
}

// Open loads dir/objective_colors.json, starting empty when it does not exist.
func Open(dir string) (*Cache, error) {
	c := &Cache{
		Path:       filepath.Join(dir, cacheFile),
		Objectives: make(map[string]*ObjectiveState),
		now:        time.Now,
	}
	f, err := os.Open(c.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&c.Objectives); err != nil {
		return nil, fmt.Errorf("failed to decode color cache %s: %w", c.Path, err)
	}
	if c.Objectives == nil {
		c.Objectives = make(map[string]*ObjectiveState)
	}
	return c, nil
}

func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
		return fmt.Errorf("error creating color cache directory: %w", err)
	}
	f, err := os.Create(c.Path)
	if err != nil {
		return fmt.Errorf("error creating color cache file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(c.Objectives); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// ColorID returns the color for an objective, assigning one if needed.
// A nil or empty objective gets NoObjectiveColor.
func (c *Cache) ColorID(objective *string) string {
	if objective == nil || *objective == "" {
		return NoObjectiveColor
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.Objectives[*objective]; ok {
		state.LastUsed = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assign(*objective)
}

func (c *Cache) assign(objective string) string {
	used := make(map[string]bool, len(c.Objectives))
	for _, s := range c.Objectives {
		used[s.ColorID] = true
	}

	color := ""
	for i := 1; i <= paletteSize; i++ {
		if id := strconv.Itoa(i); !used[id] {
			color = id
			break
		}
	}

	if color == "" {
		var oldest string
		var oldestTime time.Time
		for name, s := range c.Objectives {
			if oldest == "" || s.LastUsed.Before(oldestTime) {
				oldest, oldestTime = name, s.LastUsed
			}
		}
		color = c.Objectives[oldest].ColorID
		delete(c.Objectives, oldest)
	}

	c.Objectives[objective] = &ObjectiveState{ColorID: color, LastUsed: c.now()}
	c.dirty = true
	return color
}
