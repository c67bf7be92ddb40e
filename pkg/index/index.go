package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const indexFile = "events.json"

// EventIndex remembers which calendar event mirrors which Notion page so
// syncs can skip the extended-property search.
type EventIndex struct {
	Mappings map[string]string `json:"mappings"`
	Path     string            `json:"-"`
	mu       sync.RWMutex
	dirty    bool
}

// Open loads dir/events.json, starting empty when it does not exist yet.
func Open(dir string) (*EventIndex, error) {
	idx := &EventIndex{
		Mappings: make(map[string]string),
		Path:     filepath.Join(dir, indexFile),
	}
	if err := idx.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return idx, nil
}

func (idx *EventIndex) Load() error {
	f, err := os.Open(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	m := make(map[string]string)
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return fmt.Errorf("failed to decode event index %s: %w", idx.Path, err)
	}
	if m == nil {
		m = make(map[string]string)
	}
	idx.Mappings = m
	return nil
}

// Save writes the index if anything changed since the last load or save.
func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(idx.Path), 0700); err != nil {
		return err
	}
	f, err := os.Create(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(idx.Mappings); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

func (idx *EventIndex) Get(pageID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.Mappings[pageID]
}

func (idx *EventIndex) Set(pageID, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.Mappings[pageID] != eventID {
		idx.Mappings[pageID] = eventID
		idx.dirty = true
	}
}

func (idx *EventIndex) Remove(pageID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.Mappings[pageID]; exists {
		delete(idx.Mappings, pageID)
		idx.dirty = true
	}
}

// Snapshot returns a copy of the mappings.
func (idx *EventIndex) Snapshot() map[string]string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string]string, len(idx.Mappings))
	for k, v := range idx.Mappings {
		out[k] = v
	}
	return out
}
