// Package registry holds the process-wide "active downloads" registry used
// for concurrency admission control. Task processing and manual single-video
// downloads share the same instance, so the configured maximum bounds both.
package registry

import (
	"sync"
	"time"
)

// Download is one in-flight download entry.
type Download struct {
	ID        string
	Label     string
	Progress  int
	StartedAt time.Time
}

// ActiveDownloads is a counted set of in-flight downloads.
type ActiveDownloads struct {
	mu      sync.RWMutex
	entries map[string]*Download
}

func NewActiveDownloads() *ActiveDownloads {
	return &ActiveDownloads{entries: make(map[string]*Download)}
}

// Add registers an in-flight download. Adding an id twice overwrites the
// previous entry.
func (a *ActiveDownloads) Add(id, label string) {
	a.mu.Lock()
	a.entries[id] = &Download{
		ID:        id,
		Label:     label,
		StartedAt: time.Now(),
	}
	a.mu.Unlock()
}

// Update adjusts the label and progress of an entry; unknown ids are ignored.
func (a *ActiveDownloads) Update(id, label string, progress int) {
	a.mu.Lock()
	if entry, ok := a.entries[id]; ok {
		if label != "" {
			entry.Label = label
		}
		entry.Progress = progress
	}
	a.mu.Unlock()
}

// Remove deletes an entry. Removing an unknown id is a no-op, so callers can
// release unconditionally on every exit path.
func (a *ActiveDownloads) Remove(id string) {
	a.mu.Lock()
	delete(a.entries, id)
	a.mu.Unlock()
}

func (a *ActiveDownloads) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// List returns a snapshot of the current entries.
func (a *ActiveDownloads) List() []Download {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Download, 0, len(a.entries))
	for _, entry := range a.entries {
		out = append(out, *entry)
	}
	return out
}
