// Package registry holds the current set of schedule tags shared between the
// refresh worker (sole writer) and the action scheduler (reader).
package registry

import (
	"sync"
	"time"

	"vmsched/internal/schedule"
)

// Registry is replaced wholesale on every successful refresh; readers always
// see either the previous list or the new one, never a mix.
type Registry struct {
	mu        sync.RWMutex
	tags      []schedule.Tag
	version   uint64
	updatedAt time.Time
}

func New() *Registry { return &Registry{} }

// Replace swaps in tags as the new registry contents. The slice is copied.
func (r *Registry) Replace(tags []schedule.Tag) {
	cp := make([]schedule.Tag, len(tags))
	copy(cp, tags)

	r.mu.Lock()
	r.tags = cp
	r.version++
	r.updatedAt = time.Now()
	r.mu.Unlock()
}

// Snapshot returns a private copy of the current tags.
func (r *Registry) Snapshot() []schedule.Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schedule.Tag, len(r.tags))
	copy(out, r.tags)
	return out
}

// Info describes the registry for status output.
type Info struct {
	Tags      int       `json:"tags"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Registry) Info() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Info{Tags: len(r.tags), Version: r.version, UpdatedAt: r.updatedAt}
}
