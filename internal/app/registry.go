package app

import (
	"sync"

	"livepoll-service/internal/domain"
)

// RegistryEntry is what the process knows about one live connection.
type RegistryEntry struct {
	Role      domain.Role
	SessionID string
	Name      string
}

// Registry is the process-wide map from connection id to session membership.
// Entries are added when a connection attaches or joins and removed on
// disconnect; it never outlives the process.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]RegistryEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]RegistryEntry)}
}

// Put records or replaces the entry for a connection.
func (r *Registry) Put(connID string, entry RegistryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[connID] = entry
}

// Get looks up a connection's entry.
func (r *Registry) Get(connID string) (RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[connID]
	return entry, ok
}

// Remove drops the entry for a connection, no-op if absent.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, connID)
}
