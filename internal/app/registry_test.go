package app

import (
	"testing"

	"livepoll-service/internal/domain"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Get("c1"); ok {
		t.Fatalf("expected empty registry")
	}

	r.Put("c1", RegistryEntry{Role: domain.RoleParticipant, SessionID: "s1", Name: "Alice"})
	entry, ok := r.Get("c1")
	if !ok || entry.Name != "Alice" || entry.Role != domain.RoleParticipant {
		t.Fatalf("unexpected entry %+v", entry)
	}

	// Re-put replaces in place, as on a role upgrade.
	r.Put("c1", RegistryEntry{Role: domain.RoleModerator, SessionID: "s1", Name: "Alice"})
	entry, _ = r.Get("c1")
	if entry.Role != domain.RoleModerator {
		t.Fatalf("expected replacement, got %+v", entry)
	}

	r.Remove("c1")
	if _, ok := r.Get("c1"); ok {
		t.Fatalf("expected entry removed")
	}
	r.Remove("c1") // no-op
}
