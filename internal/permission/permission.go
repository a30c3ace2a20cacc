// Package permission provides the capability checks consulted by the
// deletion engine's entry points.
package permission

import (
	"context"
	"sync"
)

// Capability names an action a user may be allowed to perform.
type Capability string

const (
	// RequestDeletion allows opening a deletion request.
	RequestDeletion Capability = "deletion.request"

	// ManageDeletion allows admin actions: cancelling any request,
	// executing approved deletions, triggering sweeps and recounts.
	ManageDeletion Capability = "deletion.manage"
)

// Checker answers capability queries for a user.
type Checker interface {
	HasPermission(ctx context.Context, userID string, capability Capability) (bool, error)
}

// AllowAll grants every capability to every user. Useful for tests and
// single-user deployments.
type AllowAll struct{}

// HasPermission always returns true.
func (AllowAll) HasPermission(_ context.Context, _ string, _ Capability) (bool, error) {
	return true, nil
}

// GrantTable is a mutable in-memory Checker keyed by user and capability.
type GrantTable struct {
	mu     sync.RWMutex
	grants map[string]map[Capability]bool
}

// NewGrantTable creates an empty grant table.
func NewGrantTable() *GrantTable {
	return &GrantTable{grants: make(map[string]map[Capability]bool)}
}

// Grant gives a user a capability.
func (t *GrantTable) Grant(userID string, capability Capability) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.grants[userID] == nil {
		t.grants[userID] = make(map[Capability]bool)
	}
	t.grants[userID][capability] = true
}

// Revoke removes a capability from a user.
func (t *GrantTable) Revoke(userID string, capability Capability) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.grants[userID], capability)
}

// HasPermission reports whether the user holds the capability.
func (t *GrantTable) HasPermission(_ context.Context, userID string, capability Capability) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.grants[userID][capability], nil
}

// Ensure implementations satisfy Checker.
var (
	_ Checker = AllowAll{}
	_ Checker = (*GrantTable)(nil)
)
