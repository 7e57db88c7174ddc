package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/event"
)

// Claim records which session a diagram path is bound to.
type Claim struct {
	InstanceID string
	Path       string
	ClaimedAt  time.Time
}

// Registry enforces that at most one session is bound to a diagram path.
// Claims and releases are published to the bus as target events.
type Registry struct {
	mu     sync.RWMutex
	claims map[string]Claim // path -> claim
	bus    *event.Bus
}

// NewRegistry creates an empty Registry. bus may be nil.
func NewRegistry(bus *event.Bus) *Registry {
	return &Registry{
		claims: make(map[string]Claim),
		bus:    bus,
	}
}

// Claim binds path to instanceID. Claiming a path the instance already holds
// is a no-op. A path held by another instance returns an error wrapping
// errors.ErrTargetClaimed.
func (r *Registry) Claim(instanceID, path string) error {
	r.mu.Lock()
	created, err := r.claimLocked(instanceID, path)
	r.mu.Unlock()

	if err != nil {
		return err
	}
	if created {
		r.bus.Publish(event.NewTargetClaimedEvent(instanceID, path))
	}
	return nil
}

// claimLocked reports whether a new claim was recorded.
func (r *Registry) claimLocked(instanceID, path string) (bool, error) {
	if existing, ok := r.claims[path]; ok {
		if existing.InstanceID == instanceID {
			return false, nil
		}
		return false, errors.NewSessionError(
			fmt.Sprintf("%s is bound to %s", path, existing.InstanceID),
			errors.ErrTargetClaimed,
		).WithInstanceID(instanceID).WithTargetPath(path)
	}

	r.claims[path] = Claim{
		InstanceID: instanceID,
		Path:       path,
		ClaimedAt:  time.Now(),
	}
	return true, nil
}

// ReleaseAll drops every claim held by instanceID and returns the released
// paths in sorted order.
func (r *Registry) ReleaseAll(instanceID string) []string {
	r.mu.Lock()
	paths := r.pathsLocked(instanceID)
	for _, p := range paths {
		delete(r.claims, p)
	}
	r.mu.Unlock()

	for _, p := range paths {
		r.bus.Publish(event.NewTargetReleasedEvent(instanceID, p))
	}
	return paths
}

// Rebind moves instanceID's binding to path, releasing whatever it held
// before. Nothing changes if path is held by another instance.
func (r *Registry) Rebind(instanceID, path string) error {
	r.mu.Lock()
	if existing, ok := r.claims[path]; ok && existing.InstanceID != instanceID {
		r.mu.Unlock()
		return errors.NewSessionError(
			fmt.Sprintf("%s is bound to %s", path, existing.InstanceID),
			errors.ErrTargetClaimed,
		).WithInstanceID(instanceID).WithTargetPath(path)
	}

	var released []string
	for _, p := range r.pathsLocked(instanceID) {
		if p != path {
			delete(r.claims, p)
			released = append(released, p)
		}
	}
	created, _ := r.claimLocked(instanceID, path)
	r.mu.Unlock()

	for _, p := range released {
		r.bus.Publish(event.NewTargetReleasedEvent(instanceID, p))
	}
	if created {
		r.bus.Publish(event.NewTargetClaimedEvent(instanceID, path))
	}
	return nil
}

// Owner returns the instance bound to path.
func (r *Registry) Owner(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claim, ok := r.claims[path]
	if !ok {
		return "", false
	}
	return claim.InstanceID, true
}

func (r *Registry) pathsLocked(instanceID string) []string {
	var paths []string
	for p, claim := range r.claims {
		if claim.InstanceID == instanceID {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}
