package realtime

import (
	"fmt"
	"sync"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/repository"
)

// Registry is the process-wide cache of live rooms. Rooms are created at
// first access, hydrated from the durable store, and kept for the lifetime
// of the process; there is no eviction.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	boards     repository.BoardRepository
	instanceID string
}

func NewRegistry(boards repository.BoardRepository, instanceID string) *Registry {
	return &Registry{
		rooms:      make(map[string]*Room),
		boards:     boards,
		instanceID: instanceID,
	}
}

// EnsureRoom returns the cached room for a project, constructing and
// hydrating it from durable storage on first access.
func (r *Registry) EnsureRoom(projectID string) (*Room, error) {
	r.mu.RLock()
	room, ok := r.rooms[projectID]
	r.mu.RUnlock()
	if ok {
		return room, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[projectID]; ok {
		return room, nil
	}

	stored, err := r.boards.Read(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate room %s: %w", projectID, err)
	}

	doc := documentFromSnapshot(stored, r.instanceID)

	snapshot := domain.BoardSnapshot{ProjectID: projectID}
	if stored != nil {
		snapshot = *stored
	}

	room = newRoom(projectID, doc, snapshot)
	r.rooms[projectID] = room
	return room, nil
}

// HydrateIfEmpty re-reads durable storage when the cached snapshot has
// neither nodes nor edges. This covers writes that bypassed this instance's
// cache, such as a REST board update handled by a different instance.
func (r *Registry) HydrateIfEmpty(projectID string) (*Room, error) {
	room, err := r.EnsureRoom(projectID)
	if err != nil {
		return nil, err
	}

	if !room.snapshotIsEmpty() {
		return room, nil
	}

	stored, err := r.boards.Read(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-hydrate room %s: %w", projectID, err)
	}
	if stored != nil && !stored.IsEmpty() {
		room.rehydrate(stored, r.instanceID)
	}

	return room, nil
}

// Rooms returns all currently cached rooms.
func (r *Registry) Rooms() []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
