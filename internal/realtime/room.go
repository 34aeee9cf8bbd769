// Package realtime implements the collaboration core: per-room CRDT
// documents, the in-memory room registry, presence tracking, the debounced
// snapshot writer and the Redis fan-out fabric that keeps multiple server
// instances convergent.
package realtime

import (
	"encoding/base64"
	"log"
	"sync"
	"time"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/crdt"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
)

// Room is the collaboration unit for one project. It exclusively owns its
// document and presence tables; every access goes through its methods under
// the room mutex. Cross-process concurrency on the same project is resolved
// by the CRDT merge, not by this lock.
type Room struct {
	ProjectID string

	mu         sync.Mutex
	doc        *crdt.Document
	snapshot   domain.BoardSnapshot
	bySession  map[string]*domain.PresenceEntry
	byIdentity map[string][]*domain.PresenceEntry

	save saveTimer
}

func newRoom(projectID string, doc *crdt.Document, snapshot domain.BoardSnapshot) *Room {
	return &Room{
		ProjectID:  projectID,
		doc:        doc,
		snapshot:   snapshot,
		bySession:  make(map[string]*domain.PresenceEntry),
		byIdentity: make(map[string][]*domain.PresenceEntry),
	}
}

// ApplyUpdate merges an encoded update into the room document.
func (r *Room) ApplyUpdate(update []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.ApplyUpdate(update)
}

// EncodeFull returns the complete document state.
func (r *Room) EncodeFull() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.EncodeFull()
}

// LiveBoard materializes the current in-memory document. Joining clients get
// this, not the possibly stale persisted snapshot, so an update applied a
// moment ago is visible regardless of the debounce window.
func (r *Room) LiveBoard() *domain.BoardResponse {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes, edges := r.doc.Materialize()
	return &domain.BoardResponse{
		ProjectID: r.ProjectID,
		Nodes:     nodes,
		Edges:     edges,
		UpdatedAt: r.snapshot.UpdatedAt,
	}
}

// EncodeSnapshot derives a storage-ready snapshot from the document.
func (r *Room) EncodeSnapshot() domain.BoardSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	nodes, edges := r.doc.Materialize()
	return domain.BoardSnapshot{
		ProjectID:    r.ProjectID,
		Nodes:        nodes,
		Edges:        edges,
		CompactState: base64.StdEncoding.EncodeToString(r.doc.EncodeFull()),
		UpdatedAt:    time.Now(),
	}
}

func (r *Room) setSnapshot(snapshot domain.BoardSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = snapshot
}

func (r *Room) snapshotIsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot.IsEmpty()
}

// rehydrate merges a stored snapshot into the room state. Used when a
// durable write bypassed this instance's cache (e.g. a REST update handled
// elsewhere). The stored elements are merged through the CRDT, so updates
// applied in memory but not yet flushed survive.
func (r *Room) rehydrate(stored *domain.BoardSnapshot, actor string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	incoming := documentFromSnapshot(stored, actor)
	if err := r.doc.ApplyUpdate(incoming.EncodeFull()); err != nil {
		log.Printf("failed to merge stored snapshot for project %s: %v", r.ProjectID, err)
		return
	}
	r.snapshot = *stored
}

// documentFromSnapshot rebuilds a document from the compact state, falling
// back to seeding an empty document from the materialized nodes and edges
// when the compact state is absent or corrupt.
func documentFromSnapshot(stored *domain.BoardSnapshot, actor string) *crdt.Document {
	if stored == nil {
		return crdt.NewDocument(actor)
	}

	if stored.CompactState != "" {
		compact, err := base64.StdEncoding.DecodeString(stored.CompactState)
		if err == nil {
			doc, derr := crdt.FromCompact(compact, actor)
			if derr == nil {
				return doc
			}
			err = derr
		}
		log.Printf("corrupt compact state for project %s, seeding from snapshot: %v", stored.ProjectID, err)
	}

	doc := crdt.NewDocument(actor)
	doc.Seed(stored.Nodes, stored.Edges)
	return doc
}

func (r *Room) upsertPresence(entry *domain.PresenceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertPresenceLocked(entry)
}

func (r *Room) upsertPresenceLocked(entry *domain.PresenceEntry) {
	if existing, ok := r.bySession[entry.ConnectionID]; ok {
		r.dropIdentityLocked(existing)
	}

	r.bySession[entry.ConnectionID] = entry
	if entry.IdentityID != "" {
		r.byIdentity[entry.IdentityID] = append(r.byIdentity[entry.IdentityID], entry)
	}
}

func (r *Room) touchPresence(connID string, now time.Time) *domain.PresenceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.bySession[connID]
	if !ok {
		return nil
	}
	entry.LastSeenAt = now
	copied := *entry
	return &copied
}

func (r *Room) removePresence(connID string) *domain.PresenceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.bySession[connID]
	if !ok {
		return nil
	}

	delete(r.bySession, connID)
	r.dropIdentityLocked(entry)
	copied := *entry
	return &copied
}

func (r *Room) dropIdentityLocked(entry *domain.PresenceEntry) {
	if entry.IdentityID == "" {
		return
	}

	entries := r.byIdentity[entry.IdentityID]
	for i, e := range entries {
		if e.ConnectionID == entry.ConnectionID {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}

	if len(entries) == 0 {
		delete(r.byIdentity, entry.IdentityID)
	} else {
		r.byIdentity[entry.IdentityID] = entries
	}
}

func (r *Room) setPresenceRole(connID string, role domain.Role) *domain.PresenceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.bySession[connID]
	if !ok {
		return nil
	}
	entry.Role = role
	copied := *entry
	return &copied
}

// roster returns a copy of all presence entries in the room.
func (r *Room) roster() []domain.PresenceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	roster := make([]domain.PresenceEntry, 0, len(r.bySession))
	for _, entry := range r.bySession {
		roster = append(roster, *entry)
	}
	return roster
}

// sweepStale removes and returns entries not refreshed since the cutoff.
func (r *Room) sweepStale(cutoff time.Time) []domain.PresenceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []domain.PresenceEntry
	for connID, entry := range r.bySession {
		if entry.LastSeenAt.Before(cutoff) {
			delete(r.bySession, connID)
			r.dropIdentityLocked(entry)
			removed = append(removed, *entry)
		}
	}
	return removed
}

// presenceColors returns the color already assigned to another tab of the
// same identity, the set of colors currently in use, and the number of
// connected sessions.
func (r *Room) presenceColors(identityID string) (string, map[string]bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inUse := make(map[string]bool, len(r.bySession))
	for _, entry := range r.bySession {
		inUse[entry.Color] = true
	}

	if identityID != "" {
		if entries := r.byIdentity[identityID]; len(entries) > 0 {
			return entries[0].Color, inUse, len(r.bySession)
		}
	}
	return "", inUse, len(r.bySession)
}
