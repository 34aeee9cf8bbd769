package realtime

import (
	"time"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
)

// defaultPalette is the fixed set of participant colors. Assignment reuses
// the color of another tab of the same identity, otherwise picks the first
// unused color, falling back to round-robin once the palette is exhausted.
var defaultPalette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}

// Tracker maintains each room's roster of connected participants. Presence
// is pure in-memory, cross-instance, best-effort state; it is never stored
// durably.
type Tracker struct {
	palette []string
	ttl     time.Duration
}

func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		palette: defaultPalette,
		ttl:     ttl,
	}
}

// Upsert registers or refreshes a participant in the room and returns the
// resulting entry.
func (t *Tracker) Upsert(room *Room, connID, identityID, name string, role domain.Role) *domain.PresenceEntry {
	entry := &domain.PresenceEntry{
		ConnectionID: connID,
		IdentityID:   identityID,
		DisplayName:  name,
		Role:         role,
		Color:        t.assignColor(room, identityID),
		LastSeenAt:   time.Now(),
	}

	room.upsertPresence(entry)
	copied := *entry
	return &copied
}

func (t *Tracker) assignColor(room *Room, identityID string) string {
	reused, inUse, sessions := room.presenceColors(identityID)
	if reused != "" {
		return reused
	}

	for _, color := range t.palette {
		if !inUse[color] {
			return color
		}
	}

	// Session count keeps advancing past the palette size, so successive
	// overflow joiners rotate through the palette.
	return t.palette[sessions%len(t.palette)]
}

// Touch refreshes a participant's liveness timestamp. It returns nil for an
// unknown connection, signaling a stale or ghost heartbeat the caller should
// ignore.
func (t *Tracker) Touch(room *Room, connID string) *domain.PresenceEntry {
	return room.touchPresence(connID, time.Now())
}

// Remove deletes a participant from the roster, returning the removed entry
// or nil if the connection was unknown.
func (t *Tracker) Remove(room *Room, connID string) *domain.PresenceEntry {
	return room.removePresence(connID)
}

// Roster returns a copy of the room's current roster.
func (t *Tracker) Roster(room *Room) []domain.PresenceEntry {
	return room.roster()
}

// SweepStale removes every entry whose last heartbeat is older than the
// liveness threshold and returns them so the caller can publish synthetic
// leaves.
func (t *Tracker) SweepStale(room *Room, now time.Time) []domain.PresenceEntry {
	return room.sweepStale(now.Add(-t.ttl))
}

// ApplyRemote converges the local roster with a presence event replicated
// from a peer instance. Remote entries keep the color and identity assigned
// by the originating instance.
func (t *Tracker) ApplyRemote(room *Room, eventType string, entry domain.PresenceEntry) *domain.PresenceEntry {
	switch eventType {
	case PresenceJoin:
		copied := entry
		copied.LastSeenAt = time.Now()
		room.upsertPresence(&copied)
		result := copied
		return &result

	case PresenceHeartbeat:
		if touched := room.touchPresence(entry.ConnectionID, time.Now()); touched != nil {
			return touched
		}
		// Heartbeat for a connection this instance never saw join; treat
		// it as a late join so rosters converge.
		copied := entry
		copied.LastSeenAt = time.Now()
		room.upsertPresence(&copied)
		result := copied
		return &result

	case PresenceLeave:
		return room.removePresence(entry.ConnectionID)
	}

	return nil
}
