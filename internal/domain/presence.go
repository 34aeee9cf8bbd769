package domain

import "time"

// PresenceEntry is the ephemeral record of one connection in a room. It is
// never stored durably; liveness is maintained by heartbeats and a periodic
// sweep of stale entries.
type PresenceEntry struct {
	ConnectionID string    `json:"connection_id"`
	IdentityID   string    `json:"identity_id,omitempty"`
	DisplayName  string    `json:"display_name"`
	Role         Role      `json:"role"`
	Color        string    `json:"color"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}
