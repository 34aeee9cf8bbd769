package domain

import (
	"encoding/json"
	"time"
)

// BoardSnapshot is the materialized, storage-friendly view of a room's
// document. Nodes and Edges are opaque client-defined JSON objects;
// CompactState is the base64-encoded full document state used to rehydrate
// the CRDT on cold start. A snapshot is always derived from the document via
// encode, never hand-edited.
type BoardSnapshot struct {
	ProjectID    string            `json:"project_id"`
	Nodes        []json.RawMessage `json:"nodes"`
	Edges        []json.RawMessage `json:"edges"`
	CompactState string            `json:"compact_state,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (s *BoardSnapshot) IsEmpty() bool {
	return len(s.Nodes) == 0 && len(s.Edges) == 0
}

type UpdateBoardRequest struct {
	Nodes []json.RawMessage `json:"nodes" validate:"required"`
	Edges []json.RawMessage `json:"edges" validate:"required"`
}

type BoardResponse struct {
	ProjectID string            `json:"project_id"`
	Nodes     []json.RawMessage `json:"nodes"`
	Edges     []json.RawMessage `json:"edges"`
	UpdatedAt time.Time         `json:"updated_at"`
}
