package realtime

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/crdt"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
)

func storedSnapshot(projectID string) *domain.BoardSnapshot {
	doc := crdt.NewDocument("seed")
	doc.SetNode("n1", json.RawMessage(`{"id":"n1","label":"Users"}`))

	nodes, edges := doc.Materialize()
	return &domain.BoardSnapshot{
		ProjectID:    projectID,
		Nodes:        nodes,
		Edges:        edges,
		CompactState: base64.StdEncoding.EncodeToString(doc.EncodeFull()),
		UpdatedAt:    time.Now(),
	}
}

func TestRegistry_EnsureRoomHydratesFromStore(t *testing.T) {
	repo := newMockBoardRepo()
	repo.boards["p1"] = storedSnapshot("p1")

	registry := NewRegistry(repo, "i1")

	room, err := registry.EnsureRoom("p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	board := room.LiveBoard()
	if len(board.Nodes) != 1 {
		t.Errorf("expected hydrated room to carry 1 node, got %d", len(board.Nodes))
	}
}

func TestRegistry_EnsureRoomIsIdempotent(t *testing.T) {
	repo := newMockBoardRepo()
	registry := NewRegistry(repo, "i1")

	first, err := registry.EnsureRoom("p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := registry.EnsureRoom("p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if first != second {
		t.Error("expected repeated EnsureRoom to return the same room")
	}
}

func TestRegistry_UnknownProjectStartsEmpty(t *testing.T) {
	repo := newMockBoardRepo()
	registry := NewRegistry(repo, "i1")

	room, err := registry.EnsureRoom("never-saved")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	board := room.LiveBoard()
	if len(board.Nodes) != 0 || len(board.Edges) != 0 {
		t.Errorf("expected empty board, got %d nodes %d edges", len(board.Nodes), len(board.Edges))
	}
}

func TestRegistry_HydrateIfEmptyPicksUpExternalWrite(t *testing.T) {
	repo := newMockBoardRepo()
	registry := NewRegistry(repo, "i1")

	// First access caches an empty room.
	if _, err := registry.EnsureRoom("p1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// A write lands in the store behind the cache's back.
	repo.boards["p1"] = storedSnapshot("p1")

	room, err := registry.HydrateIfEmpty("p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	board := room.LiveBoard()
	if len(board.Nodes) != 1 {
		t.Errorf("expected re-hydrated room to see the external write, got %d nodes", len(board.Nodes))
	}
}

func TestRegistry_HydrateIfEmptyKeepsLiveState(t *testing.T) {
	repo := newMockBoardRepo()
	registry := NewRegistry(repo, "i1")

	room, err := registry.EnsureRoom("p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	doc := crdt.NewDocument("client")
	room.ApplyUpdate(doc.SetNode("n1", json.RawMessage(`{"id":"n1"}`)))
	room.setSnapshot(room.EncodeSnapshot())

	// A stale store must not clobber a room that already has state.
	repo.boards["p1"] = &domain.BoardSnapshot{ProjectID: "p1"}

	again, err := registry.HydrateIfEmpty("p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if board := again.LiveBoard(); len(board.Nodes) != 1 {
		t.Errorf("expected live state to survive, got %d nodes", len(board.Nodes))
	}
}

func TestRegistry_HydrateIfEmptyMergesUnflushedUpdate(t *testing.T) {
	repo := newMockBoardRepo()
	registry := NewRegistry(repo, "i1")

	room, err := registry.EnsureRoom("p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Local update applied, debounce window still open: the cached
	// snapshot stays empty.
	doc := crdt.NewDocument("client")
	room.ApplyUpdate(doc.SetNode("n1", json.RawMessage(`{"id":"n1"}`)))

	// Meanwhile another instance persists a different node.
	other := crdt.NewDocument("other")
	other.SetNode("n2", json.RawMessage(`{"id":"n2"}`))
	nodes, edges := other.Materialize()
	repo.boards["p1"] = &domain.BoardSnapshot{
		ProjectID:    "p1",
		Nodes:        nodes,
		Edges:        edges,
		CompactState: base64.StdEncoding.EncodeToString(other.EncodeFull()),
		UpdatedAt:    time.Now(),
	}

	again, err := registry.HydrateIfEmpty("p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	board := again.LiveBoard()
	ids := make(map[string]bool, len(board.Nodes))
	for _, raw := range board.Nodes {
		var node struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &node); err != nil {
			t.Fatalf("expected node JSON, got %v", err)
		}
		ids[node.ID] = true
	}

	if !ids["n1"] || !ids["n2"] {
		t.Errorf("expected the unflushed update and the stored write to merge, got %v", ids)
	}
}

func TestRegistry_CorruptCompactStateFallsBackToSeed(t *testing.T) {
	repo := newMockBoardRepo()
	repo.boards["p1"] = &domain.BoardSnapshot{
		ProjectID:    "p1",
		Nodes:        []json.RawMessage{json.RawMessage(`{"id":"n1"}`)},
		Edges:        []json.RawMessage{},
		CompactState: "%%%not-base64%%%",
		UpdatedAt:    time.Now(),
	}

	registry := NewRegistry(repo, "i1")

	room, err := registry.EnsureRoom("p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if board := room.LiveBoard(); len(board.Nodes) != 1 {
		t.Errorf("expected seeded fallback to preserve the node, got %d", len(board.Nodes))
	}
}
