package service

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
)

func newProjectFixture() (*ProjectService, *mockProjectRepo, *mockBoardRepo) {
	projects := newMockProjectRepo()
	members := newMockMemberRepo()
	boards := newMockBoardRepo()

	access := NewAccessService(projects, members)
	return NewProjectService(projects, boards, access), projects, boards
}

func TestProjectService_CreateAndGet(t *testing.T) {
	svc, _, _ := newProjectFixture()

	project, err := svc.Create("owner", &domain.CreateProjectRequest{Name: "ER Diagram"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if project.ID == "" {
		t.Error("expected a generated project id")
	}
	if project.OwnerID != "owner" {
		t.Errorf("expected owner, got %s", project.OwnerID)
	}

	fetched, err := svc.Get(project.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fetched.Name != "ER Diagram" {
		t.Errorf("expected name round-trip, got %s", fetched.Name)
	}
}

func TestProjectService_GetUnknownProject(t *testing.T) {
	svc, _, _ := newProjectFixture()

	if _, err := svc.Get("missing"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestProjectService_GetBoardWithoutSnapshotIsEmpty(t *testing.T) {
	svc, projects, _ := newProjectFixture()
	projects.Create(&domain.Project{ID: "p1", OwnerID: "owner"})

	board, err := svc.GetBoard("p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if board.Nodes == nil || board.Edges == nil {
		t.Error("expected empty slices, not nil, for a fresh board")
	}
	if len(board.Nodes) != 0 || len(board.Edges) != 0 {
		t.Errorf("expected empty board, got %d nodes %d edges", len(board.Nodes), len(board.Edges))
	}
}

func TestProjectService_UpdateBoardRequiresEditRights(t *testing.T) {
	svc, projects, _ := newProjectFixture()
	projects.Create(&domain.Project{ID: "p1", OwnerID: "owner"})

	req := &domain.UpdateBoardRequest{
		Nodes: []json.RawMessage{json.RawMessage(`{"id":"n1"}`)},
		Edges: []json.RawMessage{},
	}

	if err := svc.UpdateBoard("p1", "stranger", req); !errors.Is(err, ErrNoPermission) {
		t.Errorf("expected ErrNoPermission for a viewer, got %v", err)
	}
}

func TestProjectService_UpdateBoardWritesCompactState(t *testing.T) {
	svc, projects, boards := newProjectFixture()
	projects.Create(&domain.Project{ID: "p1", OwnerID: "owner"})

	req := &domain.UpdateBoardRequest{
		Nodes: []json.RawMessage{json.RawMessage(`{"id":"n1","label":"Users"}`)},
		Edges: []json.RawMessage{json.RawMessage(`{"id":"e1","from":"n1","to":"n1"}`)},
	}

	if err := svc.UpdateBoard("p1", "owner", req); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stored, _ := boards.Read("p1")
	if stored == nil {
		t.Fatal("expected a stored snapshot")
	}
	if len(stored.Nodes) != 1 || len(stored.Edges) != 1 {
		t.Errorf("expected submitted content, got %d nodes %d edges", len(stored.Nodes), len(stored.Edges))
	}
	if stored.CompactState == "" {
		t.Error("expected compact state so rooms can rehydrate a proper document")
	}
}
