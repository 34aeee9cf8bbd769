package service

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/crdt"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/repository"

	"github.com/google/uuid"
)

// ProjectService is the thin project boundary around the collaboration core:
// project CRUD plus the REST read/write path for boards. REST board writes
// go straight to the durable store; live rooms on other instances pick them
// up through hydrate-if-empty.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	boardRepo   repository.BoardRepository
	access      *AccessService
}

func NewProjectService(projectRepo repository.ProjectRepository, boardRepo repository.BoardRepository, access *AccessService) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		boardRepo:   boardRepo,
		access:      access,
	}
}

func (s *ProjectService) Create(ownerID string, req *domain.CreateProjectRequest) (*domain.Project, error) {
	project := &domain.Project{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      req.Name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.projectRepo.Create(project); err != nil {
		return nil, err
	}

	return project, nil
}

func (s *ProjectService) Get(id string) (*domain.Project, error) {
	project, err := s.projectRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) List(ownerID string) ([]*domain.Project, error) {
	return s.projectRepo.ListByOwner(ownerID)
}

// GetBoard returns the persisted board for cold reads. A project with no
// snapshot yet yields an empty board.
func (s *ProjectService) GetBoard(projectID string) (*domain.BoardResponse, error) {
	snapshot, err := s.boardRepo.Read(projectID)
	if err != nil {
		return nil, err
	}

	if snapshot == nil {
		return &domain.BoardResponse{
			ProjectID: projectID,
			Nodes:     []json.RawMessage{},
			Edges:     []json.RawMessage{},
		}, nil
	}

	return &domain.BoardResponse{
		ProjectID: projectID,
		Nodes:     snapshot.Nodes,
		Edges:     snapshot.Edges,
		UpdatedAt: snapshot.UpdatedAt,
	}, nil
}

// UpdateBoard replaces the persisted board through the REST path. The new
// snapshot carries a compact state rebuilt from the submitted nodes and
// edges so later room hydration reconstructs a proper document.
func (s *ProjectService) UpdateBoard(projectID, actorID string, req *domain.UpdateBoardRequest) error {
	role, err := s.access.ResolveRole(projectID, actorID)
	if err != nil {
		return err
	}
	if !role.CanEdit() {
		return ErrNoPermission
	}

	doc := crdt.NewDocument(actorID)
	doc.Seed(req.Nodes, req.Edges)
	nodes, edges := doc.Materialize()

	snapshot := &domain.BoardSnapshot{
		ProjectID:    projectID,
		Nodes:        nodes,
		Edges:        edges,
		CompactState: base64.StdEncoding.EncodeToString(doc.EncodeFull()),
		UpdatedAt:    time.Now(),
	}

	if err := s.boardRepo.Write(snapshot); err != nil {
		return fmt.Errorf("failed to write board: %w", err)
	}

	return nil
}
