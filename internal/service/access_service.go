package service

import (
	"errors"
	"fmt"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/repository"
)

// AccessService resolves a participant's role on a project: OWNER when the
// identity owns the project, the membership row's role when one exists, and
// VIEWER otherwise.
type AccessService struct {
	projectRepo repository.ProjectRepository
	memberRepo  repository.MemberRepository
}

func NewAccessService(projectRepo repository.ProjectRepository, memberRepo repository.MemberRepository) *AccessService {
	return &AccessService{
		projectRepo: projectRepo,
		memberRepo:  memberRepo,
	}
}

func (s *AccessService) ResolveRole(projectID, identityID string) (domain.Role, error) {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrProjectNotFound
		}
		return "", fmt.Errorf("failed to resolve project: %w", err)
	}

	if project.OwnerID == identityID {
		return domain.RoleOwner, nil
	}

	member, err := s.memberRepo.Find(projectID, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.RoleViewer, nil
		}
		return "", fmt.Errorf("failed to resolve membership: %w", err)
	}

	if member.Role == "" {
		return domain.RoleEditor, nil
	}
	return domain.NormalizeRole(string(member.Role)), nil
}

// Owner returns the owning identity of a project.
func (s *AccessService) Owner(projectID string) (string, error) {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrProjectNotFound
		}
		return "", fmt.Errorf("failed to resolve project: %w", err)
	}
	return project.OwnerID, nil
}
