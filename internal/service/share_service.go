package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/repository"

	"github.com/google/uuid"
)

const defaultShareLinkTTL = 168 * time.Hour

// ShareService issues and validates share-link tokens granting room access
// without an account.
type ShareService struct {
	shareRepo   repository.ShareRepository
	projectRepo repository.ProjectRepository
}

func NewShareService(shareRepo repository.ShareRepository, projectRepo repository.ProjectRepository) *ShareService {
	return &ShareService{
		shareRepo:   shareRepo,
		projectRepo: projectRepo,
	}
}

// CreateLink issues a share token for a project. Only the project owner may
// create links; links default to VIEWER role and a one-week expiry.
func (s *ShareService) CreateLink(projectID, actorID string, req *domain.CreateShareLinkRequest) (*domain.ShareLink, error) {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	if project.OwnerID != actorID {
		return nil, ErrNoPermission
	}

	role := domain.RoleViewer
	if req.Role != "" {
		role = domain.NormalizeRole(req.Role)
		if role == domain.RoleOwner {
			role = domain.RoleEditor
		}
	}

	ttl := defaultShareLinkTTL
	if req.ExpiresIn != "" {
		parsed, err := time.ParseDuration(req.ExpiresIn)
		if err != nil {
			return nil, fmt.Errorf("invalid expires_in: %w", err)
		}
		ttl = parsed
	}

	link := &domain.ShareLink{
		Token:     uuid.New().String(),
		ProjectID: projectID,
		Role:      role,
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}

	if err := s.shareRepo.Create(link); err != nil {
		return nil, err
	}

	return link, nil
}

// Validate resolves a share token to the role it grants on the project, or
// ErrInvalidShareLink for unknown, expired or mismatched tokens.
func (s *ShareService) Validate(projectID, token string) (domain.Role, error) {
	link, err := s.shareRepo.FindByToken(token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidShareLink
		}
		return "", fmt.Errorf("failed to validate share link: %w", err)
	}

	if link.ProjectID != projectID || link.Expired(time.Now()) {
		return "", ErrInvalidShareLink
	}

	return link.Role, nil
}
