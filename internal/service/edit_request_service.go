package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/repository"

	"github.com/google/uuid"
)

// EditRequestService manages viewers' petitions for edit rights and the
// owner-side approval that promotes them.
type EditRequestService struct {
	requestRepo repository.EditRequestRepository
	memberRepo  repository.MemberRepository
	access      *AccessService
}

func NewEditRequestService(requestRepo repository.EditRequestRepository, memberRepo repository.MemberRepository, access *AccessService) *EditRequestService {
	return &EditRequestService{
		requestRepo: requestRepo,
		memberRepo:  memberRepo,
		access:      access,
	}
}

// Request upserts an edit request for (project, requester). A repeat request
// while one is pending overwrites the message and resets the status; it is
// idempotent, not a queue. When the requester already holds edit rights the
// request short-circuits to an immediate grant and no row is written.
func (s *EditRequestService) Request(projectID, requesterID, message string) (*domain.EditRequest, bool, error) {
	role, err := s.access.ResolveRole(projectID, requesterID)
	if err != nil {
		return nil, false, err
	}
	if role.CanEdit() {
		return nil, true, nil
	}

	now := time.Now()

	req, err := s.requestRepo.Find(projectID, requesterID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("failed to look up edit request: %w", err)
		}
		req = &domain.EditRequest{
			ID:          uuid.New().String(),
			ProjectID:   projectID,
			RequesterID: requesterID,
			CreatedAt:   now,
		}
	}

	req.Status = domain.EditRequestPending
	req.Message = message
	req.UpdatedAt = now

	if err := s.requestRepo.Upsert(req); err != nil {
		return nil, false, err
	}

	return req, false, nil
}

// Approve grants a role to the target identity. Only the project owner may
// approve. It upserts the membership row, marks every pending request from
// the target APPROVED, and returns the affected request ids with the granted
// role.
func (s *EditRequestService) Approve(projectID, actorID, targetID string, role string) ([]string, domain.Role, error) {
	actorRole, err := s.access.ResolveRole(projectID, actorID)
	if err != nil {
		return nil, "", err
	}
	if !actorRole.CanGrant() {
		return nil, "", ErrNoPermission
	}

	granted := domain.RoleEditor
	if role != "" {
		granted = domain.NormalizeRole(role)
		if granted == domain.RoleOwner {
			granted = domain.RoleEditor
		}
	}

	member := &domain.Member{
		ProjectID: projectID,
		UserID:    targetID,
		Role:      granted,
		UpdatedAt: time.Now(),
	}
	if err := s.memberRepo.Upsert(member); err != nil {
		return nil, "", err
	}

	pending, err := s.requestRepo.ListPendingByProject(projectID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list pending requests: %w", err)
	}

	var requestIDs []string
	for _, req := range pending {
		if req.RequesterID != targetID {
			continue
		}
		req.Status = domain.EditRequestApproved
		req.UpdatedAt = time.Now()
		if err := s.requestRepo.Upsert(req); err != nil {
			return nil, "", err
		}
		requestIDs = append(requestIDs, req.ID)
	}

	return requestIDs, granted, nil
}
