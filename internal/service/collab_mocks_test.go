package service

import (
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/repository"
)

type mockProjectRepo struct {
	projects map[string]*domain.Project
}

func newMockProjectRepo() *mockProjectRepo {
	return &mockProjectRepo{projects: make(map[string]*domain.Project)}
}

func (m *mockProjectRepo) Create(project *domain.Project) error {
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) FindByID(id string) (*domain.Project, error) {
	if p, ok := m.projects[id]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockProjectRepo) ListByOwner(ownerID string) ([]*domain.Project, error) {
	var projects []*domain.Project
	for _, p := range m.projects {
		if p.OwnerID == ownerID {
			projects = append(projects, p)
		}
	}
	return projects, nil
}

type mockMemberRepo struct {
	members map[string]*domain.Member
}

func newMockMemberRepo() *mockMemberRepo {
	return &mockMemberRepo{members: make(map[string]*domain.Member)}
}

func memberKey(projectID, userID string) string {
	return projectID + ":" + userID
}

func (m *mockMemberRepo) Upsert(member *domain.Member) error {
	m.members[memberKey(member.ProjectID, member.UserID)] = member
	return nil
}

func (m *mockMemberRepo) Find(projectID, userID string) (*domain.Member, error) {
	if member, ok := m.members[memberKey(projectID, userID)]; ok {
		return member, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockMemberRepo) ListByProject(projectID string) ([]*domain.Member, error) {
	var members []*domain.Member
	for _, member := range m.members {
		if member.ProjectID == projectID {
			members = append(members, member)
		}
	}
	return members, nil
}

type mockEditRequestRepo struct {
	requests map[string]*domain.EditRequest
}

func newMockEditRequestRepo() *mockEditRequestRepo {
	return &mockEditRequestRepo{requests: make(map[string]*domain.EditRequest)}
}

func (m *mockEditRequestRepo) Upsert(req *domain.EditRequest) error {
	copied := *req
	m.requests[memberKey(req.ProjectID, req.RequesterID)] = &copied
	return nil
}

func (m *mockEditRequestRepo) Find(projectID, requesterID string) (*domain.EditRequest, error) {
	if req, ok := m.requests[memberKey(projectID, requesterID)]; ok {
		copied := *req
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockEditRequestRepo) ListPendingByProject(projectID string) ([]*domain.EditRequest, error) {
	var pending []*domain.EditRequest
	for _, req := range m.requests {
		if req.ProjectID == projectID && req.Status == domain.EditRequestPending {
			copied := *req
			pending = append(pending, &copied)
		}
	}
	return pending, nil
}

type mockShareRepo struct {
	links map[string]*domain.ShareLink
}

func newMockShareRepo() *mockShareRepo {
	return &mockShareRepo{links: make(map[string]*domain.ShareLink)}
}

func (m *mockShareRepo) Create(link *domain.ShareLink) error {
	m.links[link.Token] = link
	return nil
}

func (m *mockShareRepo) FindByToken(token string) (*domain.ShareLink, error) {
	if link, ok := m.links[token]; ok {
		return link, nil
	}
	return nil, repository.ErrNotFound
}

type mockBoardRepo struct {
	boards map[string]*domain.BoardSnapshot
}

func newMockBoardRepo() *mockBoardRepo {
	return &mockBoardRepo{boards: make(map[string]*domain.BoardSnapshot)}
}

func (m *mockBoardRepo) Read(projectID string) (*domain.BoardSnapshot, error) {
	if snapshot, ok := m.boards[projectID]; ok {
		return snapshot, nil
	}
	return nil, nil
}

func (m *mockBoardRepo) Write(snapshot *domain.BoardSnapshot) error {
	m.boards[snapshot.ProjectID] = snapshot
	return nil
}

// newAccessFixture builds an access service over one project owned by
// "owner" plus any provided membership rows.
func newAccessFixture(memberRoles map[string]domain.Role) (*AccessService, *mockProjectRepo, *mockMemberRepo) {
	projects := newMockProjectRepo()
	members := newMockMemberRepo()

	projects.Create(&domain.Project{ID: "p1", OwnerID: "owner", Name: "Test"})
	for userID, role := range memberRoles {
		members.Upsert(&domain.Member{ProjectID: "p1", UserID: userID, Role: role})
	}

	return NewAccessService(projects, members), projects, members
}
