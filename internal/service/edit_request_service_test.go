package service

import (
	"errors"
	"testing"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"
)

func newEditRequestFixture(memberRoles map[string]domain.Role) (*EditRequestService, *mockEditRequestRepo, *mockMemberRepo) {
	access, _, members := newAccessFixture(memberRoles)
	requests := newMockEditRequestRepo()
	return NewEditRequestService(requests, members, access), requests, members
}

func TestEditRequestService_ViewerRequestIsPersisted(t *testing.T) {
	svc, requests, _ := newEditRequestFixture(nil)

	req, granted, err := svc.Request("p1", "viewer-user", "let me in")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if granted {
		t.Fatal("expected a viewer request not to be auto-granted")
	}
	if req.Status != domain.EditRequestPending {
		t.Errorf("expected PENDING, got %s", req.Status)
	}
	if req.Message != "let me in" {
		t.Errorf("expected message to be stored, got %q", req.Message)
	}

	stored, err := requests.Find("p1", "viewer-user")
	if err != nil {
		t.Fatalf("expected stored request, got %v", err)
	}
	if stored.ID != req.ID {
		t.Error("expected returned and stored requests to match")
	}
}

func TestEditRequestService_RepeatRequestOverwritesNotQueues(t *testing.T) {
	svc, requests, _ := newEditRequestFixture(nil)

	first, _, err := svc.Request("p1", "viewer-user", "first ask")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	second, _, err := svc.Request("p1", "viewer-user", "second ask")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if first.ID != second.ID {
		t.Error("expected repeat request to keep the same id")
	}

	pending, _ := requests.ListPendingByProject("p1")
	if len(pending) != 1 {
		t.Fatalf("expected exactly 1 live request, got %d", len(pending))
	}
	if pending[0].Message != "second ask" {
		t.Errorf("expected latest message to win, got %q", pending[0].Message)
	}
}

func TestEditRequestService_EditorShortCircuits(t *testing.T) {
	svc, requests, _ := newEditRequestFixture(map[string]domain.Role{
		"editor-user": domain.RoleEditor,
	})

	req, granted, err := svc.Request("p1", "editor-user", "already can")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !granted {
		t.Error("expected an editor's request to short-circuit to granted")
	}
	if req != nil {
		t.Error("expected no request row for an already-entitled user")
	}
	if _, err := requests.Find("p1", "editor-user"); err == nil {
		t.Error("expected nothing persisted for an already-entitled user")
	}
}

func TestEditRequestService_ApprovePromotesAndMarksRequests(t *testing.T) {
	svc, requests, members := newEditRequestFixture(nil)

	req, _, err := svc.Request("p1", "viewer-user", "please")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	requestIDs, granted, err := svc.Approve("p1", "owner", "viewer-user", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if granted != domain.RoleEditor {
		t.Errorf("expected EDITOR grant by default, got %s", granted)
	}
	if len(requestIDs) != 1 || requestIDs[0] != req.ID {
		t.Errorf("expected the pending request id, got %v", requestIDs)
	}

	member, err := members.Find("p1", "viewer-user")
	if err != nil {
		t.Fatalf("expected membership row, got %v", err)
	}
	if member.Role != domain.RoleEditor {
		t.Errorf("expected EDITOR membership, got %s", member.Role)
	}

	stored, _ := requests.Find("p1", "viewer-user")
	if stored.Status != domain.EditRequestApproved {
		t.Errorf("expected APPROVED, got %s", stored.Status)
	}
}

func TestEditRequestService_ApproveWithoutPendingRequestStillGrants(t *testing.T) {
	svc, _, members := newEditRequestFixture(nil)

	requestIDs, granted, err := svc.Approve("p1", "owner", "spontaneous-user", "VIEWER")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if granted != domain.RoleViewer {
		t.Errorf("expected VIEWER grant, got %s", granted)
	}
	if len(requestIDs) != 0 {
		t.Errorf("expected no affected request ids, got %v", requestIDs)
	}

	if _, err := members.Find("p1", "spontaneous-user"); err != nil {
		t.Error("expected a membership row even without a pending request")
	}
}

func TestEditRequestService_NonOwnerCannotApprove(t *testing.T) {
	svc, _, _ := newEditRequestFixture(map[string]domain.Role{
		"editor-user": domain.RoleEditor,
	})

	if _, _, err := svc.Approve("p1", "editor-user", "viewer-user", ""); !errors.Is(err, ErrNoPermission) {
		t.Errorf("expected ErrNoPermission, got %v", err)
	}
}

func TestEditRequestService_OwnerGrantIsCappedAtEditor(t *testing.T) {
	svc, _, members := newEditRequestFixture(nil)

	_, granted, err := svc.Approve("p1", "owner", "viewer-user", "OWNER")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if granted != domain.RoleEditor {
		t.Errorf("expected OWNER grant to demote to EDITOR, got %s", granted)
	}

	member, _ := members.Find("p1", "viewer-user")
	if member.Role != domain.RoleEditor {
		t.Errorf("expected EDITOR membership, got %s", member.Role)
	}
}
