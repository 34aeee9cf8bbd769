package domain

import "time"

type EditRequestStatus string

const (
	EditRequestPending  EditRequestStatus = "PENDING"
	EditRequestApproved EditRequestStatus = "APPROVED"
)

// EditRequest is a viewer's petition for edit rights on a project. There is
// at most one live request per (project, requester) pair: re-requesting
// overwrites the message and resets the status to PENDING.
type EditRequest struct {
	ID          string            `json:"id"`
	ProjectID   string            `json:"project_id"`
	RequesterID string            `json:"requester_id"`
	Status      EditRequestStatus `json:"status"`
	Message     string            `json:"message,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
