package repository

import (
	"context"
	"fmt"
	"net/http"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// EditRequestRepository keys requests by (project, requester), so a second
// request from the same user overwrites the first instead of queueing.
type EditRequestRepository interface {
	Upsert(req *domain.EditRequest) error
	Find(projectID, requesterID string) (*domain.EditRequest, error)
	ListPendingByProject(projectID string) ([]*domain.EditRequest, error)
}

type editRequestRepository struct {
	client *kivik.Client
	dbName string
}

func NewEditRequestRepository(client *kivik.Client, dbName string) EditRequestRepository {
	return &editRequestRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *editRequestRepository) Upsert(req *domain.EditRequest) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("editreq:%s:%s", req.ProjectID, req.RequesterID)

	doc := map[string]interface{}{
		"id":           req.ID,
		"project_id":   req.ProjectID,
		"requester_id": req.RequesterID,
		"status":       req.Status,
		"message":      req.Message,
		"created_at":   req.CreatedAt,
		"updated_at":   req.UpdatedAt,
	}

	var existing map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&existing); err == nil {
		doc["_rev"] = existing["_rev"]
	}

	if _, err := db.Put(context.Background(), docID, doc); err != nil {
		return fmt.Errorf("failed to upsert edit request: %w", err)
	}

	return nil
}

func (r *editRequestRepository) Find(projectID, requesterID string) (*domain.EditRequest, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("editreq:%s:%s", projectID, requesterID)
	row := db.Get(context.Background(), docID)

	var req domain.EditRequest
	if err := row.ScanDoc(&req); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find edit request: %w", err)
	}

	return &req, nil
}

func (r *editRequestRepository) ListPendingByProject(projectID string) ([]*domain.EditRequest, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"project_id": projectID,
			"status":     domain.EditRequestPending,
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list edit requests: %w", err)
	}
	defer rows.Close()

	var requests []*domain.EditRequest
	for rows.Next() {
		var req domain.EditRequest
		if err := rows.ScanDoc(&req); err != nil {
			continue
		}
		requests = append(requests, &req)
	}

	return requests, nil
}
