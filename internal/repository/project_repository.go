package repository

import (
	"context"
	"fmt"
	"net/http"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type ProjectRepository interface {
	Create(project *domain.Project) error
	FindByID(id string) (*domain.Project, error)
	ListByOwner(ownerID string) ([]*domain.Project, error)
}

type projectRepository struct {
	client *kivik.Client
	dbName string
}

func NewProjectRepository(client *kivik.Client, dbName string) ProjectRepository {
	return &projectRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *projectRepository) Create(project *domain.Project) error {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("project:%s", project.ID)
	_, err := db.Put(context.Background(), docID, project)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

func (r *projectRepository) FindByID(id string) (*domain.Project, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("project:%s", id)
	row := db.Get(context.Background(), docID)

	var project domain.Project
	if err := row.ScanDoc(&project); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	return &project, nil
}

func (r *projectRepository) ListByOwner(ownerID string) ([]*domain.Project, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"owner_id": ownerID,
			"name":     map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		var project domain.Project
		if err := rows.ScanDoc(&project); err != nil {
			continue
		}
		projects = append(projects, &project)
	}

	return projects, nil
}
