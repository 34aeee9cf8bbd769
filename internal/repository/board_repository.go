package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// BoardRepository is the durable store for room snapshots. Read returns
// (nil, nil) when no snapshot has ever been written for the project.
type BoardRepository interface {
	Read(projectID string) (*domain.BoardSnapshot, error)
	Write(snapshot *domain.BoardSnapshot) error
}

type boardRepository struct {
	client *kivik.Client
	dbName string
}

func NewBoardRepository(client *kivik.Client, dbName string) BoardRepository {
	return &boardRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *boardRepository) Read(projectID string) (*domain.BoardSnapshot, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("board:%s", projectID)
	row := db.Get(context.Background(), docID)

	var snapshot domain.BoardSnapshot
	if err := row.ScanDoc(&snapshot); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read board snapshot: %w", err)
	}

	return &snapshot, nil
}

func (r *boardRepository) Write(snapshot *domain.BoardSnapshot) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("board:%s", snapshot.ProjectID)

	doc := map[string]interface{}{
		"project_id":    snapshot.ProjectID,
		"nodes":         snapshot.Nodes,
		"edges":         snapshot.Edges,
		"compact_state": snapshot.CompactState,
		"updated_at":    time.Now(),
	}

	var existing map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&existing); err == nil {
		doc["_rev"] = existing["_rev"]
	}

	if _, err := db.Put(context.Background(), docID, doc); err != nil {
		return fmt.Errorf("failed to write board snapshot: %w", err)
	}

	return nil
}
