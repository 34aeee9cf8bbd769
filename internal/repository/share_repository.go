package repository

import (
	"context"
	"fmt"
	"net/http"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type ShareRepository interface {
	Create(link *domain.ShareLink) error
	FindByToken(token string) (*domain.ShareLink, error)
}

type shareRepository struct {
	client *kivik.Client
	dbName string
}

func NewShareRepository(client *kivik.Client, dbName string) ShareRepository {
	return &shareRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *shareRepository) Create(link *domain.ShareLink) error {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("share:%s", link.Token)
	_, err := db.Put(context.Background(), docID, link)
	if err != nil {
		return fmt.Errorf("failed to create share link: %w", err)
	}

	return nil
}

func (r *shareRepository) FindByToken(token string) (*domain.ShareLink, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("share:%s", token)
	row := db.Get(context.Background(), docID)

	var link domain.ShareLink
	if err := row.ScanDoc(&link); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find share link: %w", err)
	}

	return &link, nil
}
