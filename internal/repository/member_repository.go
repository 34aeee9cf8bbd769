package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type MemberRepository interface {
	Upsert(member *domain.Member) error
	Find(projectID, userID string) (*domain.Member, error)
	ListByProject(projectID string) ([]*domain.Member, error)
}

type memberRepository struct {
	client *kivik.Client
	dbName string
}

func NewMemberRepository(client *kivik.Client, dbName string) MemberRepository {
	return &memberRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *memberRepository) Upsert(member *domain.Member) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("member:%s:%s", member.ProjectID, member.UserID)

	doc := map[string]interface{}{
		"project_id": member.ProjectID,
		"user_id":    member.UserID,
		"role":       member.Role,
		"updated_at": time.Now(),
	}

	var existing map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&existing); err == nil {
		doc["_rev"] = existing["_rev"]
	}

	if _, err := db.Put(context.Background(), docID, doc); err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}

	return nil
}

func (r *memberRepository) Find(projectID, userID string) (*domain.Member, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("member:%s:%s", projectID, userID)
	row := db.Get(context.Background(), docID)

	var member domain.Member
	if err := row.ScanDoc(&member); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find member: %w", err)
	}

	return &member, nil
}

func (r *memberRepository) ListByProject(projectID string) ([]*domain.Member, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"project_id": projectID,
			"role":       map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		var member domain.Member
		if err := rows.ScanDoc(&member); err != nil {
			continue
		}
		members = append(members, &member)
	}

	return members, nil
}
