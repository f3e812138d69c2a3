package postgres

import (
	"context"
	"fmt"

	"github.com/iho/chatledger/internal/domain"
)

// ReferenceRepository implements usecase.ReferenceRepository.
type ReferenceRepository struct {
	db DB
}

// NewReferenceRepository creates a new ReferenceRepository.
func NewReferenceRepository(db DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// CreateCategory inserts a category with a unique name.
func (r *ReferenceRepository) CreateCategory(ctx context.Context, category *domain.Category) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO categories (name, created_at) VALUES ($1, $2) RETURNING id`,
		category.Name, timeToPgTimestamptz(category.CreatedAt),
	).Scan(&category.ID)
	return translateError(err)
}

// ListCategories lists categories ordered by name.
func (r *ReferenceRepository) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]*domain.Category, 0)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		categories = append(categories, &c)
	}

	return categories, rows.Err()
}

// CreateActor inserts an actor.
func (r *ReferenceRepository) CreateActor(ctx context.Context, actor *domain.Actor) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO actors (display_name, created_at) VALUES ($1, $2) RETURNING id`,
		actor.DisplayName, timeToPgTimestamptz(actor.CreatedAt),
	).Scan(&actor.ID)
	return translateError(err)
}

// ListActors lists actors ordered by ID.
func (r *ReferenceRepository) ListActors(ctx context.Context) ([]*domain.Actor, error) {
	rows, err := r.db.Query(ctx, `SELECT id, display_name, created_at FROM actors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actors := make([]*domain.Actor, 0)
	for rows.Next() {
		var a domain.Actor
		if err := rows.Scan(&a.ID, &a.DisplayName, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		actors = append(actors, &a)
	}

	return actors, rows.Err()
}

// ManagerRepository implements usecase.ManagerRepository.
type ManagerRepository struct {
	db DB
}

// NewManagerRepository creates a new ManagerRepository.
func NewManagerRepository(db DB) *ManagerRepository {
	return &ManagerRepository{db: db}
}

const upsertManagerQuery = `
INSERT INTO managers (user_id, display_name, added_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET display_name = EXCLUDED.display_name
RETURNING added_at`

// Upsert inserts a manager or refreshes its display name, keeping AddedAt.
func (r *ManagerRepository) Upsert(ctx context.Context, manager *domain.Manager) error {
	err := r.db.QueryRow(ctx, upsertManagerQuery,
		manager.UserID, manager.DisplayName, timeToPgTimestamptz(manager.AddedAt),
	).Scan(&manager.AddedAt)
	if err != nil {
		return translateError(err)
	}
	manager.AddedAt = manager.AddedAt.UTC()
	return nil
}

// Delete removes a manager.
func (r *ManagerRepository) Delete(ctx context.Context, userID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM managers WHERE user_id = $1`, userID)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", domain.ErrManagerNotFound, userID)
	}
	return nil
}

// List lists managers in the order they were added.
func (r *ManagerRepository) List(ctx context.Context) ([]*domain.Manager, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, display_name, added_at FROM managers ORDER BY added_at, user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	managers := make([]*domain.Manager, 0)
	for rows.Next() {
		var m domain.Manager
		if err := rows.Scan(&m.UserID, &m.DisplayName, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("scan manager: %w", err)
		}
		m.AddedAt = m.AddedAt.UTC()
		managers = append(managers, &m)
	}

	return managers, rows.Err()
}

// Exists reports whether userID is a manager.
func (r *ManagerRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM managers WHERE user_id = $1)`, userID,
	).Scan(&exists)
	return exists, err
}
