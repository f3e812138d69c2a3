package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/chatledger/internal/domain"
)

const clientColumns = `id, chat_ref, name, city, created_at`

// ClientRepository implements usecase.ClientRepository.
type ClientRepository struct {
	db DB
}

// NewClientRepository creates a new ClientRepository.
func NewClientRepository(db DB) *ClientRepository {
	return &ClientRepository{db: db}
}

const upsertClientQuery = `
INSERT INTO clients (chat_ref, name, city, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (chat_ref) DO UPDATE
SET name = EXCLUDED.name, city = COALESCE(EXCLUDED.city, clients.city)
RETURNING ` + clientColumns

// Upsert inserts the client or refreshes the one sharing its chat reference.
// A nil city keeps the stored one.
func (r *ClientRepository) Upsert(ctx context.Context, client *domain.Client) (*domain.Client, error) {
	row := r.db.QueryRow(ctx, upsertClientQuery,
		client.ChatRef, client.Name, client.City, timeToPgTimestamptz(client.CreatedAt))
	return scanClientRow(row)
}

// GetByID retrieves a client by ID.
func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	row := r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClientRow(row)
}

// GetByChatRef retrieves a client by its chat reference.
func (r *ClientRepository) GetByChatRef(ctx context.Context, chatRef int64) (*domain.Client, error) {
	row := r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE chat_ref = $1`, chatRef)
	return scanClientRow(row)
}

// UpdateCity sets or clears the city of a client.
func (r *ClientRepository) UpdateCity(ctx context.Context, chatRef int64, city *string) (*domain.Client, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE clients SET city = $2 WHERE chat_ref = $1 RETURNING `+clientColumns, chatRef, city)
	return scanClientRow(row)
}

// List lists clients ordered by ID.
func (r *ClientRepository) List(ctx context.Context, limit, offset int) ([]*domain.Client, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]*domain.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}

	return clients, rows.Err()
}

func scanClientRow(row pgx.Row) (*domain.Client, error) {
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrClientNotFound
		}
		return nil, translateError(err)
	}
	return c, nil
}

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	if err := row.Scan(&c.ID, &c.ChatRef, &c.Name, &c.City, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}
