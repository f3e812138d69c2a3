package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/iho/chatledger/internal/domain"
)

// ClientRepository implements usecase.ClientRepository.
type ClientRepository struct {
	store *Store
}

// NewClientRepository creates a new ClientRepository.
func NewClientRepository(store *Store) *ClientRepository {
	return &ClientRepository{store: store}
}

// Upsert inserts the client or refreshes the one with the same ChatRef.
func (r *ClientRepository) Upsert(ctx context.Context, client *domain.Client) (*domain.Client, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.clientsByChat[client.ChatRef]; ok {
		existing := s.clients[id]
		existing.Name = client.Name
		if client.City != nil {
			city := *client.City
			existing.City = &city
		}
		return cloneClient(existing), nil
	}

	stored := cloneClient(client)
	stored.ID = s.clientSeq.Add(1)
	s.clients[stored.ID] = stored
	s.clientsByChat[stored.ChatRef] = stored.ID

	return cloneClient(stored), nil
}

// GetByID retrieves a client by ID.
func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrClientNotFound, id)
	}
	return cloneClient(c), nil
}

// GetByChatRef retrieves a client by chat reference.
func (r *ClientRepository) GetByChatRef(ctx context.Context, chatRef int64) (*domain.Client, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.clientsByChat[chatRef]
	if !ok {
		return nil, fmt.Errorf("%w: chat %d", domain.ErrClientNotFound, chatRef)
	}
	return cloneClient(r.store.clients[id]), nil
}

// UpdateCity replaces the city of the client with chatRef.
func (r *ClientRepository) UpdateCity(ctx context.Context, chatRef int64, city *string) (*domain.Client, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.clientsByChat[chatRef]
	if !ok {
		return nil, fmt.Errorf("%w: chat %d", domain.ErrClientNotFound, chatRef)
	}

	c := s.clients[id]
	c.City = nil
	if city != nil {
		v := *city
		c.City = &v
	}
	return cloneClient(c), nil
}

// List lists clients ordered by ID.
func (r *ClientRepository) List(ctx context.Context, limit, offset int) ([]*domain.Client, error) {
	r.store.mu.RLock()
	clients := make([]*domain.Client, 0, len(r.store.clients))
	for _, c := range r.store.clients {
		clients = append(clients, cloneClient(c))
	}
	r.store.mu.RUnlock()

	slices.SortFunc(clients, func(a, b *domain.Client) int { return cmp.Compare(a.ID, b.ID) })

	if offset >= len(clients) {
		return []*domain.Client{}, nil
	}
	clients = clients[offset:]
	if len(clients) > limit {
		clients = clients[:limit]
	}
	return clients, nil
}

func cloneClient(c *domain.Client) *domain.Client {
	out := *c
	if c.City != nil {
		city := *c.City
		out.City = &city
	}
	return &out
}
