package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/iho/chatledger/internal/domain"
)

// ReferenceRepository implements usecase.ReferenceRepository.
type ReferenceRepository struct {
	store *Store
}

// NewReferenceRepository creates a new ReferenceRepository.
func NewReferenceRepository(store *Store) *ReferenceRepository {
	return &ReferenceRepository{store: store}
}

// CreateCategory inserts a category with a unique name.
func (r *ReferenceRepository) CreateCategory(ctx context.Context, category *domain.Category) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.categories {
		if c.Name == category.Name {
			return fmt.Errorf("%w: %q", domain.ErrCategoryAlreadyExists, category.Name)
		}
	}

	category.ID = s.categorySeq.Add(1)
	stored := *category
	s.categories[stored.ID] = &stored
	return nil
}

// ListCategories lists categories ordered by name.
func (r *ReferenceRepository) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Category, 0, len(r.store.categories))
	for _, c := range r.store.categories {
		v := *c
		out = append(out, &v)
	}
	slices.SortFunc(out, func(a, b *domain.Category) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

// CreateActor inserts an actor.
func (r *ReferenceRepository) CreateActor(ctx context.Context, actor *domain.Actor) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	actor.ID = s.actorSeq.Add(1)
	stored := *actor
	s.actors[stored.ID] = &stored
	return nil
}

// ListActors lists actors ordered by ID.
func (r *ReferenceRepository) ListActors(ctx context.Context) ([]*domain.Actor, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Actor, 0, len(r.store.actors))
	for _, a := range r.store.actors {
		v := *a
		out = append(out, &v)
	}
	slices.SortFunc(out, func(a, b *domain.Actor) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// ManagerRepository implements usecase.ManagerRepository.
type ManagerRepository struct {
	store *Store
}

// NewManagerRepository creates a new ManagerRepository.
func NewManagerRepository(store *Store) *ManagerRepository {
	return &ManagerRepository{store: store}
}

// Upsert inserts a manager or refreshes its display name.
func (r *ManagerRepository) Upsert(ctx context.Context, manager *domain.Manager) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.managers[manager.UserID]; ok {
		existing.DisplayName = manager.DisplayName
		manager.AddedAt = existing.AddedAt
		return nil
	}

	stored := *manager
	s.managers[stored.UserID] = &stored
	return nil
}

// Delete removes a manager.
func (r *ManagerRepository) Delete(ctx context.Context, userID int64) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.managers[userID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrManagerNotFound, userID)
	}
	delete(s.managers, userID)
	return nil
}

// List lists managers in the order they were added.
func (r *ManagerRepository) List(ctx context.Context) ([]*domain.Manager, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Manager, 0, len(r.store.managers))
	for _, m := range r.store.managers {
		v := *m
		out = append(out, &v)
	}
	slices.SortFunc(out, func(a, b *domain.Manager) int {
		if c := a.AddedAt.Compare(b.AddedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out, nil
}

// Exists reports whether userID is a manager.
func (r *ManagerRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	_, ok := r.store.managers[userID]
	return ok, nil
}
