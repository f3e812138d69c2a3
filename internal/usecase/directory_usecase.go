package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/iho/chatledger/internal/domain"
)

// ErrCacheMiss is returned by Cache.Get for an absent key.
var ErrCacheMiss = errors.New("cache miss")

// ReferenceUseCase manages categories and actors referenced by transactions.
type ReferenceUseCase struct {
	refRepo ReferenceRepository
}

// NewReferenceUseCase creates a new ReferenceUseCase.
func NewReferenceUseCase(refRepo ReferenceRepository) *ReferenceUseCase {
	return &ReferenceUseCase{refRepo: refRepo}
}

// CreateCategory creates a category with a unique name.
func (uc *ReferenceUseCase) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	if err := domain.ValidateName(name); err != nil {
		return nil, err
	}

	category := &domain.Category{Name: strings.TrimSpace(name), CreatedAt: time.Now().UTC()}
	if err := uc.refRepo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// ListCategories lists all categories by name.
func (uc *ReferenceUseCase) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return uc.refRepo.ListCategories(ctx)
}

// CreateActor creates an actor.
func (uc *ReferenceUseCase) CreateActor(ctx context.Context, displayName string) (*domain.Actor, error) {
	if err := domain.ValidateName(displayName); err != nil {
		return nil, err
	}

	actor := &domain.Actor{DisplayName: strings.TrimSpace(displayName), CreatedAt: time.Now().UTC()}
	if err := uc.refRepo.CreateActor(ctx, actor); err != nil {
		return nil, err
	}
	return actor, nil
}

// ListActors lists all actors.
func (uc *ReferenceUseCase) ListActors(ctx context.Context) ([]*domain.Actor, error) {
	return uc.refRepo.ListActors(ctx)
}

// ManagerUseCase manages the manager registry. Membership checks are cached when a cache is configured.
type ManagerUseCase struct {
	managerRepo ManagerRepository
	cache       Cache
	cacheTTL    time.Duration
}

// NewManagerUseCase creates a new ManagerUseCase. cache may be nil.
func NewManagerUseCase(managerRepo ManagerRepository, cache Cache, cacheTTL time.Duration) *ManagerUseCase {
	if cacheTTL <= 0 {
		cacheTTL = DefaultManagerCacheTTL
	}
	return &ManagerUseCase{
		managerRepo: managerRepo,
		cache:       cache,
		cacheTTL:    cacheTTL,
	}
}

// AddManager registers a manager or refreshes its display name.
func (uc *ManagerUseCase) AddManager(ctx context.Context, userID int64, displayName string) (*domain.Manager, error) {
	if err := domain.ValidateName(displayName); err != nil {
		return nil, err
	}

	manager := &domain.Manager{
		UserID:      userID,
		DisplayName: strings.TrimSpace(displayName),
		AddedAt:     time.Now().UTC(),
	}
	if err := uc.managerRepo.Upsert(ctx, manager); err != nil {
		return nil, err
	}

	uc.invalidate(ctx, userID)
	return manager, nil
}

// RemoveManager deletes a manager.
func (uc *ManagerUseCase) RemoveManager(ctx context.Context, userID int64) error {
	if err := uc.managerRepo.Delete(ctx, userID); err != nil {
		return err
	}

	uc.invalidate(ctx, userID)
	return nil
}

// ListManagers lists all managers.
func (uc *ManagerUseCase) ListManagers(ctx context.Context) ([]*domain.Manager, error) {
	return uc.managerRepo.List(ctx)
}

// IsManager reports whether userID is a registered manager.
func (uc *ManagerUseCase) IsManager(ctx context.Context, userID int64) (bool, error) {
	key := managerCacheKey(userID)

	if uc.cache != nil {
		if v, err := uc.cache.Get(ctx, key); err == nil {
			return string(v) == "1", nil
		}
	}

	ok, err := uc.managerRepo.Exists(ctx, userID)
	if err != nil {
		return false, err
	}

	if uc.cache != nil {
		v := "0"
		if ok {
			v = "1"
		}
		_ = uc.cache.Set(ctx, key, []byte(v), uc.cacheTTL)
	}

	return ok, nil
}

func (uc *ManagerUseCase) invalidate(ctx context.Context, userID int64) {
	if uc.cache != nil {
		_ = uc.cache.Delete(ctx, managerCacheKey(userID))
	}
}

func managerCacheKey(userID int64) string {
	return "manager:" + strconv.FormatInt(userID, 10)
}
