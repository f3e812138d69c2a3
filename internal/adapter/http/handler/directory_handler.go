package handler

import (
	"context"
	"net/http"

	"github.com/iho/chatledger/internal/adapter/http/dto"
	"github.com/iho/chatledger/internal/domain"
)

// ReferenceService defines the behavior needed for categories and actors.
type ReferenceService interface {
	CreateCategory(ctx context.Context, name string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	CreateActor(ctx context.Context, displayName string) (*domain.Actor, error)
	ListActors(ctx context.Context) ([]*domain.Actor, error)
}

// ManagerService defines the behavior needed for the manager registry.
type ManagerService interface {
	AddManager(ctx context.Context, userID int64, displayName string) (*domain.Manager, error)
	RemoveManager(ctx context.Context, userID int64) error
	ListManagers(ctx context.Context) ([]*domain.Manager, error)
}

// DirectoryHandler handles categories, actors and managers.
type DirectoryHandler struct {
	refUC     ReferenceService
	managerUC ManagerService
}

// NewDirectoryHandler creates a new DirectoryHandler.
func NewDirectoryHandler(refUC ReferenceService, managerUC ManagerService) *DirectoryHandler {
	return &DirectoryHandler{refUC: refUC, managerUC: managerUC}
}

// CreateCategory creates a category.
func (h *DirectoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCategoryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	category, err := h.refUC.CreateCategory(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, r, "failed to create category", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.CategoriesFromDomain([]*domain.Category{category})[0])
}

// ListCategories lists categories.
func (h *DirectoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.refUC.ListCategories(r.Context())
	if err != nil {
		writeDomainError(w, r, "failed to list categories", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CategoriesFromDomain(categories))
}

// CreateActor creates an actor.
func (h *DirectoryHandler) CreateActor(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateActorRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	actor, err := h.refUC.CreateActor(r.Context(), req.DisplayName)
	if err != nil {
		writeDomainError(w, r, "failed to create actor", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ActorsFromDomain([]*domain.Actor{actor})[0])
}

// ListActors lists actors.
func (h *DirectoryHandler) ListActors(w http.ResponseWriter, r *http.Request) {
	actors, err := h.refUC.ListActors(r.Context())
	if err != nil {
		writeDomainError(w, r, "failed to list actors", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ActorsFromDomain(actors))
}

// AddManager grants manager rights, refreshing the display name of an existing manager.
func (h *DirectoryHandler) AddManager(w http.ResponseWriter, r *http.Request) {
	var req dto.AddManagerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	manager, err := h.managerUC.AddManager(r.Context(), req.UserID, req.DisplayName)
	if err != nil {
		writeDomainError(w, r, "failed to add manager", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ManagersFromDomain([]*domain.Manager{manager})[0])
}

// RemoveManager revokes manager rights.
func (h *DirectoryHandler) RemoveManager(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseInt64Param(w, r, "userID")
	if !ok {
		return
	}

	if err := h.managerUC.RemoveManager(r.Context(), userID); err != nil {
		writeDomainError(w, r, "failed to remove manager", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListManagers lists managers.
func (h *DirectoryHandler) ListManagers(w http.ResponseWriter, r *http.Request) {
	managers, err := h.managerUC.ListManagers(r.Context())
	if err != nil {
		writeDomainError(w, r, "failed to list managers", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ManagersFromDomain(managers))
}
