package handler

import (
	"context"
	"net/http"

	"github.com/iho/chatledger/internal/adapter/http/dto"
	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/usecase"
)

// ClientService defines the behavior needed by ClientHandler.
type ClientService interface {
	EnsureClient(ctx context.Context, input usecase.EnsureClientInput) (*domain.Client, error)
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
	SetClientCity(ctx context.Context, chatRef int64, city *string) (*domain.Client, error)
	ListClients(ctx context.Context, input usecase.ListClientsInput) ([]*domain.Client, error)
}

// ClientHandler handles client-related HTTP requests.
type ClientHandler struct {
	clientUC ClientService
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(clientUC ClientService) *ClientHandler {
	return &ClientHandler{clientUC: clientUC}
}

// Ensure registers a chat or refreshes the stored name and city.
func (h *ClientHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	var req dto.EnsureClientRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	client, err := h.clientUC.EnsureClient(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, "failed to ensure client", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ClientFromDomain(client))
}

// Get retrieves a client by ID.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "clientID")
	if !ok {
		return
	}

	client, err := h.clientUC.GetClient(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, "failed to get client", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ClientFromDomain(client))
}

// SetCity replaces the city of the client registered for a chat.
func (h *ClientHandler) SetCity(w http.ResponseWriter, r *http.Request) {
	chatRef, ok := parseInt64Param(w, r, "chatRef")
	if !ok {
		return
	}

	var req dto.SetCityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	client, err := h.clientUC.SetClientCity(r.Context(), chatRef, req.City)
	if err != nil {
		writeDomainError(w, r, "failed to set city", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ClientFromDomain(client))
}

// List lists clients.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := domain.ValidatePagination(parseIntQuery(r, "limit", 50), parseIntQuery(r, "offset", 0))

	clients, err := h.clientUC.ListClients(r.Context(), usecase.ListClientsInput{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeDomainError(w, r, "failed to list clients", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListClientsResponse{
		Clients: dto.ClientsFromDomain(clients),
		Limit:   limit,
		Offset:  offset,
	})
}
