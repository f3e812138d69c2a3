package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/iho/chatledger/internal/domain"
)

// ClientUseCase handles the client directory.
type ClientUseCase struct {
	clientRepo ClientRepository
}

// NewClientUseCase creates a new ClientUseCase.
func NewClientUseCase(clientRepo ClientRepository) *ClientUseCase {
	return &ClientUseCase{clientRepo: clientRepo}
}

// EnsureClientInput represents input for registering a chat.
type EnsureClientInput struct {
	ChatRef int64
	Name    string
	City    *string
}

// EnsureClient returns the client for ChatRef, creating it on first contact.
// An existing client gets its name refreshed and its city replaced when City is set.
func (uc *ClientUseCase) EnsureClient(ctx context.Context, input EnsureClientInput) (*domain.Client, error) {
	if err := domain.ValidateName(input.Name); err != nil {
		return nil, err
	}

	city := trimOptional(input.City)
	if err := domain.ValidateOptionalText("city", city, domain.MaxNameLength); err != nil {
		return nil, err
	}

	return uc.clientRepo.Upsert(ctx, &domain.Client{
		ChatRef:   input.ChatRef,
		Name:      strings.TrimSpace(input.Name),
		City:      city,
		CreatedAt: time.Now().UTC(),
	})
}

// GetClient retrieves a client by ID.
func (uc *ClientUseCase) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	return uc.clientRepo.GetByID(ctx, id)
}

// GetClientByChatRef retrieves a client by its chat reference.
func (uc *ClientUseCase) GetClientByChatRef(ctx context.Context, chatRef int64) (*domain.Client, error) {
	return uc.clientRepo.GetByChatRef(ctx, chatRef)
}

// SetClientCity replaces the city of the client. A nil or blank city clears it.
func (uc *ClientUseCase) SetClientCity(ctx context.Context, chatRef int64, city *string) (*domain.Client, error) {
	city = trimOptional(city)
	if err := domain.ValidateOptionalText("city", city, domain.MaxNameLength); err != nil {
		return nil, err
	}
	return uc.clientRepo.UpdateCity(ctx, chatRef, city)
}

// ListClientsInput represents input for listing clients.
type ListClientsInput struct {
	Limit  int
	Offset int
}

// ListClients lists clients with pagination.
func (uc *ClientUseCase) ListClients(ctx context.Context, input ListClientsInput) ([]*domain.Client, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	if input.Offset < 0 {
		input.Offset = 0
	}
	return uc.clientRepo.List(ctx, input.Limit, input.Offset)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
