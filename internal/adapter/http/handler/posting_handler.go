package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/iho/chatledger/internal/adapter/http/dto"
	"github.com/iho/chatledger/internal/usecase"
)

const (
	// IdempotencyKeyHeader carries the client-chosen deduplication key of a posting.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayHeader is set on every answer that repeats an earlier posting.
	ReplayHeader = "X-Idempotency-Replay"
)

// PostingService defines the behavior needed by PostingHandler.
type PostingService interface {
	Post(ctx context.Context, input usecase.PostInput) (*usecase.PostResult, error)
}

// PostingHandler handles postings.
type PostingHandler struct {
	ledgerUC PostingService
}

// NewPostingHandler creates a new PostingHandler.
func NewPostingHandler(ledgerUC PostingService) *PostingHandler {
	return &PostingHandler{ledgerUC: ledgerUC}
}

// Create applies a signed amount to the client's account.
// The Idempotency-Key header takes precedence over the key in the body.
// A replayed posting answers 200 with the original transaction.
func (h *PostingHandler) Create(w http.ResponseWriter, r *http.Request) {
	clientID, ok := parseIDParam(w, r, "clientID")
	if !ok {
		return
	}

	var req dto.PostingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	input := req.ToUseCaseInput(clientID)
	if key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)); key != "" {
		input.IdempotencyKey = &key
	}

	result, err := h.ledgerUC.Post(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, "failed to post", err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
		w.Header().Set(ReplayHeader, "true")
	}
	writeJSON(w, status, dto.PostingFromResult(result))
}
