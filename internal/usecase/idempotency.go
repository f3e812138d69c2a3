package usecase

import (
	"context"
	"errors"

	"github.com/iho/chatledger/internal/domain"
)

// Reservation is the outcome of an idempotency check.
// Replay is set when the key was already committed for the client.
type Reservation struct {
	Key    *string
	Replay *domain.Transaction
}

// IdempotencyGuard deduplicates postings per (client, key).
// The unique key on the transaction log is the single source of truth; the guard
// only looks it up inside the posting's own database transaction.
type IdempotencyGuard struct {
	txRepo TransactionRepository
}

// NewIdempotencyGuard creates a new IdempotencyGuard.
func NewIdempotencyGuard(txRepo TransactionRepository) *IdempotencyGuard {
	return &IdempotencyGuard{txRepo: txRepo}
}

// Reserve checks key for clientID within tx. A nil key always yields a fresh reservation.
func (g *IdempotencyGuard) Reserve(ctx context.Context, tx Transaction, clientID int64, key *string) (Reservation, error) {
	if key == nil {
		return Reservation{}, nil
	}

	existing, err := g.txRepo.GetByIdempotencyKey(ctx, tx, clientID, *key)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return Reservation{Key: key}, nil
		}
		return Reservation{}, err
	}

	return Reservation{Key: key, Replay: existing}, nil
}
