package domain

import "time"

// Client is an external party (a chat) owning accounts.
type Client struct {
	ID        int64
	ChatRef   int64
	Name      string
	City      *string
	CreatedAt time.Time
}

// Category groups transactions for reporting.
type Category struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Actor is the person a transaction was performed by or on behalf of.
type Actor struct {
	ID          int64
	DisplayName string
	CreatedAt   time.Time
}

// Manager is a user allowed to operate the wallet on behalf of clients.
type Manager struct {
	UserID      int64
	DisplayName string
	AddedAt     time.Time
}
