package domain

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursor marks a position in the (OccurredAt, ID) order of a statement.
type Cursor struct {
	OccurredAt time.Time
	ID         int64
}

// CursorOf returns the cursor positioned right after tx.
func CursorOf(tx *Transaction) Cursor {
	return Cursor{OccurredAt: tx.OccurredAt, ID: tx.ID}
}

// Encode returns the opaque string form of the cursor: seconds, nanoseconds and ID.
func (c Cursor) Encode() string {
	raw := strings.Join([]string{
		strconv.FormatInt(c.OccurredAt.Unix(), 10),
		strconv.Itoa(c.OccurredAt.Nanosecond()),
		strconv.FormatInt(c.ID, 10),
	}, ":")
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// After reports whether tx comes strictly after the cursor.
func (c Cursor) After(tx *Transaction) bool {
	if !tx.OccurredAt.Equal(c.OccurredAt) {
		return tx.OccurredAt.After(c.OccurredAt)
	}
	return tx.ID > c.ID
}

// DecodeCursor parses a cursor produced by Encode. An empty token yields nil.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: malformed token", ErrInvalidCursor)
	}

	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	nsec, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if nsec < 0 || nsec >= int64(time.Second) {
		return nil, fmt.Errorf("%w: nanoseconds out of range", ErrInvalidCursor)
	}

	txID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	return &Cursor{OccurredAt: time.Unix(sec, nsec).UTC(), ID: txID}, nil
}

// StatementFilter selects a window of a transaction log.
// From is inclusive, To is exclusive, After resumes past a cursor.
type StatementFilter struct {
	From  *time.Time
	To    *time.Time
	After *Cursor
	Limit int
}

// Match reports whether tx falls inside the filter window.
func (f StatementFilter) Match(tx *Transaction) bool {
	if f.From != nil && tx.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !tx.OccurredAt.Before(*f.To) {
		return false
	}
	if f.After != nil && !f.After.After(tx) {
		return false
	}
	return true
}
