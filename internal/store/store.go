// Package store holds the key-value adapters used by the request handler:
// the per-user model configuration and the append-only call log.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEntry = errors.New("call log entry already exists")
)

// ConfigStore maps a user id to the model id the user selected.
type ConfigStore interface {
	// Get returns ErrNotFound when the user has no stored configuration.
	Get(ctx context.Context, userID string) (string, error)
	// Put upserts the mapping.
	Put(ctx context.Context, userID, modelID string) error
}

// CallLogEntry records one processed request and the message returned for it.
type CallLogEntry struct {
	UserID    string    `json:"user_id"`
	RequestID string    `json:"request_id"`
	Type      string    `json:"type"`
	Body      string    `json:"body"`
	Msg       string    `json:"msg"`
	ModelID   string    `json:"model_id,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// CallLogStore is append-only: entries are never updated or deleted.
type CallLogStore interface {
	// Append returns ErrDuplicateEntry if (UserID, RequestID) was already written.
	Append(ctx context.Context, entry CallLogEntry) error
	// ListByUser returns up to limit entries for userID, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]CallLogEntry, error)
}
