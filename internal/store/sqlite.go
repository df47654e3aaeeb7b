package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// SQLiteConfigStore keeps user configuration in the user_config table.
type SQLiteConfigStore struct {
	DB *sql.DB
}

func (s *SQLiteConfigStore) Get(ctx context.Context, userID string) (string, error) {
	var modelID string
	err := s.DB.QueryRowContext(ctx,
		`SELECT model_id FROM user_config WHERE user_id = ?`, userID,
	).Scan(&modelID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select user_config user_id=%s: %w", userID, err)
	}
	return modelID, nil
}

func (s *SQLiteConfigStore) Put(ctx context.Context, userID, modelID string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO user_config (user_id, model_id) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET model_id = excluded.model_id, updated_at = unixepoch()`,
		userID, modelID,
	)
	if err != nil {
		return fmt.Errorf("upsert user_config user_id=%s: %w", userID, err)
	}
	return nil
}

// SQLiteCallLogStore appends call log rows to the call_log table.
type SQLiteCallLogStore struct {
	DB *sql.DB
}

func (s *SQLiteCallLogStore) Append(ctx context.Context, e CallLogEntry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO call_log (user_id, request_id, type, body, msg, model_id, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.RequestID, e.Type, e.Body, e.Msg, e.ModelID, e.ElapsedMS, createdAt.Unix(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: user_id=%s request_id=%s", ErrDuplicateEntry, e.UserID, e.RequestID)
		}
		return fmt.Errorf("insert call_log request_id=%s: %w", e.RequestID, err)
	}
	return nil
}

func (s *SQLiteCallLogStore) ListByUser(ctx context.Context, userID string, limit int) ([]CallLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT user_id, request_id, type, body, msg, model_id, elapsed_ms, created_at
		 FROM call_log WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select call_log user_id=%s: %w", userID, err)
	}
	defer rows.Close()

	var entries []CallLogEntry
	for rows.Next() {
		var e CallLogEntry
		var createdAt int64
		if err := rows.Scan(&e.UserID, &e.RequestID, &e.Type, &e.Body, &e.Msg, &e.ModelID, &e.ElapsedMS, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
