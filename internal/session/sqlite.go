package session

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteStore keeps sessions in the history table so they survive restarts.
type SQLiteStore struct {
	DB *sql.DB
}

// History returns all turns for the user ordered chronologically.
func (s *SQLiteStore) History(ctx context.Context, userID string) ([]Turn, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT role, text FROM history WHERE user_id = ? ORDER BY id ASC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	results := []Turn{}
	for rows.Next() {
		var role, text string
		if err := rows.Scan(&role, &text); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		mapped := RoleHuman
		if role == RoleAssistant {
			mapped = RoleAssistant
		}
		results = append(results, Turn{Role: mapped, Text: text})
	}
	return results, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, userID string, turns ...Turn) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback()
	for _, turn := range turns {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO history (user_id, role, text) VALUES (?, ?, ?)",
			userID, turn.Role, turn.Text,
		); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Reset(ctx context.Context, userID string) error {
	if _, err := s.DB.ExecContext(ctx, "DELETE FROM history WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}
