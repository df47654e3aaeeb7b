package session

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stupiduntilnot/docchat/internal/db"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.InitSchema(conn); err != nil {
		t.Fatal(err)
	}
	return conn
}

func TestSQLiteStore_History(t *testing.T) {
	conn := setupTestDB(t)
	s := &SQLiteStore{DB: conn}
	ctx := context.Background()

	if err := s.Append(ctx, "u1", Turn{RoleHuman, "hello"}, Turn{RoleAssistant, "hi there"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "u2", Turn{RoleHuman, "other user"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "u1", Turn{RoleHuman, "how are you"}); err != nil {
		t.Fatal(err)
	}

	turns, err := s.History(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Text != "hello" || turns[0].Role != RoleHuman {
		t.Errorf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant || turns[1].Text != "hi there" {
		t.Errorf("unexpected second turn: %+v", turns[1])
	}
	if turns[2].Text != "how are you" {
		t.Errorf("unexpected third turn: %+v", turns[2])
	}
}

func TestSQLiteStore_Empty(t *testing.T) {
	s := &SQLiteStore{DB: setupTestDB(t)}
	turns, err := s.History(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected 0 turns, got %d", len(turns))
	}
}

func TestSQLiteStore_Reset(t *testing.T) {
	s := &SQLiteStore{DB: setupTestDB(t)}
	ctx := context.Background()
	if err := s.Append(ctx, "u1", Turn{RoleHuman, "hello"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	turns, err := s.History(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected 0 turns after reset, got %d", len(turns))
	}
}
