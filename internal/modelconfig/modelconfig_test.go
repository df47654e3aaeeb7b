package modelconfig

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupiduntilnot/docchat/internal/db"
	"github.com/stupiduntilnot/docchat/internal/store"
)

// countingStore wraps a ConfigStore and counts writes.
type countingStore struct {
	store.ConfigStore
	mu     sync.Mutex
	puts   int
	getErr error
	putErr error
}

func (c *countingStore) Get(ctx context.Context, userID string) (string, error) {
	if c.getErr != nil {
		return "", c.getErr
	}
	return c.ConfigStore.Get(ctx, userID)
}

func (c *countingStore) Put(ctx context.Context, userID, modelID string) error {
	c.mu.Lock()
	c.puts++
	c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	return c.ConfigStore.Put(ctx, userID, modelID)
}

func sqliteStore(t *testing.T) store.ConfigStore {
	t.Helper()
	conn, err := db.OpenDB(filepath.Join(t.TempDir(), "cfg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.InitSchema(conn))
	return &store.SQLiteConfigStore{DB: conn}
}

func TestLoad_SelfHealIsIdempotent(t *testing.T) {
	cs := &countingStore{ConfigStore: sqliteStore(t)}
	svc := NewService(cs, "default-model", nil)
	ctx := context.Background()

	var healed []string
	svc.OnHeal = func(userID, modelID string, err error) {
		require.NoError(t, err)
		healed = append(healed, userID)
	}

	assert.Equal(t, "default-model", svc.Load(ctx, "u1"))
	assert.Equal(t, 1, cs.puts)

	assert.Equal(t, "default-model", svc.Load(ctx, "u1"))
	assert.Equal(t, 1, cs.puts, "second load must not write again")
	assert.Equal(t, []string{"u1"}, healed)
}

func TestLoad_ReturnsStoredValue(t *testing.T) {
	cs := &countingStore{ConfigStore: sqliteStore(t)}
	ctx := context.Background()
	require.NoError(t, cs.ConfigStore.Put(ctx, "u1", "stored-model"))

	svc := NewService(cs, "default-model", nil)
	assert.Equal(t, "stored-model", svc.Load(ctx, "u1"))
	assert.Equal(t, 0, cs.puts)
}

func TestLoad_EmptyValueIsHealed(t *testing.T) {
	cs := &countingStore{ConfigStore: sqliteStore(t)}
	ctx := context.Background()
	require.NoError(t, cs.ConfigStore.Put(ctx, "u1", ""))

	svc := NewService(cs, "default-model", nil)
	assert.Equal(t, "default-model", svc.Load(ctx, "u1"))
	assert.Equal(t, 1, cs.puts)

	got, err := cs.ConfigStore.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "default-model", got)
}

func TestLoad_UnavailableStoreNeverFails(t *testing.T) {
	cs := &countingStore{
		ConfigStore: sqliteStore(t),
		getErr:      errors.New("connection refused"),
		putErr:      errors.New("connection refused"),
	}
	svc := NewService(cs, "default-model", nil)

	var healErr error
	svc.OnHeal = func(userID, modelID string, err error) { healErr = err }

	assert.Equal(t, "default-model", svc.Load(context.Background(), "u1"))
	assert.Error(t, healErr)
}

func TestSave_FailureWrapsErrPersistence(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectExec("INSERT INTO user_config").
		WithArgs("u1", "m2").
		WillReturnError(errors.New("database is locked"))

	svc := NewService(&store.SQLiteConfigStore{DB: mockDB}, "m1", nil)
	err = svc.Save(context.Background(), "u1", "m2")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_Upserts(t *testing.T) {
	cs := sqliteStore(t)
	svc := NewService(cs, "m1", nil)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, "u1", "m2"))
	assert.Equal(t, "m2", svc.Load(ctx, "u1"))
}
