package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AppendAndHistory(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	turns, err := s.History(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, turns)

	require.NoError(t, s.Append(ctx, "u1", Turn{RoleHuman, "hi"}, Turn{RoleAssistant, "hello"}))
	require.NoError(t, s.Append(ctx, "u2", Turn{RoleHuman, "other"}))

	turns, err = s.History(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []Turn{{RoleHuman, "hi"}, {RoleAssistant, "hello"}}, turns)

	turns, err = s.History(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestMemoryStore_HistoryIsACopy(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "u1", Turn{RoleHuman, "hi"}))

	turns, _ := s.History(ctx, "u1")
	turns[0].Text = "mutated"

	again, _ := s.History(ctx, "u1")
	assert.Equal(t, "hi", again[0].Text)
}

func TestMemoryStore_IdleExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "u1", Turn{RoleHuman, "hi"}))
	require.NoError(t, s.Append(ctx, "u2", Turn{RoleHuman, "hey"}))

	clock = clock.Add(30 * time.Second)
	require.NoError(t, s.Append(ctx, "u2", Turn{RoleAssistant, "yo"}))

	clock = clock.Add(45 * time.Second)
	turns, err := s.History(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, turns, "u1 idle for 75s should be expired")

	turns, err = s.History(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_Reset(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "u1", Turn{RoleHuman, "hi"}))
	require.NoError(t, s.Reset(ctx, "u1"))
	turns, err := s.History(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}
