package runstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUpsertThenLoadRoundTrips(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	err := s.Upsert(ctx, Record{RunID: "run-1", SessionID: "session-1", Status: StatusPending})
	require.NoError(t, err)

	rec, err := s.Load(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, StatusPending, rec.Status)
	require.False(t, rec.StartedAt.IsZero())
	require.False(t, rec.UpdatedAt.IsZero())
}

func TestUpsertPreservesStartedAtAcrossTransitions(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Record{RunID: "run-1", Status: StatusPending}))
	first, err := s.Load(ctx, "run-1")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	require.NoError(t, s.Upsert(ctx, Record{RunID: "run-1", Status: StatusRunning, Mode: "single_shot"}))
	second, err := s.Load(ctx, "run-1")
	require.NoError(t, err)

	require.Equal(t, first.StartedAt, second.StartedAt)
	require.Equal(t, StatusRunning, second.Status)
	require.Equal(t, "single_shot", second.Mode)
	require.True(t, second.UpdatedAt.After(first.UpdatedAt) || second.UpdatedAt.Equal(first.UpdatedAt))
}

func TestLoadUnknownRunReturnsErrNotFound(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.Load(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
