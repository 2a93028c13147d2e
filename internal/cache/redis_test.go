package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStoreFromClient(client)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Put(ctx, "rider-1", SessionSnapshot{
		SessionID:        "sess-1",
		State:            "navigating",
		DistanceMeters:   1234.5,
		RerouteCount:     2,
		FuelLevelPercent: 61.5,
	})

	got, err := s.Get(ctx, "rider-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "navigating", got.State)
	assert.Equal(t, 1234.5, got.DistanceMeters)
	assert.Equal(t, 2, got.RerouteCount)
	assert.Equal(t, 61.5, got.FuelLevelPercent)
	assert.NotZero(t, got.UpdatedAtMs)
}

func TestSnapshotMiss(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestSnapshotIsolatedPerUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Put(ctx, "rider-1", SessionSnapshot{SessionID: "sess-1"})
	s.Put(ctx, "rider-2", SessionSnapshot{SessionID: "sess-2"})

	got, err := s.Get(ctx, "rider-2")
	require.NoError(t, err)
	assert.Equal(t, "sess-2", got.SessionID)
}

func TestSnapshotDrop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Put(ctx, "rider-1", SessionSnapshot{SessionID: "sess-1"})
	s.Drop(ctx, "rider-1")

	_, err := s.Get(ctx, "rider-1")
	assert.ErrorIs(t, err, ErrMiss)
}
