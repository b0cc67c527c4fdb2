package repository

import (
	"context"
	"testing"
	"time"

	"billboard/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSnapshotStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	const key = "billboard:locations:snapshot"
	repo := NewRedisSnapshotStore(client, key, time.Hour)
	ctx := context.Background()

	t.Run("LoadEmpty", func(t *testing.T) {
		got, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		snap := &models.LocationSnapshot{
			TakenAt: time.Now().Unix(),
			Locations: []models.Location{{
				ID:          7,
				Code:        "BB-7",
				City:        "Iasi",
				Status:      models.StatusRented,
				Client:      "Acme",
				PeriodStart: models.MustParseDate("2025-03-01"),
				PeriodEnd:   models.MustParseDate("2025-03-31"),
			}},
		}
		require.NoError(t, repo.Save(ctx, snap))
		assert.True(t, s.Exists(key))

		got, err := repo.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Len(t, got.Locations, 1)
		assert.Equal(t, snap.TakenAt, got.TakenAt)
		assert.Equal(t, "Acme", got.Locations[0].Client)
		assert.Equal(t, models.StatusRented, got.Locations[0].Status)
		assert.Equal(t, "2025-03-31", got.Locations[0].PeriodEnd.String())
	})

	t.Run("Expires", func(t *testing.T) {
		s.FastForward(time.Hour + time.Second)
		got, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, &models.LocationSnapshot{TakenAt: 1}))
		require.NoError(t, repo.Clear(ctx))
		assert.False(t, s.Exists(key))
	})

	t.Run("CorruptValue", func(t *testing.T) {
		require.NoError(t, s.Set(key, "not json"))
		_, err := repo.Load(ctx)
		assert.Error(t, err)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisSnapshotStore(nil, key, time.Hour)
		_, err := repo.Load(ctx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("ServerDown", func(t *testing.T) {
		s.Close()
		err := repo.Save(ctx, &models.LocationSnapshot{})
		assert.Error(t, err)
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, Close(client))
	})
}
