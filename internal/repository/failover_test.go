package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"billboard/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Save(ctx context.Context, snap *models.LocationSnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *mockStore) Load(ctx context.Context) (*models.LocationSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LocationSnapshot), args.Error(1)
}

func (m *mockStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestFailoverSnapshotStore(t *testing.T) {
	primary := new(mockStore)
	fallback := new(mockStore)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverSnapshotStore(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		snap := &models.LocationSnapshot{TakenAt: 1}
		primary.On("Load", ctx).Return(snap, nil).Once()

		got, err := repo.Load(ctx)
		assert.NoError(t, err)
		assert.Equal(t, snap, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryEmptyReadsFallback", func(t *testing.T) {
		snap := &models.LocationSnapshot{TakenAt: 2}
		primary.On("Load", ctx).Return(nil, nil).Once()
		fallback.On("Load", ctx).Return(snap, nil).Once()

		got, err := repo.Load(ctx)
		assert.NoError(t, err)
		assert.Equal(t, snap, got)
		assert.False(t, repo.isDown.Load())
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		snap := &models.LocationSnapshot{TakenAt: 3}
		primary.On("Load", ctx).Return(nil, errors.New("fail")).Once()
		fallback.On("Load", ctx).Return(snap, nil).Once()

		got, err := repo.Load(ctx)
		assert.NoError(t, err)
		assert.Equal(t, snap, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("AlreadyDownSkipsPrimary", func(t *testing.T) {
		snap := &models.LocationSnapshot{TakenAt: 4}
		fallback.On("Save", ctx, snap).Return(nil).Once()

		require.NoError(t, repo.Save(ctx, snap))
		primary.AssertNotCalled(t, "Save", ctx, snap)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		snap := &models.LocationSnapshot{TakenAt: 5}
		fallback.On("Save", ctx, snap).Return(nil).Once()
		primary.On("Save", ctx, snap).Return(nil).Once()

		require.NoError(t, repo.Save(ctx, snap))
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		primary.On("Load", ctx).Return(nil, errors.New("still fail")).Once()
		fallback.On("Load", ctx).Return(nil, nil).Once()

		got, err := repo.Load(ctx)
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SaveFailoverKeepsFallback", func(t *testing.T) {
		repo.isDown.Store(false)
		snap := &models.LocationSnapshot{TakenAt: 6}
		fallback.On("Save", ctx, snap).Return(nil).Once()
		primary.On("Save", ctx, snap).Return(errors.New("fail")).Once()

		assert.NoError(t, repo.Save(ctx, snap))
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("ClearBoth", func(t *testing.T) {
		repo.isDown.Store(false)
		fallback.On("Clear", ctx).Return(nil).Once()
		primary.On("Clear", ctx).Return(nil).Once()

		assert.NoError(t, repo.Clear(ctx))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}

func TestFailoverWithRealStores(t *testing.T) {
	logger := zerolog.New(io.Discard)
	primary := NewMemorySnapshotStore()
	fallback := NewMemorySnapshotStore()
	repo := NewFailoverSnapshotStore(primary, fallback, &logger)
	ctx := context.Background()

	snap := &models.LocationSnapshot{TakenAt: 9}
	require.NoError(t, repo.Save(ctx, snap))

	p, _ := primary.Load(ctx)
	f, _ := fallback.Load(ctx)
	assert.Same(t, snap, p)
	assert.Same(t, snap, f)
}
