package repository

import (
	"context"
	"sync/atomic"

	"billboard/internal/models"
)

// MemorySnapshotStore keeps the last snapshot in process memory.
type MemorySnapshotStore struct {
	snap atomic.Pointer[models.LocationSnapshot]
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

func (r *MemorySnapshotStore) Save(_ context.Context, snap *models.LocationSnapshot) error {
	r.snap.Store(snap)
	return nil
}

func (r *MemorySnapshotStore) Load(_ context.Context) (*models.LocationSnapshot, error) {
	return r.snap.Load(), nil
}

func (r *MemorySnapshotStore) Clear(_ context.Context) error {
	r.snap.Store(nil)
	return nil
}
