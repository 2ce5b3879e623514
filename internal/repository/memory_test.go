package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetOrCreateProgress(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p, err := store.GetOrCreateProgress(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, 0, p.Stamps)
	assert.False(t, p.RewardAvailable)
	assert.Nil(t, p.LastScanAt)

	// Second call reads the same zeroed row instead of recreating it.
	p2, err := store.GetOrCreateProgress(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, p, p2)
}

func TestMemoryStore_MutateProgress(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	p, err := store.MutateProgress(ctx, "alice", func(p *model.Progress) (bool, error) {
		p.Stamps = 3
		p.LastScanAt = &now
		p.UpdatedAt = now
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stamps)

	stored, err := store.GetOrCreateProgress(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Stamps)
	require.NotNil(t, stored.LastScanAt)
	assert.Equal(t, now, *stored.LastScanAt)
}

func TestMemoryStore_MutateProgress_NoWrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.MutateProgress(ctx, "alice", func(p *model.Progress) (bool, error) {
		p.Stamps = 99
		return false, nil
	})
	require.NoError(t, err)

	stored, err := store.GetOrCreateProgress(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Stamps, "declined mutations must not persist")
}

func TestMemoryStore_MutateProgress_Error(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.MutateProgress(ctx, "alice", func(p *model.Progress) (bool, error) {
		return true, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	stored, err := store.GetOrCreateProgress(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Stamps)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p, err := store.GetOrCreateProgress(ctx, "alice")
	require.NoError(t, err)

	p.Stamps = 42

	stored, err := store.GetOrCreateProgress(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Stamps, "callers must not reach the stored row")
}
