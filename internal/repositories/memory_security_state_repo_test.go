package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/lockguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySecurityStateRepository_GetMissing(t *testing.T) {
	repo := NewMemorySecurityStateRepository()

	_, err := repo.Get(context.Background(), "acct-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemorySecurityStateRepository_PutGetIsolated(t *testing.T) {
	repo := NewMemorySecurityStateRepository()
	ctx := context.Background()
	now := time.Now()

	state := &models.SecurityState{}
	state.AddFailedAttempt(now, "10.0.0.1")
	require.NoError(t, repo.Put(ctx, "acct-1", state))

	// Mutating the caller's copy must not leak into the store.
	state.AddFailedAttempt(now, "10.0.0.2")

	got, err := repo.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, got.FailedAttempts, 1)

	got.Lock(nil)
	again, err := repo.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.False(t, again.Locked)
}

func TestMemorySecurityStateRepository_UpdateSkipsWriteWhenUnchanged(t *testing.T) {
	repo := NewMemorySecurityStateRepository()
	ctx := context.Background()

	err := repo.Update(ctx, "acct-1", func(state *models.SecurityState) bool {
		assert.False(t, state.Locked)
		return false
	})
	require.NoError(t, err)

	_, err = repo.Get(ctx, "acct-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemorySecurityStateRepository_UpdateSerializesPerAccount(t *testing.T) {
	repo := NewMemorySecurityStateRepository()
	ctx := context.Background()
	now := time.Now()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Update(ctx, "acct-1", func(state *models.SecurityState) bool {
				state.AddFailedAttempt(now, "10.0.0.1")
				return true
			})
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, got.FailedAttempts, workers)
	assert.Empty(t, repo.locks, "per-account locks are released")
}

func TestMemorySecurityStateRepository_CancelledContext(t *testing.T) {
	repo := NewMemorySecurityStateRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Get(ctx, "acct-1")
	assert.ErrorIs(t, err, context.Canceled)

	err = repo.Update(ctx, "acct-1", func(state *models.SecurityState) bool { return true })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemorySecurityStateRepository_Delete(t *testing.T) {
	repo := NewMemorySecurityStateRepository()
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "acct-1", &models.SecurityState{Locked: true}))
	require.NoError(t, repo.Delete(ctx, "acct-1"))

	_, err := repo.Get(ctx, "acct-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemorySecurityStateRepository_PurgeIdle(t *testing.T) {
	repo := NewMemorySecurityStateRepository()
	ctx := context.Background()

	withAttempts := &models.SecurityState{}
	withAttempts.AddFailedAttempt(time.Now(), "10.0.0.1")

	require.NoError(t, repo.Put(ctx, "idle", &models.SecurityState{}))
	require.NoError(t, repo.Put(ctx, "locked", &models.SecurityState{Locked: true}))
	require.NoError(t, repo.Put(ctx, "failing", withAttempts))

	purged, err := repo.PurgeIdle(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = repo.Get(ctx, "idle")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = repo.Get(ctx, "locked")
	assert.NoError(t, err)
	_, err = repo.Get(ctx, "failing")
	assert.NoError(t, err)
}
