package repositories

import (
	"context"
	"errors"
	"sync"

	"github.com/BradenHooton/lockguard/internal/models"
)

// MemorySecurityStateRepository keeps security state in process memory.
// Updates of one account are serialized; different accounts never contend.
type MemorySecurityStateRepository struct {
	mu     sync.Mutex
	states map[string]*models.SecurityState
	locks  map[string]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemorySecurityStateRepository creates an empty in-memory store
func NewMemorySecurityStateRepository() *MemorySecurityStateRepository {
	return &MemorySecurityStateRepository{
		states: make(map[string]*models.SecurityState),
		locks:  make(map[string]*accountLock),
	}
}

func (r *MemorySecurityStateRepository) Get(ctx context.Context, accountID string) (*models.SecurityState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[accountID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return state.Clone(), nil
}

func (r *MemorySecurityStateRepository) Put(ctx context.Context, accountID string, state *models.SecurityState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[accountID] = state.Clone()
	return nil
}

func (r *MemorySecurityStateRepository) Update(ctx context.Context, accountID string, fn func(state *models.SecurityState) bool) error {
	lock := r.acquire(accountID)
	defer r.release(accountID, lock)

	state, err := r.Get(ctx, accountID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		state = &models.SecurityState{}
	case err != nil:
		return err
	}

	if !fn(state) {
		return nil
	}
	return r.Put(ctx, accountID, state)
}

// Delete removes the stored state for an account
func (r *MemorySecurityStateRepository) Delete(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, accountID)
	return nil
}

// PurgeIdle drops entries that are unlocked with an empty attempt log
func (r *MemorySecurityStateRepository) PurgeIdle(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for id, state := range r.states {
		if !state.Locked && len(state.FailedAttempts) == 0 {
			delete(r.states, id)
			purged++
		}
	}
	return purged, nil
}

func (r *MemorySecurityStateRepository) acquire(accountID string) *accountLock {
	r.mu.Lock()
	lock, ok := r.locks[accountID]
	if !ok {
		lock = &accountLock{}
		r.locks[accountID] = lock
	}
	lock.refs++
	r.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (r *MemorySecurityStateRepository) release(accountID string, lock *accountLock) {
	lock.mu.Unlock()

	r.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(r.locks, accountID)
	}
	r.mu.Unlock()
}
