package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/lockguard/internal/models"
	"github.com/google/uuid"
)

// DefaultMemoryEventsPerAccount bounds the in-memory history of one account
const DefaultMemoryEventsPerAccount = 200

// MemoryLockoutEventRepository keeps a bounded lockout event history per
// account. The oldest events are dropped first.
type MemoryLockoutEventRepository struct {
	mu         sync.RWMutex
	events     map[string][]models.LockoutEvent // oldest first
	perAccount int
}

// NewMemoryLockoutEventRepository creates an empty history. A perAccount of
// zero or less uses DefaultMemoryEventsPerAccount.
func NewMemoryLockoutEventRepository(perAccount int) *MemoryLockoutEventRepository {
	if perAccount <= 0 {
		perAccount = DefaultMemoryEventsPerAccount
	}
	return &MemoryLockoutEventRepository{
		events:     make(map[string][]models.LockoutEvent),
		perAccount: perAccount,
	}
}

func (r *MemoryLockoutEventRepository) Create(ctx context.Context, event *models.LockoutEvent) error {
	event.ID = uuid.New().String()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	history := append(r.events[event.AccountID], *event)
	if over := len(history) - r.perAccount; over > 0 {
		history = append([]models.LockoutEvent(nil), history[over:]...)
	}
	r.events[event.AccountID] = history
	return nil
}

// ListByAccount returns an account's events, newest first
func (r *MemoryLockoutEventRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.LockoutEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.events[accountID]
	if limit <= 0 || offset < 0 {
		return []*models.LockoutEvent{}, nil
	}
	out := make([]*models.LockoutEvent, 0, min(limit, len(history)))
	for i := len(history) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		event := history[i]
		out = append(out, &event)
	}
	return out, nil
}

func (r *MemoryLockoutEventRepository) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.events[accountID])), nil
}

func (r *MemoryLockoutEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for accountID, history := range r.events {
		keep := history[:0]
		for _, event := range history {
			if event.OccurredAt.Before(cutoff) {
				deleted++
				continue
			}
			keep = append(keep, event)
		}
		if len(keep) == 0 {
			delete(r.events, accountID)
			continue
		}
		r.events[accountID] = keep
	}
	return deleted, nil
}
