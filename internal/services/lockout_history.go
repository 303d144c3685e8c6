package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/lockguard/internal/models"
)

// Paging bounds for lockout history queries
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// LockoutEventStore persists and lists lockout events
type LockoutEventStore interface {
	Create(ctx context.Context, event *models.LockoutEvent) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.LockoutEvent, error)
	CountByAccount(ctx context.Context, accountID string) (int64, error)
}

// LockoutHistoryPage is one page of an account's lockout history
type LockoutHistoryPage struct {
	AccountID string
	Events    []*models.LockoutEvent
	Total     int64
	Limit     int
	Offset    int
}

// LockoutHistoryService records guard events and serves them back to admins.
// It is also a LockoutEventSink.
type LockoutHistoryService struct {
	store    LockoutEventStore
	resolver AccountResolver
	logger   *slog.Logger
}

// NewLockoutHistoryService creates a new LockoutHistoryService. resolver maps
// the identifiers admins pass to account IDs; nil treats them as IDs.
func NewLockoutHistoryService(store LockoutEventStore, resolver AccountResolver, logger *slog.Logger) *LockoutHistoryService {
	return &LockoutHistoryService{
		store:    store,
		resolver: resolver,
		logger:   logger,
	}
}

// Record implements LockoutEventSink.
func (s *LockoutHistoryService) Record(ctx context.Context, event models.LockoutEvent) error {
	if err := s.store.Create(ctx, &event); err != nil {
		return fmt.Errorf("failed to persist lockout event: %w", err)
	}
	return nil
}

// List returns a page of the account's events, newest first. Out of range
// paging values fall back to the defaults.
func (s *LockoutHistoryService) List(ctx context.Context, account string, limit, offset int) (*LockoutHistoryPage, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = DefaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	accountID, err := resolveAccount(ctx, s.resolver, account)
	if err != nil {
		return nil, err
	}

	events, err := s.store.ListByAccount(ctx, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	total, err := s.store.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}

	s.logger.Debug("lockout history listed",
		slog.String("account_id", accountID),
		slog.Int("returned", len(events)),
		slog.Int64("total", total))

	return &LockoutHistoryPage{
		AccountID: accountID,
		Events:    events,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	}, nil
}
