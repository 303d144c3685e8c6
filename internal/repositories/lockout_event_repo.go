package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/lockguard/internal/database"
	"github.com/BradenHooton/lockguard/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LockoutEventRepository persists the lockout event history
type LockoutEventRepository struct {
	db *database.DB
}

// NewLockoutEventRepository creates a new LockoutEventRepository
func NewLockoutEventRepository(db *database.DB) *LockoutEventRepository {
	return &LockoutEventRepository{db: db}
}

const lockoutEventColumns = `id, account_id, event_type, event_trigger, source_address,
	attempts, expires_at, reason, occurred_at`

func scanLockoutEventRow(row rowScanner) (*models.LockoutEvent, error) {
	var (
		event     models.LockoutEvent
		id        uuid.UUID
		eventType string
		trigger   string
		reason    string
	)

	err := row.Scan(
		&id, &event.AccountID, &eventType, &trigger, &event.SourceAddress,
		&event.Attempts, &event.ExpiresAt, &reason, &event.OccurredAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	event.ID = id.String()
	event.Type = models.LockoutEventType(eventType)
	event.Trigger = models.LockoutTrigger(trigger)
	event.Reason = models.DenialReason(reason)
	return &event, nil
}

func scanLockoutEventRows(rows pgx.Rows) ([]*models.LockoutEvent, error) {
	defer rows.Close()

	events := make([]*models.LockoutEvent, 0)
	for rows.Next() {
		event, err := scanLockoutEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lockout event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lockout event rows: %w", err)
	}
	return events, nil
}

// Create stores event and assigns its ID
func (r *LockoutEventRepository) Create(ctx context.Context, event *models.LockoutEvent) error {
	id := uuid.New()
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	query := `
		INSERT INTO lockout_events (` + lockoutEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		id, event.AccountID, string(event.Type), string(event.Trigger), event.SourceAddress,
		event.Attempts, event.ExpiresAt, string(event.Reason), occurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create lockout event: %w", database.MapPostgresError(err))
	}

	event.ID = id.String()
	event.OccurredAt = occurredAt
	return nil
}

// ListByAccount returns an account's events, newest first
func (r *LockoutEventRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.LockoutEvent, error) {
	query := `
		SELECT ` + lockoutEventColumns + `
		FROM lockout_events
		WHERE account_id = $1
		ORDER BY occurred_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query lockout events: %w", err)
	}
	return scanLockoutEventRows(rows)
}

// CountByAccount counts an account's stored events
func (r *LockoutEventRepository) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM lockout_events WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count lockout events: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes events that occurred before cutoff
func (r *LockoutEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM lockout_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old lockout events: %w", err)
	}
	return tag.RowsAffected(), nil
}
