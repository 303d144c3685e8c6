package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/lockguard/internal/database"
	"github.com/BradenHooton/lockguard/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SecurityStateRepository stores one JSONB security state per account
type SecurityStateRepository struct {
	db     *database.DB
	logger *slog.Logger
}

// NewSecurityStateRepository creates a new SecurityStateRepository
func NewSecurityStateRepository(db *database.DB, logger *slog.Logger) *SecurityStateRepository {
	return &SecurityStateRepository{db: db, logger: logger}
}

// Get returns the stored state, or models.ErrNotFound if the account has none
func (r *SecurityStateRepository) Get(ctx context.Context, accountID string) (*models.SecurityState, error) {
	query := `SELECT state FROM account_security WHERE account_id = $1`

	var raw []byte
	if err := r.db.Pool.QueryRow(ctx, query, accountID).Scan(&raw); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return r.decode(accountID, raw)
}

// Put replaces the stored state
func (r *SecurityStateRepository) Put(ctx context.Context, accountID string, state *models.SecurityState) error {
	return r.put(ctx, r.db.Pool, accountID, state)
}

// Update runs fn under a transaction-scoped advisory lock on the account, so
// concurrent updates of one account serialize even before its row exists.
func (r *SecurityStateRepository) Update(ctx context.Context, accountID string, fn func(state *models.SecurityState) bool) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, accountID); err != nil {
			return fmt.Errorf("failed to lock account security state: %w", err)
		}

		state := &models.SecurityState{}
		var raw []byte
		err := tx.QueryRow(ctx, `SELECT state FROM account_security WHERE account_id = $1 FOR UPDATE`, accountID).Scan(&raw)
		switch {
		case err == nil:
			decoded, decodeErr := r.decode(accountID, raw)
			if decodeErr != nil {
				return decodeErr
			}
			state = decoded
		case !errors.Is(database.MapPostgresError(err), models.ErrNotFound):
			return fmt.Errorf("failed to load account security state: %w", err)
		}

		if !fn(state) {
			return nil
		}
		return r.put(ctx, tx, accountID, state)
	})
}

// Delete removes the stored state for an account
func (r *SecurityStateRepository) Delete(ctx context.Context, accountID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM account_security WHERE account_id = $1`, accountID)
	return database.MapPostgresError(err)
}

// PurgeIdle deletes rows that are unlocked and have an empty attempt log.
// Such rows read the same as a missing row, so removing them changes no
// decision. Malformed rows are left for an operator to inspect.
func (r *SecurityStateRepository) PurgeIdle(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		DELETE FROM account_security
		WHERE state->'locked' = 'false'::jsonb
		  AND state->'failed_attempts' = '[]'::jsonb
	`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func (r *SecurityStateRepository) put(ctx context.Context, db execer, accountID string, state *models.SecurityState) error {
	stored := state.Clone()
	stored.Normalize()
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode account security state: %w", err)
	}

	query := `
		INSERT INTO account_security (account_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (account_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`
	if _, err := db.Exec(ctx, query, accountID, data); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// decode fails on an undecodable blob so a damaged lock is never read as
// unlocked. Missing keys decode to their zero values.
func (r *SecurityStateRepository) decode(accountID string, raw []byte) (*models.SecurityState, error) {
	state := &models.SecurityState{}
	if len(raw) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(raw, state); err != nil {
		r.logger.Error("malformed account security state",
			slog.String("account_id", accountID),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to decode account security state: %w", err)
	}
	state.Normalize()
	return state, nil
}
