package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/lockguard/internal/models"
)

// SecurityStateStore persists one SecurityState per account.
// Get returns models.ErrNotFound when the account has no stored state.
type SecurityStateStore interface {
	Get(ctx context.Context, accountID string) (*models.SecurityState, error)
	Put(ctx context.Context, accountID string, state *models.SecurityState) error
}

// SecurityStateUpdater is implemented by stores that can run a read-modify-write
// for a single account under exclusion. fn receives the current state (zero value
// when absent) and reports whether it must be written back.
type SecurityStateUpdater interface {
	Update(ctx context.Context, accountID string, fn func(state *models.SecurityState) bool) error
}

// AccountResolver maps a login identifier to an account ID.
// It returns models.ErrAccountNotFound for unknown identifiers.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, identifier string) (string, error)
}

// ExpirationOverride may replace the stored lock expiry of an account.
// Returning nil turns the lock into an indefinite one.
type ExpirationOverride func(ctx context.Context, accountID string, expiresAt *time.Time) *time.Time

// LockoutEventSink consumes guard events. Sinks run best-effort.
type LockoutEventSink interface {
	Record(ctx context.Context, event models.LockoutEvent) error
}

// LockoutEventSinkFunc adapts a function to the LockoutEventSink interface.
type LockoutEventSinkFunc func(ctx context.Context, event models.LockoutEvent) error

// Record implements LockoutEventSink.
func (f LockoutEventSinkFunc) Record(ctx context.Context, event models.LockoutEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopLockoutEventSink struct{}

func (noopLockoutEventSink) Record(context.Context, models.LockoutEvent) error {
	return nil
}

type multiLockoutEventSink []LockoutEventSink

func (m multiLockoutEventSink) Record(ctx context.Context, event models.LockoutEvent) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiLockoutEventSink fans every event out to all non-nil sinks.
func MultiLockoutEventSink(sinks ...LockoutEventSink) LockoutEventSink {
	out := make(multiLockoutEventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// GuardOption customizes a LockoutGuard.
type GuardOption func(*LockoutGuard)

// WithGuardClock injects the clock used for every decision (useful for tests).
func WithGuardClock(clock func() time.Time) GuardOption {
	return func(g *LockoutGuard) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithAccountResolver sets how login identifiers map to account IDs.
// Without a resolver the identifier is used as the account ID.
func WithAccountResolver(resolver AccountResolver) GuardOption {
	return func(g *LockoutGuard) {
		g.resolver = resolver
	}
}

// WithExpirationOverride installs a policy hook for lock expiry.
func WithExpirationOverride(override ExpirationOverride) GuardOption {
	return func(g *LockoutGuard) {
		g.override = override
	}
}

// WithLockoutEventSink sets the sink that receives lockout events.
func WithLockoutEventSink(sink LockoutEventSink) GuardOption {
	return func(g *LockoutGuard) {
		if sink != nil {
			g.sink = sink
		}
	}
}

// WithGuardLogger overrides the logger.
func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *LockoutGuard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// LockoutGuard tracks failed logins per account and decides when an account
// is locked. It keeps no state of its own: every call is one read-modify-write
// against the store, and lock expiry is evaluated lazily on each call.
type LockoutGuard struct {
	store    SecurityStateStore
	policy   models.LockoutPolicy
	resolver AccountResolver
	override ExpirationOverride
	sink     LockoutEventSink
	now      func() time.Time
	logger   *slog.Logger
}

// NewLockoutGuard creates a LockoutGuard. An invalid policy is rejected here
// so that no decision is ever made with one.
func NewLockoutGuard(store SecurityStateStore, policy models.LockoutPolicy, opts ...GuardOption) (*LockoutGuard, error) {
	if store == nil {
		return nil, errors.New("lockout guard: store is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	g := &LockoutGuard{
		store:  store,
		policy: policy,
		sink:   noopLockoutEventSink{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Policy returns the policy the guard decides with.
func (g *LockoutGuard) Policy() models.LockoutPolicy {
	return g.policy
}

// Authenticate inspects and updates the account's state for one login attempt.
// Unknown identifiers pass through untouched. The guard only ever adds a
// denial: it never turns a rejected credential into an accepted one.
func (g *LockoutGuard) Authenticate(ctx context.Context, identifier string, outcome models.CredentialOutcome, sourceAddress string) (models.Decision, error) {
	accountID, err := g.resolve(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return models.ProceedDecision(outcome), nil
		}
		return models.Decision{}, err
	}

	if sourceAddress == "" {
		sourceAddress = models.UnknownSourceAddress
	}

	decision := models.ProceedDecision(outcome)
	var events []models.LockoutEvent

	err = g.mutate(ctx, accountID, func(state *models.SecurityState) bool {
		now := g.now()

		locked, expiresAt, expired := g.evaluateLock(ctx, accountID, state, now)
		if expired {
			events = append(events, g.event(models.LockoutEventAccountUnlocked, models.TriggerExpired, accountID, now))
		}
		if locked {
			decision = models.DeniedDecision(outcome, now, expiresAt)
			ev := g.event(models.LockoutEventLoginDenied, "", accountID, now)
			ev.SourceAddress = sourceAddress
			ev.ExpiresAt = expiresAt
			ev.Reason = decision.Reason
			events = append(events, ev)
			return false
		}

		if outcome != models.OutcomeInvalidPassword {
			return expired
		}

		// The window is anchored at the first failure; once it has elapsed the
		// log restarts with this attempt and no lock is considered.
		if first, ok := state.FirstAttempt(); ok && !now.Before(first.Time.Add(g.policy.ThresholdWindow)) {
			state.ResetFailedAttempts()
			state.AddFailedAttempt(now, sourceAddress)
			ev := g.event(models.LockoutEventAttemptRecorded, models.TriggerWindowReset, accountID, now)
			ev.SourceAddress = sourceAddress
			ev.Attempts = 1
			events = append(events, ev)
			return true
		}

		state.AddFailedAttempt(now, sourceAddress)
		attempts := len(state.FailedAttempts)
		ev := g.event(models.LockoutEventAttemptRecorded, "", accountID, now)
		ev.SourceAddress = sourceAddress
		ev.Attempts = attempts
		events = append(events, ev)

		if attempts >= g.policy.Threshold {
			lockUntil := now.Add(g.policy.LockoutDuration)
			state.Lock(&lockUntil)
			effective := g.effectiveExpiry(ctx, accountID, state.LockExpiresAt)
			decision = models.DeniedDecision(outcome, now, effective)

			lockEv := g.event(models.LockoutEventAccountLocked, models.TriggerThreshold, accountID, now)
			lockEv.SourceAddress = sourceAddress
			lockEv.Attempts = attempts
			lockEv.ExpiresAt = effective
			events = append(events, lockEv)
		}
		return true
	})
	if err != nil {
		g.logger.Error("lockout guard failed to record attempt",
			slog.String("account_id", accountID),
			slog.Any("error", err))
		return models.Decision{}, err
	}

	g.emit(ctx, events)

	if decision.Denied() {
		g.logger.Warn("login denied by lockout guard",
			slog.String("account_id", accountID),
			slog.String("reason", string(decision.Reason)),
			slog.Duration("retry_after", decision.RetryAfter))
	}

	return decision, nil
}

// CanResetPassword reports whether a password reset may start. Only an
// indefinite lock blocks it; a timed lock resolves itself on expiry.
func (g *LockoutGuard) CanResetPassword(ctx context.Context, account string) (bool, error) {
	accountID, err := g.resolve(ctx, account)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return true, nil
		}
		return false, err
	}

	allowed := true
	var events []models.LockoutEvent
	err = g.mutate(ctx, accountID, func(state *models.SecurityState) bool {
		now := g.now()
		locked, expiresAt, expired := g.evaluateLock(ctx, accountID, state, now)
		if expired {
			events = append(events, g.event(models.LockoutEventAccountUnlocked, models.TriggerExpired, accountID, now))
		}
		if locked && expiresAt == nil {
			allowed = false
		}
		return expired
	})
	if err != nil {
		return false, err
	}

	g.emit(ctx, events)
	return allowed, nil
}

// Lock locks the account. A nil expiresAt locks it until an explicit Unlock.
// The failed-attempt log is left as is.
func (g *LockoutGuard) Lock(ctx context.Context, account string, expiresAt *time.Time) error {
	accountID, err := g.resolve(ctx, account)
	if err != nil {
		return err
	}

	var events []models.LockoutEvent
	err = g.mutate(ctx, accountID, func(state *models.SecurityState) bool {
		state.Lock(expiresAt)
		ev := g.event(models.LockoutEventAccountLocked, models.TriggerManual, accountID, g.now())
		ev.ExpiresAt = state.LockExpiresAt
		ev.Attempts = len(state.FailedAttempts)
		events = append(events, ev)
		return true
	})
	if err != nil {
		return err
	}

	attrs := []any{slog.String("account_id", accountID)}
	if expiresAt != nil {
		attrs = append(attrs, slog.Time("expires_at", *expiresAt))
	}
	g.logger.Info("account locked", attrs...)
	g.emit(ctx, events)
	return nil
}

// Unlock fully resets the account: lock, expiry and failed-attempt log.
func (g *LockoutGuard) Unlock(ctx context.Context, account string) error {
	accountID, err := g.resolve(ctx, account)
	if err != nil {
		return err
	}

	var events []models.LockoutEvent
	err = g.mutate(ctx, accountID, func(state *models.SecurityState) bool {
		if !state.Locked && len(state.FailedAttempts) == 0 {
			return false
		}
		state.Unlock()
		events = append(events, g.event(models.LockoutEventAccountUnlocked, models.TriggerManual, accountID, g.now()))
		return true
	})
	if err != nil {
		return err
	}

	if len(events) > 0 {
		g.logger.Info("account unlocked", slog.String("account_id", accountID))
	}
	g.emit(ctx, events)
	return nil
}

// IsLocked reports whether the account is locked now. An expired timed lock
// is cleared and persisted as a side effect.
func (g *LockoutGuard) IsLocked(ctx context.Context, account string) (bool, error) {
	state, err := g.Status(ctx, account)
	if err != nil {
		return false, err
	}
	return state.Locked, nil
}

// ResetFailedAttempts clears the failed-attempt log without touching the lock.
func (g *LockoutGuard) ResetFailedAttempts(ctx context.Context, account string) error {
	accountID, err := g.resolve(ctx, account)
	if err != nil {
		return err
	}

	var events []models.LockoutEvent
	err = g.mutate(ctx, accountID, func(state *models.SecurityState) bool {
		if len(state.FailedAttempts) == 0 {
			return false
		}
		ev := g.event(models.LockoutEventAttemptsReset, models.TriggerManual, accountID, g.now())
		ev.Attempts = len(state.FailedAttempts)
		events = append(events, ev)
		state.ResetFailedAttempts()
		return true
	})
	if err != nil {
		return err
	}

	g.emit(ctx, events)
	return nil
}

// FailedAttemptCount returns the number of failures in the current window log.
func (g *LockoutGuard) FailedAttemptCount(ctx context.Context, account string) (int, error) {
	state, err := g.Status(ctx, account)
	if err != nil {
		return 0, err
	}
	return len(state.FailedAttempts), nil
}

// Status returns an expiry-aware snapshot of the account's state. The
// returned LockExpiresAt is the effective expiry after any override.
func (g *LockoutGuard) Status(ctx context.Context, account string) (*models.SecurityState, error) {
	accountID, err := g.resolve(ctx, account)
	if err != nil {
		return nil, err
	}

	var snapshot *models.SecurityState
	var events []models.LockoutEvent
	err = g.mutate(ctx, accountID, func(state *models.SecurityState) bool {
		now := g.now()
		locked, expiresAt, expired := g.evaluateLock(ctx, accountID, state, now)
		if expired {
			events = append(events, g.event(models.LockoutEventAccountUnlocked, models.TriggerExpired, accountID, now))
		}
		snapshot = state.Clone()
		if locked {
			snapshot.LockExpiresAt = expiresAt
		}
		return expired
	})
	if err != nil {
		return nil, err
	}

	g.emit(ctx, events)
	return snapshot, nil
}

// evaluateLock applies lazy expiry to state. An expired timed lock is cleared
// in place and reported through expired.
func (g *LockoutGuard) evaluateLock(ctx context.Context, accountID string, state *models.SecurityState, now time.Time) (locked bool, expiresAt *time.Time, expired bool) {
	if !state.Locked {
		return false, nil, false
	}

	expiresAt = g.effectiveExpiry(ctx, accountID, state.LockExpiresAt)
	if expiresAt == nil {
		return true, nil, false
	}

	if now.After(*expiresAt) {
		state.Unlock()
		return false, nil, true
	}
	return true, expiresAt, false
}

func (g *LockoutGuard) effectiveExpiry(ctx context.Context, accountID string, stored *time.Time) *time.Time {
	var expiresAt *time.Time
	if stored != nil {
		t := *stored
		expiresAt = &t
	}
	if g.override == nil {
		return expiresAt
	}
	return g.override(ctx, accountID, expiresAt)
}

// ResolveAccount maps an identifier to an account ID the way every guard
// operation does. Unknown identifiers yield models.ErrAccountNotFound.
func (g *LockoutGuard) ResolveAccount(ctx context.Context, identifier string) (string, error) {
	return g.resolve(ctx, identifier)
}

func (g *LockoutGuard) resolve(ctx context.Context, identifier string) (string, error) {
	return resolveAccount(ctx, g.resolver, identifier)
}

// resolveAccount maps identifier through resolver. A nil resolver treats the
// identifier as the account ID. Lookup failures other than not-found are
// reported as models.ErrStoreUnavailable.
func resolveAccount(ctx context.Context, resolver AccountResolver, identifier string) (string, error) {
	if identifier == "" {
		return "", models.ErrAccountNotFound
	}
	if resolver == nil {
		return identifier, nil
	}

	accountID, err := resolver.ResolveAccount(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) || errors.Is(err, models.ErrNotFound) {
			return "", models.ErrAccountNotFound
		}
		return "", fmt.Errorf("%w: failed to resolve account: %w", models.ErrStoreUnavailable, err)
	}
	if accountID == "" {
		return "", models.ErrAccountNotFound
	}
	return accountID, nil
}

// mutate runs one read-modify-write cycle for the account. Stores that
// implement SecurityStateUpdater run it under their own per-account exclusion.
func (g *LockoutGuard) mutate(ctx context.Context, accountID string, fn func(state *models.SecurityState) bool) error {
	if updater, ok := g.store.(SecurityStateUpdater); ok {
		err := updater.Update(ctx, accountID, func(state *models.SecurityState) bool {
			state.Normalize()
			return fn(state)
		})
		if err != nil {
			return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
		}
		return nil
	}

	state, err := g.store.Get(ctx, accountID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		state = &models.SecurityState{}
	case err != nil:
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	case state == nil:
		state = &models.SecurityState{}
	}
	state.Normalize()

	if !fn(state) {
		return nil
	}
	if err := g.store.Put(ctx, accountID, state); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (g *LockoutGuard) event(eventType models.LockoutEventType, trigger models.LockoutTrigger, accountID string, now time.Time) models.LockoutEvent {
	return models.LockoutEvent{
		Type:       eventType,
		Trigger:    trigger,
		AccountID:  accountID,
		OccurredAt: now,
	}
}

func (g *LockoutGuard) emit(ctx context.Context, events []models.LockoutEvent) {
	for _, event := range events {
		if err := g.sink.Record(ctx, event); err != nil {
			g.logger.Warn("lockout event sink error",
				slog.String("event_type", string(event.Type)),
				slog.String("account_id", event.AccountID),
				slog.Any("error", err))
		}
	}
}
