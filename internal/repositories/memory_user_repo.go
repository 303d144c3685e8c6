package repositories

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/lockguard/internal/models"
	"github.com/google/uuid"
)

// MemoryUserRepository is the user table for the memory store mode. It holds
// only the users seeded at startup.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]*models.User
}

// NewMemoryUserRepository creates an empty in-memory user table
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]*models.User),
	}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

// ResolveAccount follows the same email-or-ID rule as UserRepository.
func (r *MemoryUserRepository) ResolveAccount(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = r.GetByEmail(ctx, identifier)
	} else {
		user, err = r.GetByID(ctx, identifier)
	}
	if err != nil {
		return "", models.ErrAccountNotFound
	}
	return user.ID, nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	stored := *user
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.Email = normalizeEmail(stored.Email)
	if stored.Role == "" {
		stored.Role = "user"
	}
	if stored.Status == "" {
		stored.Status = models.UserStatusActive
	}
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[stored.Email]; exists {
		return nil, models.ErrConflict
	}
	if _, exists := r.byID[stored.ID]; exists {
		return nil, models.ErrConflict
	}
	r.byID[stored.ID] = &stored
	r.byEmail[stored.Email] = &stored

	clone := stored
	return &clone, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
