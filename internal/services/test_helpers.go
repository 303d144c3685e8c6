package services

import (
	"context"
	"time"

	"github.com/BradenHooton/lockguard/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

// MockAccountResolver implements AccountResolver for testing
type MockAccountResolver struct {
	ResolveAccountFunc func(ctx context.Context, identifier string) (string, error)
}

func (m *MockAccountResolver) ResolveAccount(ctx context.Context, identifier string) (string, error) {
	if m.ResolveAccountFunc != nil {
		return m.ResolveAccountFunc(ctx, identifier)
	}
	return identifier, nil
}

// MockTokenManager implements TokenIssuer for testing
type MockTokenManager struct {
	GenerateAccessTokenFunc func(userID, email, role string) (string, error)
	Expiry                  time.Duration
}

func (m *MockTokenManager) GenerateAccessToken(userID, email, role string) (string, error) {
	if m.GenerateAccessTokenFunc != nil {
		return m.GenerateAccessTokenFunc(userID, email, role)
	}
	return "access_token_" + userID, nil
}

func (m *MockTokenManager) AccessTokenExpiry() time.Duration {
	if m.Expiry == 0 {
		return 15 * time.Minute
	}
	return m.Expiry
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendLockoutNotificationFunc func(ctx context.Context, email string, attempts int, expiresAt *time.Time) error
}

func (m *MockEmailService) SendLockoutNotification(ctx context.Context, email string, attempts int, expiresAt *time.Time) error {
	if m.SendLockoutNotificationFunc != nil {
		return m.SendLockoutNotificationFunc(ctx, email, attempts, expiresAt)
	}
	return nil
}

// MockSESClient implements SESAPI for testing
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{MessageId: aws.String("test-message-id")}, nil
}

// NewTestUser builds an active user with the "user" role
func NewTestUser(id, email, name string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		Email:     email,
		Name:      name,
		Status:    models.UserStatusActive,
		Role:      "user",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestUserWithPassword creates a user with hashed password
func NewTestUserWithPassword(id, email, name, passwordHash string) *models.User {
	user := NewTestUser(id, email, name)
	user.PasswordHash = passwordHash
	return user
}

// NewTestUserWithStatus creates a user with specified status
func NewTestUserWithStatus(id, email, name, status string) *models.User {
	user := NewTestUser(id, email, name)
	user.Status = status
	return user
}
