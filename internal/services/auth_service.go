package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/NordicFuzzCon/pretalx/internal/models"
	"github.com/NordicFuzzCon/pretalx/pkg/crypto"
	apperrors "github.com/NordicFuzzCon/pretalx/pkg/errors"
	"github.com/NordicFuzzCon/pretalx/pkg/metrics"
)

// AuthService verifies organizer credentials.
type AuthService struct {
	db  *gorm.DB
	now func() time.Time
}

// AuthOption customises AuthService behaviour.
type AuthOption func(*AuthService)

// WithAuthClock injects a custom clock primarily for testing.
func WithAuthClock(clock func() time.Time) AuthOption {
	return func(s *AuthService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, opts ...AuthOption) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}

	service := &AuthService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Login verifies the credential pair and returns the account on success.
// The same error is returned for an unknown email and a wrong password so
// responses cannot be used to enumerate accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)
	email = normaliseEmail(email)

	if email == "" || password == "" {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: find user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	now := s.now()
	if err := s.db.WithContext(ctx).
		Model(&user).
		Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("auth service: record login: %w", err)
	}
	user.LastLoginAt = &now

	metrics.LoginAttempts.WithLabelValues("success").Inc()

	return &user, nil
}
