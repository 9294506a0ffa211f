package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/NordicFuzzCon/pretalx/internal/models"
	"github.com/NordicFuzzCon/pretalx/internal/security"
	"github.com/NordicFuzzCon/pretalx/pkg/crypto"
	"github.com/NordicFuzzCon/pretalx/pkg/mail"
	"github.com/NordicFuzzCon/pretalx/pkg/metrics"
)

const defaultResetTokenBytes = 32

// ErrResetTokenInvalid covers unknown and already-consumed reset tokens.
var ErrResetTokenInvalid = errors.New("password reset: invalid token")

// ResetOption customises PasswordResetService behaviour.
type ResetOption func(*PasswordResetService)

// WithResetBaseURL configures the base URL used to build reset links.
func WithResetBaseURL(url string) ResetOption {
	return func(s *PasswordResetService) {
		s.baseURL = url
	}
}

// PasswordResetService issues and consumes one-time password reset tokens.
// A user has at most one outstanding token; repeated requests reuse it and
// send no further notification.
type PasswordResetService struct {
	db          *gorm.DB
	mailer      mail.Mailer
	policy      *security.PasswordPolicy
	baseURL     string
	tokenLength int
}

// NewPasswordResetService constructs the service with its collaborators.
func NewPasswordResetService(db *gorm.DB, mailer mail.Mailer, policy *security.PasswordPolicy, opts ...ResetOption) (*PasswordResetService, error) {
	if db == nil {
		return nil, errors.New("password reset service: db is required")
	}
	if policy == nil {
		policy = security.NewPasswordPolicy()
	}

	service := &PasswordResetService{
		db:          db,
		mailer:      mailer,
		policy:      policy,
		tokenLength: defaultResetTokenBytes,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Request issues a reset token for the account and mails the reset link.
// It returns nil for unknown emails and for accounts that already hold an
// outstanding token, so callers cannot distinguish the three cases.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" {
		return nil
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("password reset service: find user: %w", err)
	}

	if user.PwResetToken != nil {
		// Outstanding token stays valid; no second notification.
		return nil
	}

	token, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return fmt.Errorf("password reset service: generate token: %w", err)
	}

	// The guard on a NULL token makes concurrent requests race safely:
	// only the caller that sets the token sends the notification.
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND pw_reset_token IS NULL", user.ID).
		Update("pw_reset_token", token)
	if result.Error != nil {
		return fmt.Errorf("password reset service: store token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil
	}

	if s.mailer != nil {
		message := mail.Message{
			To:      []string{user.Email},
			Subject: "Password recovery",
			Body:    s.resetBody(token),
		}
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil && !errors.Is(mailErr, mail.ErrSMTPDisabled) {
			return fmt.Errorf("password reset service: send email: %w", mailErr)
		}
		metrics.ResetMailsSent.Inc()
	}

	return nil
}

// Confirm consumes the token and sets the new password. The token stays
// outstanding when validation fails; a consumed or unknown token yields
// ErrResetTokenInvalid and changes nothing.
func (s *PasswordResetService) Confirm(ctx context.Context, token, password, passwordRepeat string) error {
	ctx = ensureContext(ctx)

	if token == "" {
		return ErrResetTokenInvalid
	}
	if password != passwordRepeat {
		return ErrPasswordMismatch
	}
	if err := s.policy.Validate(password); err != nil {
		return err
	}

	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("password reset service: hash password: %w", err)
	}

	// Updating and clearing in a single guarded statement makes
	// consumption single-use under concurrent confirms.
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("pw_reset_token = ?", token).
		Updates(map[string]any{
			"password":       hashed,
			"pw_reset_token": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("password reset service: consume token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrResetTokenInvalid
	}

	return nil
}

// OutstandingToken reports the reset token currently held by the email's
// account, if any. Used by the organizer API and tests.
func (s *PasswordResetService) OutstandingToken(ctx context.Context, email string) (*string, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", normaliseEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("password reset service: find user: %w", err)
	}
	return user.PwResetToken, nil
}

func (s *PasswordResetService) resetBody(token string) string {
	link := s.resetLink(token)
	return fmt.Sprintf("Hello,\n\nYou requested a new password for your account. Use the following link to choose one:\n%s\n\nIf you did not request a password reset, you can ignore this email.\n", link)
}

func (s *PasswordResetService) resetLink(token string) string {
	if s.baseURL == "" {
		return "/orga/reset/" + token
	}
	return fmt.Sprintf("%s/orga/reset/%s", s.baseURL, token)
}
