package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/NordicFuzzCon/pretalx/internal/models"
	"github.com/NordicFuzzCon/pretalx/pkg/crypto"
	"github.com/NordicFuzzCon/pretalx/pkg/metrics"
)

// DefaultSessionTTL is the fallback session lifetime.
const DefaultSessionTTL = 14 * 24 * time.Hour

const defaultTokenBytes = 48

// CookieName is the session cookie issued after login.
const CookieName = "pretalx_session"

var (
	// ErrSessionNotFound indicates that no session matches the provided token.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionExpired signals that the session has reached its expiry.
	ErrSessionExpired = errors.New("session: expired")
	// ErrSessionInvalidToken is returned when the supplied token is malformed.
	ErrSessionInvalidToken = errors.New("session: invalid token")
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	TTL         time.Duration
	TokenLength int
	Clock       func() time.Time
}

// SessionMetadata captures contextual information about the client.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

// SessionService manages creation, resolution, and revocation of
// cookie-bound organizer sessions. Only token hashes are persisted.
type SessionService struct {
	db       *gorm.DB
	ttl      time.Duration
	tokenLen int
	now      func() time.Time
}

// NewSessionService constructs a session manager backed by the provided database.
func NewSessionService(db *gorm.DB, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	length := cfg.TokenLength
	if length <= 0 {
		length = defaultTokenBytes
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &SessionService{
		db:       db,
		ttl:      ttl,
		tokenLen: length,
		now:      clock,
	}, nil
}

// Create issues a new session for the user and returns the raw cookie token.
func (s *SessionService) Create(ctx context.Context, userID string, meta SessionMetadata) (string, *models.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return "", nil, errors.New("session service: user id is required")
	}

	token, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return "", nil, fmt.Errorf("session service: generate token: %w", err)
	}

	now := s.now()
	session := &models.Session{
		UserID:     userID,
		TokenHash:  hashToken(token),
		IPAddress:  strings.TrimSpace(meta.IPAddress),
		UserAgent:  strings.TrimSpace(meta.UserAgent),
		ExpiresAt:  now.Add(s.ttl),
		LastUsedAt: now,
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return "", nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()

	return token, session, nil
}

// Resolve validates the cookie token and returns the session owner.
// LastUsedAt is refreshed on success.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.User, *models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, ErrSessionInvalidToken
	}

	var session models.Session
	err := s.db.WithContext(ctx).
		Where("token_hash = ?", hashToken(token)).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("session service: find session: %w", err)
	}

	now := s.now()
	if session.ExpiresAt.Before(now) {
		return nil, nil, ErrSessionExpired
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("session service: load user: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Model(&session).
		Update("last_used_at", now).Error; err != nil {
		return nil, nil, fmt.Errorf("session service: touch session: %w", err)
	}
	session.LastUsedAt = now

	return &user, &session, nil
}

// Revoke deletes the session matching the cookie token. Revoking an unknown
// token is a no-op.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	result := s.db.WithContext(ctx).
		Where("token_hash = ?", hashToken(token)).
		Delete(&models.Session{})
	if result.Error != nil {
		return fmt.Errorf("session service: revoke session: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Dec()
	}
	return nil
}

// PurgeExpired removes sessions past their expiry and returns the count.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: purge expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func hashToken(token string) string {
	checksum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(checksum[:])
}
