package services

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
	"github.com/NordicFuzzCon/pretalx/internal/security"
	"github.com/NordicFuzzCon/pretalx/pkg/crypto"
	"github.com/NordicFuzzCon/pretalx/pkg/mail"
	"github.com/NordicFuzzCon/pretalx/pkg/metrics"
)

const (
	defaultInviteExpiry     = 14 * 24 * time.Hour
	defaultInviteTokenBytes = 32
)

var (
	// ErrInviteNotFound indicates no pending invite matches the provided token.
	ErrInviteNotFound = errors.New("invite: not found")
	// ErrInviteExpired indicates the invite token has expired.
	ErrInviteExpired = errors.New("invite: expired")
	// ErrInviteAlreadyPending signals an open invite for this email and team.
	ErrInviteAlreadyPending = errors.New("invite: already pending")
	// ErrInviteAlreadyMember signals the email belongs to a team member.
	ErrInviteAlreadyMember = errors.New("invite: user already a team member")
	// ErrEmailRegistered rejects registration with an email that already has an account.
	ErrEmailRegistered = errors.New("invite: email already registered")
	// ErrPasswordMismatch rejects registration when the repeated password differs.
	ErrPasswordMismatch = errors.New("invite: passwords do not match")
)

// InviteOption customises InviteService behaviour.
type InviteOption func(*InviteService)

// WithInviteBaseURL configures the base URL used to build invitation links.
func WithInviteBaseURL(url string) InviteOption {
	return func(s *InviteService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInviteExpiry overrides the invite token lifetime.
func WithInviteExpiry(d time.Duration) InviteOption {
	return func(s *InviteService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithInviteClock injects a custom clock primarily for testing.
func WithInviteClock(clock func() time.Time) InviteOption {
	return func(s *InviteService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// AcceptInviteInput carries the registration form fields.
type AcceptInviteInput struct {
	Email          string
	Password       string
	PasswordRepeat string
}

// InviteService manages the lifecycle of team invitations: creation,
// lookup, one-time acceptance, and revocation.
type InviteService struct {
	db          *gorm.DB
	mailer      mail.Mailer
	policy      *security.PasswordPolicy
	baseURL     string
	expiry      time.Duration
	tokenLength int
	now         func() time.Time
}

// NewInviteService constructs an InviteService with the provided dependencies.
func NewInviteService(db *gorm.DB, mailer mail.Mailer, policy *security.PasswordPolicy, opts ...InviteOption) (*InviteService, error) {
	if db == nil {
		return nil, errors.New("invite service: db is required")
	}
	if policy == nil {
		policy = security.NewPasswordPolicy()
	}

	service := &InviteService{
		db:          db,
		mailer:      mailer,
		policy:      policy,
		expiry:      defaultInviteExpiry,
		tokenLength: defaultInviteTokenBytes,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Create issues an invitation into the team and dispatches the invite email.
func (s *InviteService) Create(ctx context.Context, teamID, email string) (*models.TeamInvite, string, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" {
		return nil, "", errors.New("invite service: email is required")
	}

	var team models.Team
	err := s.db.WithContext(ctx).First(&team, "id = ?", teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrTeamNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("invite service: load team: %w", err)
	}

	var memberCount int64
	err = s.db.WithContext(ctx).
		Table("team_members").
		Joins("JOIN users ON users.id = team_members.user_id").
		Where("team_members.team_id = ? AND users.email = ?", teamID, email).
		Count(&memberCount).Error
	if err != nil {
		return nil, "", fmt.Errorf("invite service: check membership: %w", err)
	}
	if memberCount > 0 {
		return nil, "", ErrInviteAlreadyMember
	}

	var pending int64
	err = s.db.WithContext(ctx).
		Model(&models.TeamInvite{}).
		Where("team_id = ? AND email = ?", teamID, email).
		Count(&pending).Error
	if err != nil {
		return nil, "", fmt.Errorf("invite service: check pending invites: %w", err)
	}
	if pending > 0 {
		return nil, "", ErrInviteAlreadyPending
	}

	rawToken, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return nil, "", fmt.Errorf("invite service: generate token: %w", err)
	}

	invite := &models.TeamInvite{
		TeamID:    teamID,
		Email:     email,
		TokenHash: inviteTokenHash(rawToken),
		ExpiresAt: s.now().Add(s.expiry),
	}
	if err := s.db.WithContext(ctx).Create(invite).Error; err != nil {
		return nil, "", fmt.Errorf("invite service: create invite: %w", err)
	}
	invite.Team = &team

	if s.mailer != nil {
		message := mail.Message{
			To:      []string{email},
			Subject: fmt.Sprintf("You have been invited to the %s team", team.Name),
			Body:    s.inviteBody(team.Name, rawToken),
		}
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil && !errors.Is(mailErr, mail.ErrSMTPDisabled) {
			return nil, "", fmt.Errorf("invite service: send email: %w", mailErr)
		}
	}

	return invite, rawToken, nil
}

// Get resolves a token to its pending invite. Unknown, consumed, and
// expired tokens all yield ErrInviteNotFound shaped failures so a
// destroyed invite never resolves again.
func (s *InviteService) Get(ctx context.Context, token string) (*models.TeamInvite, error) {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInviteNotFound
	}

	var invite models.TeamInvite
	err := s.db.WithContext(ctx).
		Preload("Team").
		Where("token_hash = ?", inviteTokenHash(token)).
		First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invite service: find invite: %w", err)
	}

	if invite.ExpiresAt.Before(s.now()) {
		return nil, ErrInviteExpired
	}

	return &invite, nil
}

// Accept consumes the invite: it creates the account, adds it to the
// team, and deletes the invite in one transaction. Validation failures
// leave the invite pending and create nothing. Under concurrent
// acceptance of the same token exactly one caller succeeds; the rest
// observe ErrInviteNotFound.
func (s *InviteService) Accept(ctx context.Context, token string, input AcceptInviteInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	invite, err := s.Get(ctx, token)
	if err != nil {
		metrics.InviteAcceptances.WithLabelValues("not_found").Inc()
		return nil, err
	}

	email := normaliseEmail(input.Email)
	if email == "" {
		metrics.InviteAcceptances.WithLabelValues("rejected").Inc()
		return nil, errors.New("invite service: email is required")
	}
	if input.Password != input.PasswordRepeat {
		metrics.InviteAcceptances.WithLabelValues("rejected").Inc()
		return nil, ErrPasswordMismatch
	}
	if err := s.policy.Validate(input.Password); err != nil {
		metrics.InviteAcceptances.WithLabelValues("rejected").Inc()
		return nil, err
	}

	var existing int64
	err = s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("email = ?", email).
		Count(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("invite service: check existing user: %w", err)
	}
	if existing > 0 {
		metrics.InviteAcceptances.WithLabelValues("rejected").Inc()
		return nil, ErrEmailRegistered
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("invite service: hash password: %w", err)
	}

	user := &models.User{
		Email:    email,
		Password: hashed,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Deleting the invite first and checking the affected row count
		// guarantees a single winner when two requests race on one token.
		result := tx.Where("id = ? AND token_hash = ?", invite.ID, invite.TokenHash).
			Delete(&models.TeamInvite{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInviteNotFound
		}

		if err := tx.Create(user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrEmailRegistered
			}
			return err
		}

		team := models.Team{BaseModel: models.BaseModel{ID: invite.TeamID}}
		if err := tx.Model(&team).Association("Members").Append(user); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInviteNotFound):
			metrics.InviteAcceptances.WithLabelValues("not_found").Inc()
		case errors.Is(err, ErrEmailRegistered):
			metrics.InviteAcceptances.WithLabelValues("rejected").Inc()
		default:
			err = fmt.Errorf("invite service: accept invite: %w", err)
		}
		return nil, err
	}

	metrics.InviteAcceptances.WithLabelValues("accepted").Inc()

	return user, nil
}

// Revoke deletes a pending invite belonging to the team.
func (s *InviteService) Revoke(ctx context.Context, teamID, inviteID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("id = ? AND team_id = ?", inviteID, teamID).
		Delete(&models.TeamInvite{})
	if result.Error != nil {
		return fmt.Errorf("invite service: revoke invite: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInviteNotFound
	}
	return nil
}

// ListByTeam returns the pending invites for a team.
func (s *InviteService) ListByTeam(ctx context.Context, teamID string) ([]models.TeamInvite, error) {
	ctx = ensureContext(ctx)

	var invites []models.TeamInvite
	err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at").
		Find(&invites).Error
	if err != nil {
		return nil, fmt.Errorf("invite service: list invites: %w", err)
	}
	return invites, nil
}

func (s *InviteService) inviteBody(teamName, token string) string {
	link := s.inviteLink(token)
	return fmt.Sprintf("Hello,\n\nYou have been invited to join the %s team. Use the following link to accept the invitation and create your account:\n%s\n\nIf you did not expect this email, you can ignore it.\n", teamName, link)
}

func (s *InviteService) inviteLink(token string) string {
	if s.baseURL == "" {
		return "/orga/invitation/" + token
	}
	return fmt.Sprintf("%s/orga/invitation/%s", s.baseURL, token)
}

func inviteTokenHash(token string) string {
	checksum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(checksum[:])
}
