package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/NordicFuzzCon/pretalx/internal/models"
	apperrors "github.com/NordicFuzzCon/pretalx/pkg/errors"
)

// ErrTeamNotFound indicates the requested team does not exist.
var ErrTeamNotFound = apperrors.New("TEAM_NOT_FOUND", "Team not found", http.StatusNotFound)

// CreateTeamInput captures new team metadata.
type CreateTeamInput struct {
	Name string
}

// TeamService handles team lifecycle and membership queries.
type TeamService struct {
	db *gorm.DB
}

// NewTeamService constructs a TeamService instance.
func NewTeamService(db *gorm.DB) (*TeamService, error) {
	if db == nil {
		return nil, errors.New("team service: db is required")
	}
	return &TeamService{db: db}, nil
}

// Create registers a new team.
func (s *TeamService) Create(ctx context.Context, input CreateTeamInput) (*models.Team, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("team name is required")
	}

	team := &models.Team{Name: name}
	if err := s.db.WithContext(ctx).Create(team).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("team name already exists")
		}
		return nil, fmt.Errorf("team service: create team: %w", err)
	}

	return team, nil
}

// GetByID loads a team with its members and pending invites.
func (s *TeamService) GetByID(ctx context.Context, id string) (*models.Team, error) {
	ctx = ensureContext(ctx)

	var team models.Team
	err := s.db.WithContext(ctx).
		Preload("Members").
		Preload("Invites").
		First(&team, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("team service: load team: %w", err)
	}
	return &team, nil
}

// List returns all teams with members and invites preloaded.
func (s *TeamService) List(ctx context.Context) ([]models.Team, error) {
	ctx = ensureContext(ctx)

	var teams []models.Team
	err := s.db.WithContext(ctx).
		Preload("Members").
		Preload("Invites").
		Order("name").
		Find(&teams).Error
	if err != nil {
		return nil, fmt.Errorf("team service: list teams: %w", err)
	}
	return teams, nil
}

// MemberCount reports the team's current membership size.
func (s *TeamService) MemberCount(ctx context.Context, teamID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).
		Table("team_members").
		Where("team_id = ?", teamID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("team service: count members: %w", err)
	}
	return count, nil
}
