package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NordicFuzzCon/pretalx/internal/middleware"
	"github.com/NordicFuzzCon/pretalx/internal/models"
	"github.com/NordicFuzzCon/pretalx/internal/services"
	appErrors "github.com/NordicFuzzCon/pretalx/pkg/errors"
	"github.com/NordicFuzzCon/pretalx/pkg/response"
)

// TeamAPIHandler serves the organizer JSON API for teams and invites.
type TeamAPIHandler struct {
	teams   *services.TeamService
	invites *services.InviteService
}

// NewTeamAPIHandler constructs a TeamAPIHandler.
func NewTeamAPIHandler(teams *services.TeamService, invites *services.InviteService) (*TeamAPIHandler, error) {
	if teams == nil {
		return nil, errors.New("team api handler: team service is required")
	}
	if invites == nil {
		return nil, errors.New("team api handler: invite service is required")
	}
	return &TeamAPIHandler{teams: teams, invites: invites}, nil
}

type createTeamRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

type createInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type teamSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MemberCount int       `json:"member_count"`
	InviteCount int       `json:"invite_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type teamDetail struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
	Members   []memberSummary `json:"members"`
	Invites   []inviteSummary `json:"invites"`
}

type memberSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type inviteSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns all teams with member and pending invite counts.
func (h *TeamAPIHandler) List(c *gin.Context) {
	teams, err := h.teams.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	summaries := make([]teamSummary, 0, len(teams))
	for _, team := range teams {
		summaries = append(summaries, teamSummary{
			ID:          team.ID,
			Name:        team.Name,
			MemberCount: len(team.Members),
			InviteCount: len(team.Invites),
			CreatedAt:   team.CreatedAt,
		})
	}

	response.Success(c, http.StatusOK, gin.H{"teams": summaries})
}

// Create registers a new team.
func (h *TeamAPIHandler) Create(c *gin.Context) {
	var req createTeamRequest
	if !bindAndValidate(c, &req) {
		return
	}

	team, err := h.teams.Create(requestContext(c), services.CreateTeamInput{Name: req.Name})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"team": teamSummary{
		ID:        team.ID,
		Name:      team.Name,
		CreatedAt: team.CreatedAt,
	}})
}

// Get returns one team with its members and pending invites.
func (h *TeamAPIHandler) Get(c *gin.Context) {
	team, err := h.teams.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	detail := teamDetail{
		ID:        team.ID,
		Name:      team.Name,
		CreatedAt: team.CreatedAt,
		Members:   make([]memberSummary, 0, len(team.Members)),
		Invites:   make([]inviteSummary, 0, len(team.Invites)),
	}
	for _, member := range team.Members {
		detail.Members = append(detail.Members, memberSummary{
			ID:    member.ID,
			Email: member.Email,
			Name:  member.Name,
		})
	}
	for _, invite := range team.Invites {
		detail.Invites = append(detail.Invites, inviteSummary{
			ID:        invite.ID,
			Email:     invite.Email,
			ExpiresAt: invite.ExpiresAt,
			CreatedAt: invite.CreatedAt,
		})
	}

	response.Success(c, http.StatusOK, gin.H{"team": detail})
}

// CreateInvite issues a new invitation into the team and emails the link.
func (h *TeamAPIHandler) CreateInvite(c *gin.Context) {
	var req createInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invite, _, err := h.invites.Create(requestContext(c), c.Param("id"), req.Email)
	if err != nil {
		response.Error(c, inviteAPIError(err))
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"invite": inviteSummary{
		ID:        invite.ID,
		Email:     invite.Email,
		ExpiresAt: invite.ExpiresAt,
		CreatedAt: invite.CreatedAt,
	}})
}

// RevokeInvite withdraws a pending invitation.
func (h *TeamAPIHandler) RevokeInvite(c *gin.Context) {
	err := h.invites.Revoke(requestContext(c), c.Param("id"), c.Param("inviteID"))
	if err != nil {
		response.Error(c, inviteAPIError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// Me returns the authenticated user's profile.
func Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": userProfile(user)})
}

func userProfile(user *models.User) gin.H {
	return gin.H{
		"id":               user.ID,
		"email":            user.Email,
		"name":             user.Name,
		"is_administrator": user.IsAdministrator,
		"last_login_at":    user.LastLoginAt,
	}
}

// inviteAPIError maps invite service sentinels onto HTTP status codes.
func inviteAPIError(err error) error {
	switch {
	case errors.Is(err, services.ErrInviteNotFound):
		return appErrors.New("INVITE_NOT_FOUND", "Invite not found", http.StatusNotFound)
	case errors.Is(err, services.ErrInviteAlreadyMember):
		return appErrors.NewBadRequest("user is already a member of this team")
	case errors.Is(err, services.ErrInviteAlreadyPending):
		return appErrors.NewBadRequest("an invite for this email is already pending")
	default:
		return err
	}
}
