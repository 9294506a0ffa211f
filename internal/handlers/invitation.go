package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/NordicFuzzCon/pretalx/internal/auth"
	"github.com/NordicFuzzCon/pretalx/internal/models"
	"github.com/NordicFuzzCon/pretalx/internal/services"
	apperrors "github.com/NordicFuzzCon/pretalx/pkg/errors"
)

// InvitationHandler serves the public invitation acceptance pages.
type InvitationHandler struct {
	invites   *services.InviteService
	sessions  *iauth.SessionService
	cookieTTL time.Duration
}

// NewInvitationHandler constructs the invitation handler.
func NewInvitationHandler(invites *services.InviteService, sessions *iauth.SessionService, cookieTTL time.Duration) *InvitationHandler {
	if cookieTTL <= 0 {
		cookieTTL = iauth.DefaultSessionTTL
	}
	return &InvitationHandler{invites: invites, sessions: sessions, cookieTTL: cookieTTL}
}

// GET /orga/invitation/:token
func (h *InvitationHandler) View(c *gin.Context) {
	token := c.Param("token")

	invite, err := h.invites.Get(requestContext(c), token)
	if err != nil {
		renderNotFound(c)
		return
	}

	h.renderForm(c, token, invite, invite.Email, "")
}

// POST /orga/invitation/:token
func (h *InvitationHandler) Accept(c *gin.Context) {
	token := c.Param("token")

	input := services.AcceptInviteInput{
		Email:          c.PostForm("register_email"),
		Password:       c.PostForm("register_password"),
		PasswordRepeat: c.PostForm("register_password_repeat"),
	}

	user, err := h.invites.Accept(requestContext(c), token, input)
	if err != nil {
		if errors.Is(err, services.ErrInviteNotFound) || errors.Is(err, services.ErrInviteExpired) {
			renderNotFound(c)
			return
		}

		// Validation failed; the invite is still pending, so re-render the form.
		invite, getErr := h.invites.Get(requestContext(c), token)
		if getErr != nil {
			renderNotFound(c)
			return
		}
		h.renderForm(c, token, invite, input.Email, validationMessage(err))
		return
	}

	// Registration doubles as login for the new account.
	sessionToken, _, err := h.sessions.Create(requestContext(c), user.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err == nil {
		c.SetCookie(iauth.CookieName, sessionToken, int(h.cookieTTL.Seconds()), "/", "", false, true)
	}

	c.Redirect(http.StatusFound, DashboardPath)
}

func (h *InvitationHandler) renderForm(c *gin.Context, token string, invite *models.TeamInvite, email, errMessage string) {
	teamName := ""
	if invite.Team != nil {
		teamName = invite.Team.Name
	}

	c.HTML(http.StatusOK, "invitation.html", gin.H{
		"Token":       token,
		"TeamName":    teamName,
		"InviteEmail": invite.Email,
		"Email":       strings.TrimSpace(email),
		"Error":       errMessage,
	})
}

func renderNotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "not_found.html", nil)
}

// validationMessage maps service validation failures to form error text.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrPasswordMismatch):
		return "The two password fields do not match."
	case errors.Is(err, services.ErrEmailRegistered):
		return "An account with this email address already exists."
	default:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return appErr.Message
		}
		return "Registration failed. Please check your input and try again."
	}
}
