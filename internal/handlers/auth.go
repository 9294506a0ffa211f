package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/NordicFuzzCon/pretalx/internal/auth"
	"github.com/NordicFuzzCon/pretalx/internal/middleware"
	"github.com/NordicFuzzCon/pretalx/internal/services"
	apperrors "github.com/NordicFuzzCon/pretalx/pkg/errors"
)

// DashboardPath is the landing page after a successful login.
const DashboardPath = "/orga/event/"

// AuthHandler serves the organizer login/logout pages.
type AuthHandler struct {
	auth      *services.AuthService
	sessions  *iauth.SessionService
	cookieTTL time.Duration
}

// NewAuthHandler constructs the login/logout handler.
func NewAuthHandler(auth *services.AuthService, sessions *iauth.SessionService, cookieTTL time.Duration) *AuthHandler {
	if cookieTTL <= 0 {
		cookieTTL = iauth.DefaultSessionTTL
	}
	return &AuthHandler{auth: auth, sessions: sessions, cookieTTL: cookieTTL}
}

// GET /orga/login/
func (h *AuthHandler) LoginForm(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{
		"Email": "",
		"Next":  destinationFromQuery(c.Request.URL.Query()),
	})
}

// POST /orga/login/
func (h *AuthHandler) Login(c *gin.Context) {
	email := c.PostForm("email")
	if email == "" {
		email = c.PostForm("login_email")
	}
	password := c.PostForm("password")
	if password == "" {
		password = c.PostForm("login_password")
	}

	user, err := h.auth.Login(requestContext(c), email, password)
	if err != nil {
		message := apperrors.ErrInvalidCredentials.Message
		if !errors.Is(err, apperrors.ErrInvalidCredentials) {
			message = apperrors.ErrInternalServer.Message
		}
		c.HTML(http.StatusOK, "login.html", gin.H{
			"Error": message,
			"Email": strings.TrimSpace(email),
			"Next":  c.PostForm("next"),
		})
		return
	}

	token, _, err := h.sessions.Create(requestContext(c), user.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		c.HTML(http.StatusOK, "login.html", gin.H{
			"Error": apperrors.ErrInternalServer.Message,
			"Email": strings.TrimSpace(email),
			"Next":  c.PostForm("next"),
		})
		return
	}

	h.setSessionCookie(c, token, int(h.cookieTTL.Seconds()))
	c.Redirect(http.StatusFound, safeNext(c.PostForm("next")))
}

// GET /orga/logout/
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(iauth.CookieName); err == nil && token != "" {
		_ = h.sessions.Revoke(requestContext(c), token)
	}
	h.setSessionCookie(c, "", -1)
	c.Redirect(http.StatusFound, middleware.LoginPath)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetCookie(iauth.CookieName, token, maxAge, "/", "", false, true)
}

// destinationFromQuery rebuilds the original destination from a login URL
// query: the path travels in "next", every other parameter belongs to the
// original query string.
func destinationFromQuery(query url.Values) string {
	next := query.Get("next")
	if next == "" {
		return ""
	}

	rest := url.Values{}
	for key, vals := range query {
		if key == "next" {
			continue
		}
		for _, v := range vals {
			rest.Add(key, v)
		}
	}
	if len(rest) == 0 {
		return next
	}
	return next + "?" + rest.Encode()
}

// safeNext only honours relative destinations; anything else lands on the
// dashboard so the login form cannot be used as an open redirect. Browsers
// normalise backslashes to slashes, so "/\" is as external as "//".
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return DashboardPath
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return DashboardPath
	}
	return next
}
