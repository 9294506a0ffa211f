package middleware

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	iauth "github.com/NordicFuzzCon/pretalx/internal/auth"
	"github.com/NordicFuzzCon/pretalx/internal/models"
	"github.com/NordicFuzzCon/pretalx/pkg/errors"
	"github.com/NordicFuzzCon/pretalx/pkg/response"
)

const (
	// CtxUserKey holds the authenticated *models.User.
	CtxUserKey = "currentUser"
	// CtxSessionTokenKey holds the raw session cookie token.
	CtxSessionTokenKey = "sessionToken"

	// LoginPath is where unauthenticated organizer requests are sent.
	LoginPath = "/orga/login/"
)

// RequireLogin resolves the session cookie and redirects organizer pages
// to the login form when it is missing or invalid. The original path and
// query travel along in the login URL so the user returns to their
// destination after authenticating.
func RequireLogin(sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(iauth.CookieName)
		if err == nil && token != "" {
			user, _, resolveErr := sessions.Resolve(c.Request.Context(), token)
			if resolveErr == nil {
				c.Set(CtxUserKey, user)
				c.Set(CtxSessionTokenKey, token)
				c.Next()
				return
			}
		}

		c.Redirect(http.StatusFound, LoginRedirectURL(c.Request.URL))
		c.Abort()
	}
}

// RequireAPILogin is the JSON counterpart used under /api: no redirect,
// just a 401 envelope.
func RequireAPILogin(sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(iauth.CookieName)
		if err != nil || token == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, _, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxUserKey, user)
		c.Set(CtxSessionTokenKey, token)
		c.Next()
	}
}

// LoginRedirectURL builds the login URL carrying the original destination:
// the path travels in "next" and the original query parameters ride along
// unchanged, so only their semantic set matters, not their order. When the
// destination's own query already contains a "next" key, the whole
// path?query is folded into the "next" value instead, since riding along
// would collide with the redirect's key and lose the parameter.
func LoginRedirectURL(original *url.URL) string {
	values := url.Values{}

	query := original.Query()
	if _, collides := query["next"]; collides {
		dest := original.Path
		if original.RawQuery != "" {
			dest += "?" + original.RawQuery
		}
		values.Set("next", dest)
		return LoginPath + "?" + values.Encode()
	}

	values.Set("next", original.Path)
	for key, vals := range query {
		for _, v := range vals {
			values.Add(key, v)
		}
	}
	return LoginPath + "?" + values.Encode()
}

// CurrentUser returns the authenticated user stored by RequireLogin.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
