package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/NordicFuzzCon/pretalx/internal/app"
	iauth "github.com/NordicFuzzCon/pretalx/internal/auth"
	"github.com/NordicFuzzCon/pretalx/internal/database/testutil"
	"github.com/NordicFuzzCon/pretalx/internal/models"
	"github.com/NordicFuzzCon/pretalx/internal/security"
	"github.com/NordicFuzzCon/pretalx/internal/services"
	"github.com/NordicFuzzCon/pretalx/pkg/crypto"
	"github.com/NordicFuzzCon/pretalx/pkg/mail"
)

// testStack wires a complete router against an in-memory database with a
// recording mailer so tests can inspect outgoing messages.
type testStack struct {
	Router *gin.Engine
	DB     *gorm.DB
	Mails  *mail.Recorder
	Svcs   Services
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	mails := mail.NewRecorder()
	policy := security.NewPasswordPolicy()

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{})
	require.NoError(t, err)

	authSvc, err := services.NewAuthService(db)
	require.NoError(t, err)
	teamSvc, err := services.NewTeamService(db)
	require.NoError(t, err)
	inviteSvc, err := services.NewInviteService(db, mails, policy)
	require.NoError(t, err)
	resetSvc, err := services.NewPasswordResetService(db, mails, policy)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Event.Name = "NordicFuzzCon"
	cfg.Session.TTL = iauth.DefaultSessionTTL
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"

	svcs := Services{
		Auth:     authSvc,
		Teams:    teamSvc,
		Invites:  inviteSvc,
		Resets:   resetSvc,
		Sessions: sessions,
	}

	router, err := NewRouter(db, cfg, svcs)
	require.NoError(t, err)

	return &testStack{Router: router, DB: db, Mails: mails, Svcs: svcs}
}

func (s *testStack) createUser(t *testing.T, email, password string) *models.User {
	t.Helper()

	hashed, err := crypto.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{Email: email, Password: hashed}
	require.NoError(t, s.DB.Create(user).Error)
	return user
}

func (s *testStack) createTeam(t *testing.T, name string, members ...*models.User) *models.Team {
	t.Helper()

	team := &models.Team{Name: name}
	require.NoError(t, s.DB.Create(team).Error)
	for _, member := range members {
		require.NoError(t, s.DB.Model(team).Association("Members").Append(member))
	}
	return team
}

func (s *testStack) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func (s *testStack) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

// login posts the credentials and returns the issued session cookie.
func (s *testStack) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()

	rec := s.postForm("/orga/login/", url.Values{
		"email":    {email},
		"password": {password},
	})
	require.Equal(t, http.StatusFound, rec.Code)

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie, "login should set a session cookie")
	return cookie
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == iauth.CookieName && cookie.Value != "" {
			return cookie
		}
	}
	return nil
}

func (s *testStack) countUsers(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB.Model(&models.User{}).Count(&n).Error)
	return n
}

func (s *testStack) countMembers(t *testing.T, teamID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB.Table("team_members").Where("team_id = ?", teamID).Count(&n).Error)
	return n
}

func (s *testStack) countInvites(t *testing.T, teamID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB.Model(&models.TeamInvite{}).Where("team_id = ?", teamID).Count(&n).Error)
	return n
}

func (s *testStack) outstandingResetToken(t *testing.T, email string) *string {
	t.Helper()
	token, err := s.Svcs.Resets.OutstandingToken(context.Background(), email)
	require.NoError(t, err)
	return token
}
