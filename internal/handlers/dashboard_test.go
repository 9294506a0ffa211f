package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/NordicFuzzCon/pretalx/internal/database/testutil"
	"github.com/NordicFuzzCon/pretalx/internal/middleware"
	"github.com/NordicFuzzCon/pretalx/internal/models"
	"github.com/NordicFuzzCon/pretalx/internal/services"
	"github.com/NordicFuzzCon/pretalx/web"
)

func TestDashboardEventRendersWhenStoreFails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	teams, err := services.NewTeamService(db)
	require.NoError(t, err)

	// Kill the connection so listing teams fails.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	templates, err := web.Templates()
	require.NoError(t, err)

	handler := NewDashboardHandler(teams, "DemoCon")

	r := gin.New()
	r.SetHTMLTemplate(templates)
	r.GET("/orga/event/", func(c *gin.Context) {
		c.Set(middleware.CtxUserKey, &models.User{Email: "jane@example.org"})
		handler.Event(c)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/orga/event/", nil)
	r.ServeHTTP(rec, req)

	// The page still renders; the failure is logged, not shown as a crash.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "You are logged in as jane@example.org")
	require.Contains(t, rec.Body.String(), "No teams yet")
}
