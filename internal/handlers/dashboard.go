package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NordicFuzzCon/pretalx/internal/middleware"
	"github.com/NordicFuzzCon/pretalx/internal/services"
	"github.com/NordicFuzzCon/pretalx/pkg/logger"
)

// DashboardHandler renders the authenticated organizer landing page.
type DashboardHandler struct {
	teams     *services.TeamService
	eventName string
}

// NewDashboardHandler constructs the dashboard handler.
func NewDashboardHandler(teams *services.TeamService, eventName string) *DashboardHandler {
	if eventName == "" {
		eventName = "NordicFuzzCon"
	}
	return &DashboardHandler{teams: teams, eventName: eventName}
}

// GET /orga/event/
func (h *DashboardHandler) Event(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Redirect(http.StatusFound, middleware.LoginPath)
		return
	}

	teams, err := h.teams.List(requestContext(c))
	if err != nil {
		logger.WithModule("dashboard").Error("list teams failed", zap.Error(err))
		teams = nil
	}

	c.HTML(http.StatusOK, "event.html", gin.H{
		"EventName": h.eventName,
		"User":      user,
		"Teams":     teams,
	})
}
