package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/NordicFuzzCon/pretalx/internal/app"
	iauth "github.com/NordicFuzzCon/pretalx/internal/auth"
	"github.com/NordicFuzzCon/pretalx/internal/handlers"
	"github.com/NordicFuzzCon/pretalx/internal/middleware"
	"github.com/NordicFuzzCon/pretalx/internal/services"
	"github.com/NordicFuzzCon/pretalx/web"
)

// Services bundles the domain services the router depends on.
type Services struct {
	Auth     *services.AuthService
	Teams    *services.TeamService
	Invites  *services.InviteService
	Resets   *services.PasswordResetService
	Sessions *iauth.SessionService
}

// NewRouter builds the Gin engine, wires middleware and registers the
// organizer pages and the JSON API.
func NewRouter(db *gorm.DB, cfg *app.Config, svcs Services) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svcs.Auth == nil || svcs.Teams == nil || svcs.Invites == nil || svcs.Resets == nil || svcs.Sessions == nil {
		return nil, fmt.Errorf("all services must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	templates, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	r.SetHTMLTemplate(templates)

	r.GET("/health", handlers.Health(db))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	registerOrgaRoutes(r, cfg, svcs)
	if err := registerAPIRoutes(r, svcs); err != nil {
		return nil, err
	}

	return r, nil
}

func registerOrgaRoutes(r *gin.Engine, cfg *app.Config, svcs Services) {
	cookieTTL := cfg.Session.TTL

	authHandler := handlers.NewAuthHandler(svcs.Auth, svcs.Sessions, cookieTTL)
	dashboardHandler := handlers.NewDashboardHandler(svcs.Teams, cfg.Event.Name)
	invitationHandler := handlers.NewInvitationHandler(svcs.Invites, svcs.Sessions, cookieTTL)
	resetHandler := handlers.NewResetHandler(svcs.Resets)

	orga := r.Group("/orga")
	{
		orga.GET("/login/", authHandler.LoginForm)
		orga.POST("/login/", authHandler.Login)
		orga.GET("/logout/", authHandler.Logout)

		orga.GET("/invitation/:token", invitationHandler.View)
		orga.POST("/invitation/:token", invitationHandler.Accept)

		orga.GET("/reset/", resetHandler.RequestForm)
		orga.POST("/reset/", resetHandler.Request)
		orga.GET("/reset/:token", resetHandler.ConfirmForm)
		orga.POST("/reset/:token", resetHandler.Confirm)
	}

	protected := r.Group("/orga")
	protected.Use(middleware.RequireLogin(svcs.Sessions))
	{
		protected.GET("/event/", dashboardHandler.Event)
	}
}

func registerAPIRoutes(r *gin.Engine, svcs Services) error {
	teamAPI, err := handlers.NewTeamAPIHandler(svcs.Teams, svcs.Invites)
	if err != nil {
		return err
	}

	api := r.Group("/api")
	api.Use(middleware.RequireAPILogin(svcs.Sessions))

	api.GET("/me", handlers.Me)

	teams := api.Group("/teams")
	{
		teams.GET("", teamAPI.List)
		teams.POST("", teamAPI.Create)
		teams.GET("/:id", teamAPI.Get)
		teams.POST("/:id/invites", teamAPI.CreateInvite)
		teams.DELETE("/:id/invites/:inviteID", teamAPI.RevokeInvite)
	}

	return nil
}
