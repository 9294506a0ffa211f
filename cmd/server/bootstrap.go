package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gin-gonic/gin"

	"github.com/NordicFuzzCon/pretalx/internal/api"
	"github.com/NordicFuzzCon/pretalx/internal/app"
	"github.com/NordicFuzzCon/pretalx/internal/app/maintenance"
	iauth "github.com/NordicFuzzCon/pretalx/internal/auth"
	"github.com/NordicFuzzCon/pretalx/internal/database"
	"github.com/NordicFuzzCon/pretalx/internal/security"
	"github.com/NordicFuzzCon/pretalx/internal/services"
	"github.com/NordicFuzzCon/pretalx/pkg/logger"
	"github.com/NordicFuzzCon/pretalx/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, services, maintenance jobs and the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	mailer, err := buildMailer(cfg, log)
	if err != nil {
		return nil, err
	}

	sessionSvc, err := iauth.NewSessionService(stack.DB, iauth.SessionConfig{
		TTL:         cfg.Session.TTL,
		TokenLength: cfg.Session.TokenLength,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	policy := security.NewPasswordPolicy(security.WithMinLength(cfg.Security.PasswordMinLength))

	authSvc, err := services.NewAuthService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}

	teamSvc, err := services.NewTeamService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise team service: %w", err)
	}

	inviteSvc, err := services.NewInviteService(stack.DB, mailer, policy,
		services.WithInviteBaseURL(cfg.Server.BaseURL),
		services.WithInviteExpiry(cfg.Security.InviteExpiry),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise invite service: %w", err)
	}

	resetSvc, err := services.NewPasswordResetService(stack.DB, mailer, policy,
		services.WithResetBaseURL(cfg.Server.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise password reset service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(stack.DB, sessionSvc,
			maintenance.WithSessionSchedule(cfg.Maintenance.Schedule))
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(stack.DB, cfg, api.Services{
		Auth:     authSvc,
		Teams:    teamSvc,
		Invites:  inviteSvc,
		Resets:   resetSvc,
		Sessions: sessionSvc,
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func buildMailer(cfg *app.Config, log *zap.Logger) (mail.Mailer, error) {
	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	if !cfg.Email.SMTP.Enabled {
		log.Warn("smtp disabled; outgoing mail will be dropped")
	}
	return mailer, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := cfg.DatabaseOptions()
	dbCfg.Driver = strings.ToLower(strings.TrimSpace(dbCfg.Driver))
	if dbCfg.Driver == "" {
		dbCfg.Driver = "sqlite"
	}
	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
