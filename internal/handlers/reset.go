package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NordicFuzzCon/pretalx/internal/middleware"
	"github.com/NordicFuzzCon/pretalx/internal/services"
	"github.com/NordicFuzzCon/pretalx/pkg/logger"
)

const resetRequestedMessage = "If an account with this email address exists, you will receive a password recovery email shortly."

// ResetHandler serves the password recovery pages.
type ResetHandler struct {
	resets *services.PasswordResetService
}

// NewResetHandler constructs the password reset handler.
func NewResetHandler(resets *services.PasswordResetService) *ResetHandler {
	return &ResetHandler{resets: resets}
}

// GET /orga/reset/
func (h *ResetHandler) RequestForm(c *gin.Context) {
	c.HTML(http.StatusOK, "reset_request.html", gin.H{})
}

// POST /orga/reset/
// Always answers 200 with the same message so the response cannot be used
// to probe which email addresses have accounts.
func (h *ResetHandler) Request(c *gin.Context) {
	email := c.PostForm("login_email")

	if err := h.resets.Request(requestContext(c), email); err != nil {
		logger.WithModule("reset").Error("reset request failed", zap.Error(err))
	}

	c.HTML(http.StatusOK, "reset_request.html", gin.H{
		"Message": resetRequestedMessage,
	})
}

// GET /orga/reset/:token
func (h *ResetHandler) ConfirmForm(c *gin.Context) {
	c.HTML(http.StatusOK, "reset_confirm.html", gin.H{
		"Token": c.Param("token"),
	})
}

// POST /orga/reset/:token
func (h *ResetHandler) Confirm(c *gin.Context) {
	token := c.Param("token")

	err := h.resets.Confirm(requestContext(c), token, c.PostForm("password"), c.PostForm("password_repeat"))
	if err != nil {
		c.HTML(http.StatusOK, "reset_confirm.html", gin.H{
			"Token": token,
			"Error": resetErrorMessage(err),
		})
		return
	}

	c.Redirect(http.StatusFound, middleware.LoginPath)
}

func resetErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrResetTokenInvalid):
		return "This password recovery link is invalid or has already been used. Please request a new one."
	case errors.Is(err, services.ErrPasswordMismatch):
		return "The two password fields do not match."
	default:
		return validationMessage(err)
	}
}
