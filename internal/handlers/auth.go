package handlers

import (
	"errors"
	"net/http"

	"greenhouse_monitor/internal/models"
	"greenhouse_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgEmailInUse         = "Email already in use"
	msgResetSent          = "If the email is registered, a reset token has been sent"
	msgPasswordReset      = "Password has been reset"
	errAuthInternal       = "authentication service unavailable"
)

type loginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type forgotInput struct {
	Email string `json:"email" binding:"required,email"`
}

type resetInput struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// @Summary  Sign in
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body  body      models.LoginRequest  true  "Credentials"
// @Success  200   {object}  models.AuthResponse
// @Failure  400   {object}  map[string]string
// @Failure  401   {object}  map[string]string
// @Router   /api/auth/login [post]
func (h *Handler) login(c *gin.Context) {
	var input loginInput
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	resp, err := h.services.SignIn(c.Request.Context(), input.Email, input.Password)
	switch {
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrInvalidPassword):
		if h.log != nil {
			h.log.Infow("auth_sign_in_failed", "email", input.Email, "err", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgInvalidCredentials})
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errAuthInternal, "auth_sign_in_error", err)
	default:
		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  Create an account
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body  body      models.RegisterRequest  true  "Account"
// @Success  200   {object}  models.AuthResponse
// @Failure  400   {object}  map[string]string
// @Router   /api/auth/register [post]
func (h *Handler) register(c *gin.Context) {
	var input registerInput
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	resp, err := h.services.SignUp(c.Request.Context(), input.Username, input.Email, input.Password)
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgEmailInUse})
	case errors.Is(err, service.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errAuthInternal, "auth_sign_up_error", err)
	default:
		c.JSON(http.StatusOK, resp)
	}
}

// @Summary      Request a password reset
// @Description  Always answers 200 so account existence is not revealed. The token is written to the server log.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.ForgotPasswordRequest  true  "Email"
// @Success      200   {object}  models.MessageResponse
// @Router       /api/auth/forgot-password [post]
func (h *Handler) forgotPassword(c *gin.Context) {
	var input forgotInput
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	token, err := h.services.RequestReset(c.Request.Context(), input.Email)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errAuthInternal, "auth_reset_request_error", err)
		return
	}
	if token != "" && h.log != nil {
		h.log.Infow("auth_reset_token_issued", "email", input.Email, "token", token)
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: msgResetSent})
}

// @Summary  Reset a password with a reset token
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body  body      models.ResetPasswordRequest  true  "Token and new password"
// @Success  200   {object}  models.MessageResponse
// @Failure  400   {object}  map[string]string
// @Router   /api/auth/reset-password [post]
func (h *Handler) resetPassword(c *gin.Context) {
	var input resetInput
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	err := h.services.Authorization.ResetPassword(c.Request.Context(), input.Token, input.NewPassword)
	switch {
	case errors.Is(err, service.ErrInvalidResetToken), errors.Is(err, service.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errAuthInternal, "auth_reset_error", err)
	default:
		c.JSON(http.StatusOK, models.MessageResponse{Message: msgPasswordReset})
	}
}
