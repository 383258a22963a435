package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
)

// APIHandlers provides HTTP handlers for account endpoints.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		log:         logger,
	}
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Register handles user registration.
// POST /api/register
func (h *APIHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	grant, err := h.authService.Register(c.Request.Context(), auth.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Source:   sourceIP(c.Request),
	})
	if err != nil {
		status, msg := registerErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("username", req.Username).Msg("failed to register user")
		}
		c.JSON(status, ErrorResponse{Error: msg})
		return
	}

	h.log.Info().Str("username", grant.Username).Msg("user registered successfully")
	c.JSON(http.StatusCreated, AuthResponse{Username: grant.Username, Token: grant.Token})
}

// Login handles user login.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	grant, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: loginErrorMessage})
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("username", grant.Username).Msg("user logged in successfully")
	c.JSON(http.StatusOK, AuthResponse{Username: grant.Username, Token: grant.Token})
}

const loginErrorMessage = "Invalid username or password"

// registerErrorStatus maps registration failures to an HTTP status and a
// client-facing message.
func registerErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many registration attempts, try again later"
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict, "Username already exists"
	case errors.Is(err, auth.ErrInvalidUsername),
		errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
