package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// UserHandlers provides HTTP handlers for user presence.
type UserHandlers struct {
	store store.Store
	hub   ChatHub
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.Store, hub ChatHub, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// ListUsers returns every user with their presence status.
// GET /api/users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]proto.UserStatus, 0, len(users))
	for _, u := range users {
		status := u.Status
		if status == "" {
			status = store.StatusOffline
		}
		response = append(response, proto.UserStatus{Username: u.Username, Status: string(status)})
	}
	c.JSON(http.StatusOK, response)
}

// Stats reports live connection counts from the hub.
// GET /api/stats
func (h *UserHandlers) Stats(c *gin.Context) {
	stats, err := h.hub.Stats(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read hub stats")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "hub unavailable"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
