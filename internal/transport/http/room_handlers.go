package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// RoomHandlers provides read-only HTTP handlers for rooms.
type RoomHandlers struct {
	store        store.Store
	historyLimit int
	log          *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, historyLimit int, logger *zerolog.Logger) *RoomHandlers {
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &RoomHandlers{
		store:        st,
		historyLimit: historyLimit,
		log:          logger,
	}
}

// ListRooms returns rooms visible to the caller.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	username, ok := usernameFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	views, err := core.VisibleRooms(c.Request.Context(), h.store, username)
	if err != nil {
		h.log.Error().Err(err).Str("user", username).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Debug().Str("user", username).Int("room_count", len(views)).Msg("rooms listed successfully")
	c.JSON(http.StatusOK, roomInfos(views))
}

// ListMessages returns a room's recent history to its members.
// GET /api/rooms/:id/messages?limit=N
func (h *RoomHandlers) ListMessages(c *gin.Context) {
	username, ok := usernameFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, h.historyLimit)
	}

	roomID := c.Param("id")
	room, err := h.store.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !room.HasMember(username) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this room"})
		return
	}

	msgs, err := h.store.ListMessages(c.Request.Context(), roomID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	history := make([]core.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, core.Message{ID: m.ID, RoomID: m.RoomID, From: m.Username, Text: m.Body, CreatedAt: m.CreatedAt})
	}
	c.JSON(http.StatusOK, eventMessages(history))
}
