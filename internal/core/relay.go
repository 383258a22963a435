package core

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

func noticeEvent(roomID, text string) *Event {
	return &Event{Kind: EventNotice, RoomID: roomID, User: AdminUser, Text: text}
}

func (h *Hub) subscribe(s *Session, roomID string) {
	g, ok := h.groups[roomID]
	if !ok {
		g = NewGroup(roomID)
		h.groups[roomID] = g
	}
	g.Add(s)
	s.Subscriptions[roomID] = struct{}{}
}

func (h *Hub) unsubscribe(s *Session, roomID string) {
	delete(s.Subscriptions, roomID)
	if s.CurrentRoom == roomID {
		s.CurrentRoom = ""
	}
	g, ok := h.groups[roomID]
	if !ok {
		return
	}
	g.Remove(s)
	if g.Empty() {
		delete(h.groups, roomID)
	}
}

func (h *Hub) joinRoom(s *Session, roomID string) {
	ctx, cancel := h.storeCtx()
	defer cancel()

	room, ok := h.loadRoom(ctx, s, roomID)
	if !ok {
		return
	}
	if !room.HasMember(s.Username) {
		h.log.Debug().Str("room_id", roomID).Str("user", s.Username).Msg("join by non-member ignored")
		return
	}

	if prev := s.CurrentRoom; prev != "" && prev != roomID {
		h.unsubscribe(s, prev)
		if g, ok := h.groups[prev]; ok {
			g.Broadcast(noticeEvent(prev, s.Username+" has left the room."))
		}
	}

	h.subscribe(s, roomID)
	s.CurrentRoom = roomID

	deliver(s.Client, noticeEvent(roomID, s.Username+", welcome to room "+room.Name+"."))
	h.groups[roomID].BroadcastExcept(noticeEvent(roomID, s.Username+" has joined the room."), s)

	history, err := h.store.ListMessages(ctx, roomID, h.opts.HistoryLimit)
	if err != nil {
		h.internalError(s, "history", err)
		return
	}
	messages := make([]Message, 0, len(history))
	for _, m := range history {
		messages = append(messages, messageFromStore(m))
	}
	deliver(s.Client, &Event{Kind: EventHistory, RoomID: roomID, RoomName: room.Name, Messages: messages})
}

func (h *Hub) chat(s *Session, roomID, text string) {
	if roomID == "" {
		roomID = s.CurrentRoom
	}
	if roomID == "" || !s.Subscribed(roomID) {
		h.log.Debug().Str("room_id", roomID).Str("user", s.Username).Msg("message to unsubscribed room ignored")
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		deliver(s.Client, errorEvent(ErrCodeValidation, "message text is required"))
		return
	}
	if utf8.RuneCountInString(text) > h.opts.MaxMessageChars {
		deliver(s.Client, errorEvent(ErrCodeValidation, "message is too long"))
		return
	}
	if allowed, _ := h.throttle.Allow(h.ctx, s.Client.ID); !allowed {
		deliver(s.Client, errorEvent(ErrCodeRateLimited, "too many messages, slow down"))
		return
	}

	ctx, cancel := h.storeCtx()
	defer cancel()

	msg := &store.Message{
		RoomID:    roomID,
		Username:  s.Username,
		Body:      text,
		CreatedAt: h.now().UTC(),
	}
	if err := h.store.SaveMessage(ctx, msg); err != nil {
		h.internalError(s, "save_message", err)
		return
	}

	h.groups[roomID].Broadcast(&Event{Kind: EventRoomMessage, RoomID: roomID, Message: messageFromStore(msg)})
}

// loadRoom fetches a room, treating a missing room as a silent no-op.
func (h *Hub) loadRoom(ctx context.Context, s *Session, roomID string) (*store.Room, bool) {
	if roomID == "" {
		deliver(s.Client, errorEvent(ErrCodeBadRequest, "room_id is required"))
		return nil, false
	}
	room, err := h.store.GetRoom(ctx, roomID)
	if err != nil {
		if isNotFound(err) {
			h.log.Debug().Str("room_id", roomID).Str("user", s.Username).Msg("room not found")
			return nil, false
		}
		h.internalError(s, "get_room", err)
		return nil, false
	}
	return room, true
}
