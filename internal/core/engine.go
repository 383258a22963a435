package core

import (
	"context"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/utils"
)

const maxRoomNameChars = 64

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func validateRoomName(raw string) (string, *CoreError) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	if n == 0 || n > maxRoomNameChars {
		return "", coreError(ErrCodeValidation, "room name must be 1-64 characters")
	}
	if strings.EqualFold(name, store.HomeRoomName) {
		return "", coreError(ErrCodeValidation, "room name is reserved")
	}
	return name, nil
}

func (h *Hub) createRoom(s *Session, rawName string, rawInvitees []string) {
	name, verr := validateRoomName(rawName)
	if verr != nil {
		deliver(s.Client, &Event{Kind: EventError, Error: verr})
		return
	}

	ctx, cancel := h.storeCtx()
	defer cancel()

	now := h.now().UTC()
	room := &store.Room{
		ID:        utils.NewRoomID(),
		Name:      name,
		Creator:   s.Username,
		Members:   []string{s.Username},
		CreatedAt: now,
	}
	for _, raw := range rawInvitees {
		invitee := strings.TrimSpace(raw)
		if invitee == "" || invitee == s.Username || room.IsInvited(invitee) {
			continue
		}
		if _, err := h.store.GetUserByUsername(ctx, invitee); err != nil {
			if !isNotFound(err) {
				h.internalError(s, "create_room", err)
				return
			}
			h.log.Debug().Str("user", s.Username).Str("invitee", invitee).Msg("unknown invitee dropped")
			continue
		}
		room.AddInvite(store.Invite{RoomID: room.ID, Username: invitee, From: s.Username, CreatedAt: now})
	}

	if err := h.store.CreateRoom(ctx, room); err != nil {
		h.internalError(s, "create_room", err)
		return
	}
	h.log.Info().Str("op", "create").Str("room_id", room.ID).Str("user", s.Username).
		Strs("invitees", room.InvitedUsernames()).Msg("room created")

	deliver(s.Client, &Event{Kind: EventRoomCreated, RoomID: room.ID, RoomName: room.Name})
	h.pushRooms(s.Username)
	for _, invitee := range room.InvitedUsernames() {
		h.notifyInvite(room, invitee, s.Username)
	}
}

func (h *Hub) invite(s *Session, roomID, rawInvitee string) {
	invitee := strings.TrimSpace(rawInvitee)
	if roomID == store.HomeRoomID || invitee == "" {
		return
	}

	ctx, cancel := h.storeCtx()
	defer cancel()

	room, ok := h.loadRoom(ctx, s, roomID)
	if !ok {
		return
	}
	if !room.HasMember(s.Username) {
		h.log.Debug().Str("room_id", roomID).Str("user", s.Username).Msg("invite by non-member ignored")
		return
	}
	if room.HasMember(invitee) || room.IsInvited(invitee) {
		return
	}
	if _, err := h.store.GetUserByUsername(ctx, invitee); err != nil {
		if !isNotFound(err) {
			h.internalError(s, "invite", err)
		}
		return
	}

	inv := store.Invite{RoomID: roomID, Username: invitee, From: s.Username, CreatedAt: h.now().UTC()}
	if err := h.store.AddInvite(ctx, inv); err != nil {
		h.internalError(s, "invite", err)
		return
	}
	h.log.Info().Str("op", "invite").Str("room_id", roomID).Str("user", s.Username).Str("invitee", invitee).Msg("user invited")

	h.notifyInvite(room, invitee, s.Username)
}

func (h *Hub) notifyInvite(room *store.Room, invitee, from string) {
	h.sendToUser(invitee, &Event{Kind: EventRoomInvite, RoomID: room.ID, RoomName: room.Name, User: from})
	h.pushRooms(invitee)
}

func (h *Hub) acceptInvite(s *Session, roomID string) {
	ctx, cancel := h.storeCtx()
	defer cancel()

	room, ok := h.loadRoom(ctx, s, roomID)
	if !ok {
		return
	}
	if !room.IsInvited(s.Username) {
		return
	}
	if err := h.store.AddMember(ctx, roomID, s.Username); err != nil {
		h.internalError(s, "accept_invite", err)
		return
	}
	room.AddMember(s.Username)
	h.log.Info().Str("op", "accept").Str("room_id", roomID).Str("user", s.Username).Msg("invite accepted")

	h.subscribe(s, roomID)

	ev := &Event{Kind: EventRoomJoined, RoomID: roomID, RoomName: room.Name, User: s.Username}
	for _, member := range room.Members {
		h.sendToUser(member, ev)
	}
	for _, member := range room.Members {
		h.pushRooms(member)
	}
}

func (h *Hub) declineInvite(s *Session, roomID string) {
	ctx, cancel := h.storeCtx()
	defer cancel()

	room, ok := h.loadRoom(ctx, s, roomID)
	if !ok {
		return
	}
	if !room.IsInvited(s.Username) {
		return
	}
	if err := h.store.RemoveInvite(ctx, roomID, s.Username); err != nil {
		h.internalError(s, "decline_invite", err)
		return
	}
	h.log.Info().Str("op", "decline").Str("room_id", roomID).Str("user", s.Username).Msg("invite declined")

	h.pushRooms(s.Username)
}

func (h *Hub) leaveRoom(s *Session, roomID string) {
	if roomID == store.HomeRoomID {
		return
	}

	ctx, cancel := h.storeCtx()
	defer cancel()

	room, ok := h.loadRoom(ctx, s, roomID)
	if !ok {
		return
	}
	if !room.HasMember(s.Username) {
		return
	}
	if err := h.store.RemoveMember(ctx, roomID, s.Username); err != nil {
		h.internalError(s, "leave_room", err)
		return
	}
	room.RemoveMember(s.Username)

	for _, conn := range h.sessions.connsOf(s.Username) {
		h.unsubscribe(conn, roomID)
	}

	left := &Event{Kind: EventRoomLeft, RoomID: roomID, RoomName: room.Name, User: s.Username}
	h.sendToUser(s.Username, left)
	for _, member := range room.Members {
		h.sendToUser(member, left)
	}

	if len(room.Members) == 0 {
		if err := h.store.DeleteRoom(ctx, roomID); err != nil {
			h.internalError(s, "delete_room", err)
			return
		}
		delete(h.groups, roomID)
		h.log.Info().Str("op", "delete").Str("room_id", roomID).Str("user", s.Username).Msg("room deleted")
		for _, invitee := range room.InvitedUsernames() {
			h.pushRooms(invitee)
		}
	} else {
		h.log.Info().Str("op", "leave").Str("room_id", roomID).Str("user", s.Username).Msg("member left")
		for _, member := range room.Members {
			h.pushRooms(member)
		}
	}
	h.pushRooms(s.Username)
}

func (h *Hub) renameRoom(s *Session, roomID, rawName string) {
	if roomID == store.HomeRoomID {
		return
	}

	ctx, cancel := h.storeCtx()
	defer cancel()

	room, ok := h.loadRoom(ctx, s, roomID)
	if !ok {
		return
	}
	if room.Creator != s.Username {
		h.log.Debug().Str("room_id", roomID).Str("user", s.Username).Msg("rename by non-creator ignored")
		return
	}
	name, verr := validateRoomName(rawName)
	if verr != nil {
		deliver(s.Client, &Event{Kind: EventError, Error: verr})
		return
	}
	if err := h.store.RenameRoom(ctx, roomID, name); err != nil {
		h.internalError(s, "rename_room", err)
		return
	}
	h.log.Info().Str("op", "rename").Str("room_id", roomID).Str("user", s.Username).Str("name", name).Msg("room renamed")

	ev := &Event{Kind: EventRoomRenamed, RoomID: roomID, RoomName: name}
	for _, member := range room.Members {
		h.sendToUser(member, ev)
	}
}

// VisibleRooms lists rooms where username is a member or pending invitee,
// Home first and the rest in creation order.
func VisibleRooms(ctx context.Context, rooms store.RoomStore, username string) ([]RoomView, error) {
	list, err := rooms.ListRoomsForUser(ctx, username)
	if err != nil {
		return nil, err
	}
	views := make([]RoomView, 0, len(list))
	for _, r := range list {
		view := RoomView{ID: r.ID, Name: r.Name, Creator: r.Creator}
		if inv, ok := r.InviteFor(username); ok && !r.HasMember(username) {
			view.Pending = true
			view.InvitedBy = inv.From
		}
		views = append(views, view)
	}
	slices.SortStableFunc(views, func(a, b RoomView) int {
		switch {
		case a.ID == store.HomeRoomID && b.ID != store.HomeRoomID:
			return -1
		case b.ID == store.HomeRoomID && a.ID != store.HomeRoomID:
			return 1
		}
		return 0
	})
	return views, nil
}

func (h *Hub) visibleRooms(username string) ([]RoomView, error) {
	ctx, cancel := h.storeCtx()
	defer cancel()
	return VisibleRooms(ctx, h.store, username)
}

func (h *Hub) sendRooms(s *Session) {
	views, err := h.visibleRooms(s.Username)
	if err != nil {
		h.internalError(s, "list_rooms", err)
		return
	}
	deliver(s.Client, &Event{Kind: EventRoomsUpdate, Rooms: views})
}

// pushRooms sends a fresh rooms_update to every connection of username.
func (h *Hub) pushRooms(username string) {
	conns := h.sessions.connsOf(username)
	if len(conns) == 0 {
		return
	}
	views, err := h.visibleRooms(username)
	if err != nil {
		h.log.Error().Err(err).Str("user", username).Msg("list rooms")
		return
	}
	ev := &Event{Kind: EventRoomsUpdate, Rooms: views}
	for _, s := range conns {
		deliver(s.Client, ev)
	}
}

func (h *Hub) sendToUser(username string, ev *Event) {
	for _, s := range h.sessions.connsOf(username) {
		deliver(s.Client, ev)
	}
}
