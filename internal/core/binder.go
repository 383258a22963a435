package core

import (
	"errors"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

func (h *Hub) bind(s *Session, cmd *Command) {
	if s.Bound() && s.Username != cmd.Username {
		deliver(s.Client, errorEvent(ErrCodeValidation, "connection is already bound to another user"))
		return
	}

	ctx, cancel := h.storeCtx()
	defer cancel()

	user, err := h.store.GetUserByUsername(ctx, cmd.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			deliver(s.Client, errorEvent(ErrCodeUnauthorized, "unknown user"))
			return
		}
		h.internalError(s, "bind", err)
		return
	}

	if !s.Bound() {
		h.sessions.bind(s, user.Username)
	}
	h.log.Info().Str("client_id", s.Client.ID).Str("user", user.Username).Msg("connection bound")

	switch cmd.Via {
	case BindLogin:
		deliver(s.Client, &Event{Kind: EventLoginSuccess, User: user.Username, Token: cmd.Token, Heartbeat: h.opts.HeartbeatInterval})
	case BindRegister:
		deliver(s.Client, &Event{Kind: EventRegisterSuccess, User: user.Username, Token: cmd.Token, Heartbeat: h.opts.HeartbeatInterval})
	}

	if err := h.store.AddMember(ctx, store.HomeRoomID, user.Username); err != nil {
		h.internalError(s, "join_home", err)
		return
	}

	transitioned := h.presence.Touch(user.Username, h.now())
	if transitioned || user.Status != store.StatusOnline {
		if err := h.store.UpdateUserStatus(ctx, user.Username, store.StatusOnline); err != nil {
			h.log.Error().Err(err).Str("user", user.Username).Msg("persist online status")
		}
	}

	h.sendRooms(s)
	if transitioned {
		h.broadcastRoster()
	}
}

func (h *Hub) disconnect(c *Client) {
	s, last := h.sessions.remove(c.ID)
	if s == nil {
		return
	}
	close(c.quit)
	h.throttle.Forget(c.ID)

	if !s.Bound() {
		return
	}

	current := s.CurrentRoom
	for roomID := range s.Subscriptions {
		h.unsubscribe(s, roomID)
	}
	if current != "" {
		if g, ok := h.groups[current]; ok {
			g.Broadcast(noticeEvent(current, s.Username+" has disconnected."))
		}
	}
	h.log.Info().Str("client_id", c.ID).Str("user", s.Username).Bool("last", last).Msg("connection closed")

	if !last {
		return
	}
	h.presence.Forget(s.Username)
	h.setOffline(s.Username)
	h.broadcastRoster()
}

func (h *Hub) heartbeat(username string) {
	if !h.presence.Touch(username, h.now()) {
		return
	}

	ctx, cancel := h.storeCtx()
	defer cancel()
	if err := h.store.UpdateUserStatus(ctx, username, store.StatusOnline); err != nil {
		h.log.Error().Err(err).Str("user", username).Msg("persist online status")
	}
	h.log.Debug().Str("user", username).Msg("user back online")
	h.broadcastRoster()
}

func (h *Hub) sweep() {
	stale := h.presence.Sweep(h.now())
	if len(stale) == 0 {
		return
	}
	for _, username := range stale {
		h.log.Info().Str("user", username).Msg("heartbeat timeout")
		h.setOffline(username)
	}
	h.broadcastRoster()
}

func (h *Hub) setOffline(username string) {
	ctx, cancel := h.storeCtx()
	defer cancel()
	if err := h.store.UpdateUserStatus(ctx, username, store.StatusOffline); err != nil {
		h.log.Error().Err(err).Str("user", username).Msg("persist offline status")
	}
}

// roster lists every user with the live presence view. The store only knows
// users; the tracker decides who is online.
func (h *Hub) roster() ([]UserPresence, error) {
	ctx, cancel := h.storeCtx()
	defer cancel()

	users, err := h.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserPresence, 0, len(users))
	for _, u := range users {
		entry := UserPresence{Username: u.Username, Status: string(store.StatusOffline)}
		if h.presence.IsOnline(u.Username) {
			entry.Status = string(store.StatusOnline)
			entry.LastSeen, _ = h.presence.LastSeen(u.Username)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (h *Hub) sendRoster(s *Session) {
	roster, err := h.roster()
	if err != nil {
		h.internalError(s, "list_users", err)
		return
	}
	deliver(s.Client, &Event{Kind: EventUserStatus, Roster: roster})
}

func (h *Hub) broadcastRoster() {
	roster, err := h.roster()
	if err != nil {
		h.log.Error().Err(err).Msg("load roster")
		return
	}
	ev := &Event{Kind: EventUserStatus, Roster: roster}
	for _, s := range h.sessions.bound() {
		deliver(s.Client, ev)
	}
}
