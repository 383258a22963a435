package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

// frame mirrors proto.Outbound with the payload left undecoded.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// render formats one server frame for the terminal.
func render(f frame) (string, error) {
	if f.Type == proto.OutboundTypeError {
		if f.Error == nil {
			return "error: unknown", nil
		}
		return fmt.Sprintf("error [%s]: %s", f.Error.Code, f.Error.Msg), nil
	}

	switch f.Event {
	case proto.EventRegisterSuccess, proto.EventLoginSuccess:
		var evt proto.AuthPayload
		if err := json.Unmarshal(f.Data, &evt); err != nil {
			return "", err
		}
		return fmt.Sprintf("signed in as %s", evt.Username), nil
	case proto.EventMessage, proto.EventChatMessage:
		var evt proto.MessagePayload
		if err := json.Unmarshal(f.Data, &evt); err != nil {
			return "", err
		}
		return formatMessage(evt), nil
	case proto.EventChatHistory:
		var evt proto.HistoryPayload
		if err := json.Unmarshal(f.Data, &evt); err != nil {
			return "", err
		}
		lines := []string{fmt.Sprintf("-- history of %s (%d messages) --", evt.RoomID, len(evt.Messages))}
		for _, m := range evt.Messages {
			lines = append(lines, formatMessage(m))
		}
		return strings.Join(lines, "\n"), nil
	case proto.EventRoomCreated:
		var evt proto.RoomCreatedPayload
		if err := json.Unmarshal(f.Data, &evt); err != nil {
			return "", err
		}
		return fmt.Sprintf("created room %q (%s)", evt.Name, evt.RoomID), nil
	case proto.EventRoomInvite:
		var evt proto.RoomInvitePayload
		if err := json.Unmarshal(f.Data, &evt); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s invited you to %q, /accept %s or /decline %s", evt.From, evt.RoomName, evt.RoomID, evt.RoomID), nil
	case proto.EventRoomJoined, proto.EventRoomLeft:
		var evt proto.RoomMemberPayload
		if err := json.Unmarshal(f.Data, &evt); err != nil {
			return "", err
		}
		verb := "joined"
		if f.Event == proto.EventRoomLeft {
			verb = "left"
		}
		return fmt.Sprintf("[%s] %s %s", evt.RoomID, evt.Username, verb), nil
	case proto.EventRoomRenamed:
		var evt proto.RoomRenamedPayload
		if err := json.Unmarshal(f.Data, &evt); err != nil {
			return "", err
		}
		return fmt.Sprintf("room %s is now %q", evt.RoomID, evt.Name), nil
	case proto.EventRoomsUpdate:
		var rooms []proto.RoomInfo
		if err := json.Unmarshal(f.Data, &rooms); err != nil {
			return "", err
		}
		lines := []string{"rooms:"}
		for _, r := range rooms {
			suffix := ""
			switch {
			case r.Pending && r.InvitedBy != "":
				suffix = " (invited by " + r.InvitedBy + ")"
			case r.Pending:
				suffix = " (invited)"
			}
			lines = append(lines, fmt.Sprintf("  %s  %s%s", r.ID, r.Name, suffix))
		}
		return strings.Join(lines, "\n"), nil
	case proto.EventUserStatus:
		var users []proto.UserStatus
		if err := json.Unmarshal(f.Data, &users); err != nil {
			return "", err
		}
		parts := make([]string, 0, len(users))
		for _, u := range users {
			parts = append(parts, u.Username+":"+u.Status)
		}
		return "users: " + strings.Join(parts, ", "), nil
	default:
		return fmt.Sprintf("event=%s data=%s", f.Event, string(f.Data)), nil
	}
}

// heartbeatFrom extracts the server's ping period from a sign-in frame.
func heartbeatFrom(f frame) (time.Duration, bool) {
	if f.Type != proto.OutboundTypeEvent || (f.Event != proto.EventLoginSuccess && f.Event != proto.EventRegisterSuccess) {
		return 0, false
	}
	var evt proto.AuthPayload
	if err := json.Unmarshal(f.Data, &evt); err != nil || evt.HeartbeatInterval <= 0 {
		return 0, false
	}
	return time.Duration(evt.HeartbeatInterval) * time.Second, true
}

func formatMessage(m proto.MessagePayload) string {
	if m.TS == 0 {
		return fmt.Sprintf("[%s] %s: %s", m.RoomID, m.User, m.Text)
	}
	ts := time.Unix(m.TS, 0).Format("15:04")
	return fmt.Sprintf("%s [%s] %s: %s", ts, m.RoomID, m.User, m.Text)
}
