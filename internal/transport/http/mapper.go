package http

import (
	"encoding/json"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

func decodeData(inbound proto.Inbound, dst any) *proto.Error {
	if len(inbound.Data) == 0 {
		return badRequest("data is required")
	}
	if err := json.Unmarshal(inbound.Data, dst); err != nil {
		return badRequest("malformed data")
	}
	return nil
}

// roomCommand decodes a {room_id} payload into a command of kind.
func roomCommand(inbound proto.Inbound, kind core.CommandKind) (*core.Command, *proto.Error) {
	var data proto.RoomData
	if perr := decodeData(inbound, &data); perr != nil {
		return nil, perr
	}
	if data.RoomID == "" {
		return nil, badRequest("room_id is required")
	}
	return &core.Command{Kind: kind, RoomID: data.RoomID}, nil
}

// inboundToCommand maps every inbound type except register and login, which
// the WebSocket handler authenticates itself.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		return roomCommand(inbound, core.CommandJoinRoom)
	case proto.InboundTypeAcceptInvite:
		return roomCommand(inbound, core.CommandAcceptInvite)
	case proto.InboundTypeDeclineInvite:
		return roomCommand(inbound, core.CommandDeclineInvite)
	case proto.InboundTypeLeaveRoom:
		return roomCommand(inbound, core.CommandLeaveRoom)
	case proto.InboundTypeChatMessage:
		var msg proto.ChatData
		if perr := decodeData(inbound, &msg); perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandSendRoomMessage, RoomID: msg.RoomID, Text: msg.Text}, nil
	case proto.InboundTypeCreateRoom:
		var create proto.CreateRoomData
		if perr := decodeData(inbound, &create); perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandCreateRoom, Name: create.RoomName, Invitees: create.Invites}, nil
	case proto.InboundTypeInvite:
		var inv proto.InviteData
		if perr := decodeData(inbound, &inv); perr != nil {
			return nil, perr
		}
		if inv.RoomID == "" || inv.Invitee == "" {
			return nil, badRequest("room_id and invitee are required")
		}
		return &core.Command{Kind: core.CommandInvite, RoomID: inv.RoomID, Invitee: inv.Invitee}, nil
	case proto.InboundTypeRenameRoom:
		var rename proto.RenameRoomData
		if perr := decodeData(inbound, &rename); perr != nil {
			return nil, perr
		}
		if rename.RoomID == "" {
			return nil, badRequest("room_id is required")
		}
		return &core.Command{Kind: core.CommandRenameRoom, RoomID: rename.RoomID, Name: rename.Name}, nil
	case proto.InboundTypeGetRooms:
		return &core.Command{Kind: core.CommandListRooms}, nil
	case proto.InboundTypeGetUsers:
		return &core.Command{Kind: core.CommandListUsers}, nil
	case proto.InboundTypePing:
		return &core.Command{Kind: core.CommandPing}, nil
	default:
		return nil, &proto.Error{Code: proto.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func eventMessage(msg core.Message) proto.MessagePayload {
	return proto.MessagePayload{
		ID:     msg.ID,
		RoomID: msg.RoomID,
		User:   msg.From,
		Text:   msg.Text,
		TS:     msg.CreatedAt.Unix(),
	}
}

func eventMessages(msgs []core.Message) []proto.MessagePayload {
	out := make([]proto.MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, eventMessage(m))
	}
	return out
}

func roomInfos(views []core.RoomView) []proto.RoomInfo {
	out := make([]proto.RoomInfo, 0, len(views))
	for _, v := range views {
		out = append(out, proto.RoomInfo{ID: v.ID, Name: v.Name, Creator: v.Creator, Pending: v.Pending, InvitedBy: v.InvitedBy})
	}
	return out
}

func authPayload(ev *core.Event) proto.AuthPayload {
	return proto.AuthPayload{
		Username:          ev.User,
		Token:             ev.Token,
		HeartbeatInterval: int(ev.Heartbeat / time.Second),
	}
}

func event(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func outboundError(code, msg string) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: code, Msg: msg}}
}

func outboundFromEvent(ev *core.Event) proto.Outbound {
	switch ev.Kind {
	case core.EventRegisterSuccess:
		return event(proto.EventRegisterSuccess, authPayload(ev))
	case core.EventLoginSuccess:
		return event(proto.EventLoginSuccess, authPayload(ev))
	case core.EventHistory:
		return event(proto.EventChatHistory, proto.HistoryPayload{RoomID: ev.RoomID, Messages: eventMessages(ev.Messages)})
	case core.EventNotice:
		return event(proto.EventMessage, proto.MessagePayload{RoomID: ev.RoomID, User: ev.User, Text: ev.Text})
	case core.EventRoomMessage:
		return event(proto.EventChatMessage, eventMessage(ev.Message))
	case core.EventRoomCreated:
		return event(proto.EventRoomCreated, proto.RoomCreatedPayload{RoomID: ev.RoomID, Name: ev.RoomName})
	case core.EventRoomInvite:
		return event(proto.EventRoomInvite, proto.RoomInvitePayload{RoomID: ev.RoomID, RoomName: ev.RoomName, From: ev.User})
	case core.EventRoomJoined:
		return event(proto.EventRoomJoined, proto.RoomMemberPayload{RoomID: ev.RoomID, Username: ev.User})
	case core.EventRoomLeft:
		return event(proto.EventRoomLeft, proto.RoomMemberPayload{RoomID: ev.RoomID, Username: ev.User})
	case core.EventRoomsUpdate:
		return event(proto.EventRoomsUpdate, roomInfos(ev.Rooms))
	case core.EventRoomRenamed:
		return event(proto.EventRoomRenamed, proto.RoomRenamedPayload{RoomID: ev.RoomID, Name: ev.RoomName})
	case core.EventUserStatus:
		roster := make([]proto.UserStatus, 0, len(ev.Roster))
		for _, p := range ev.Roster {
			entry := proto.UserStatus{Username: p.Username, Status: p.Status}
			if !p.LastSeen.IsZero() {
				entry.LastSeen = p.LastSeen.Unix()
			}
			roster = append(roster, entry)
		}
		return event(proto.EventUserStatus, roster)
	case core.EventError:
		if ev.Error == nil {
			return outboundError("unknown", "unknown error")
		}
		return outboundError(ev.Error.Code, ev.Error.Message)
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
