package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

var errQuit = errors.New("quit")

const helpText = `commands:
  /register <user> <password> [email]
  /login <user> <password>
  /join <room_id>
  /create <name> [invitee...]
  /invite <room_id> <user>
  /accept <room_id>
  /decline <room_id>
  /leave <room_id>
  /rename <room_id> <name>
  /rooms
  /users
  /quit
anything else is sent to the current room`

// parseLine turns one line of user input into an inbound frame. Plain text
// becomes a chat message for the current room.
func parseLine(line string) (proto.Inbound, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return proto.Inbound{}, errors.New("empty input")
	}
	if !strings.HasPrefix(line, "/") {
		return inbound(proto.InboundTypeChatMessage, proto.ChatData{Text: line})
	}

	args, err := shellwords.Parse(line)
	if err != nil {
		return proto.Inbound{}, fmt.Errorf("parse: %w", err)
	}
	name, args := args[0], args[1:]

	switch name {
	case "/register":
		if len(args) < 2 || len(args) > 3 {
			return proto.Inbound{}, usage("/register <user> <password> [email]")
		}
		data := proto.RegisterData{Username: args[0], Password: args[1]}
		if len(args) == 3 {
			data.Email = args[2]
		}
		return inbound(proto.InboundTypeRegister, data)
	case "/login":
		if len(args) != 2 {
			return proto.Inbound{}, usage("/login <user> <password>")
		}
		return inbound(proto.InboundTypeLogin, proto.LoginData{Username: args[0], Password: args[1]})
	case "/join", "/accept", "/decline", "/leave":
		if len(args) != 1 {
			return proto.Inbound{}, usage(name + " <room_id>")
		}
		return inbound(roomCommandTypes[name], proto.RoomData{RoomID: args[0]})
	case "/create":
		if len(args) < 1 {
			return proto.Inbound{}, usage("/create <name> [invitee...]")
		}
		return inbound(proto.InboundTypeCreateRoom, proto.CreateRoomData{RoomName: args[0], Invites: args[1:]})
	case "/invite":
		if len(args) != 2 {
			return proto.Inbound{}, usage("/invite <room_id> <user>")
		}
		return inbound(proto.InboundTypeInvite, proto.InviteData{RoomID: args[0], Invitee: args[1]})
	case "/rename":
		if len(args) < 2 {
			return proto.Inbound{}, usage("/rename <room_id> <name>")
		}
		return inbound(proto.InboundTypeRenameRoom, proto.RenameRoomData{RoomID: args[0], Name: strings.Join(args[1:], " ")})
	case "/rooms":
		return proto.Inbound{Type: proto.InboundTypeGetRooms}, nil
	case "/users":
		return proto.Inbound{Type: proto.InboundTypeGetUsers}, nil
	case "/quit", "/exit":
		return proto.Inbound{}, errQuit
	default:
		return proto.Inbound{}, fmt.Errorf("unknown command %s\n%s", name, helpText)
	}
}

var roomCommandTypes = map[string]string{
	"/join":    proto.InboundTypeJoinRoom,
	"/accept":  proto.InboundTypeAcceptInvite,
	"/decline": proto.InboundTypeDeclineInvite,
	"/leave":   proto.InboundTypeLeaveRoom,
}

func usage(s string) error {
	return fmt.Errorf("usage: %s", s)
}

func inbound(typ string, data any) (proto.Inbound, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return proto.Inbound{}, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return proto.Inbound{Type: typ, Data: payload}, nil
}
