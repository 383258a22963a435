package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRegisterSuccess confirms a registration and carries the token.
	EventRegisterSuccess EventKind = iota
	// EventLoginSuccess confirms a login and carries the token.
	EventLoginSuccess
	// EventHistory delivers message history to a client upon joining a room.
	EventHistory
	// EventNotice is an admin text notice in a room.
	EventNotice
	// EventRoomMessage notifies clients about a chat message in a room.
	EventRoomMessage
	// EventRoomCreated confirms room creation to the requester.
	EventRoomCreated
	// EventRoomInvite notifies an invitee.
	EventRoomInvite
	// EventRoomJoined notifies members that someone accepted an invite.
	EventRoomJoined
	// EventRoomLeft notifies that a member left a room.
	EventRoomLeft
	// EventRoomsUpdate carries the recipient's visible rooms.
	EventRoomsUpdate
	// EventRoomRenamed notifies members of a new room name.
	EventRoomRenamed
	// EventUserStatus carries the full presence roster.
	EventUserStatus
	// EventError notifies clients about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind      EventKind
	RoomID    string
	RoomName  string
	User      string
	Text      string
	Token     string
	Heartbeat time.Duration
	Message   Message
	Messages  []Message
	Rooms     []RoomView
	Roster    []UserPresence
	Error     *CoreError
}
